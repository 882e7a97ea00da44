package handlers

import (
	"net/http"

	"github.com/ETAnderson/vendorsync/internal/pipeline"
)

// VerifyHandler answers the messaging platform's GET subscription check.
type VerifyHandler struct {
	Orchestrator *pipeline.Orchestrator
}

func (h VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, h.Orchestrator.Verify(r.URL.Query()))
}

// MethodNotAllowed is the JSON 405 used by the router.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "not_found")
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}
