package handlers

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/ETAnderson/vendorsync/internal/pipeline"
)

func writeResponse(w http.ResponseWriter, r *http.Request, resp pipeline.Response) {
	if s, ok := resp.Body.(string); ok && resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
		w.WriteHeader(resp.Status)
		_, _ = w.Write([]byte(s))
		return
	}

	render.Status(r, resp.Status)
	render.JSON(w, r, resp.Body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": code})
}
