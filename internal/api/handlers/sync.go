package handlers

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ETAnderson/vendorsync/internal/domain"
	"github.com/ETAnderson/vendorsync/internal/pipeline"
)

const MaxBodyBytes = 1 << 20

// SyncHandler feeds one channel's requests into the orchestrator. Every
// method reaches the orchestrator so it can answer 405 itself.
type SyncHandler struct {
	Orchestrator *pipeline.Orchestrator
	Channel      domain.SourceChannel
}

func (h SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Orchestrator == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	received := time.Now()

	var (
		body    []byte
		readErr error
	)
	if r.Method == http.MethodPost {
		body, readErr = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		var tooLarge *http.MaxBytesError
		if errors.As(readErr, &tooLarge) {
			readErr = pipeline.ErrBodyTooLarge
		}
	}

	resp := h.Orchestrator.Sync(r.Context(), pipeline.SyncRequest{
		Method:        r.Method,
		Channel:       h.Channel,
		Authorization: r.Header.Get("Authorization"),
		Header:        r.Header,
		Body:          body,
		ReadErr:       readErr,
		Client:        clientMetadata(r),
		Received:      received,
	})
	writeResponse(w, r, resp)
}

func clientMetadata(r *http.Request) domain.ClientMetadata {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return domain.ClientMetadata{
		IP:        ip,
		UserAgent: r.UserAgent(),
		RequestID: chimiddleware.GetReqID(r.Context()),
	}
}
