// Package api wires the HTTP surface onto the sync pipeline.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ETAnderson/vendorsync/internal/api/handlers"
	"github.com/ETAnderson/vendorsync/internal/api/middleware"
	"github.com/ETAnderson/vendorsync/internal/domain"
	"github.com/ETAnderson/vendorsync/internal/idempotency"
	"github.com/ETAnderson/vendorsync/internal/pipeline"
)

type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Idempotency  idempotency.Store
	Logger       *zap.Logger
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer(d.Logger))
	r.Use(middleware.Metrics)

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	r.Get("/healthz", handlers.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		var push http.Handler = handlers.SyncHandler{Orchestrator: d.Orchestrator, Channel: domain.ChannelPush}
		if d.Idempotency != nil {
			push = idempotency.Middleware{Store: d.Idempotency, Logger: d.Logger, Next: push}
		}
		r.Handle("/products/sync", push)

		r.Handle("/webhooks/platform", handlers.SyncHandler{
			Orchestrator: d.Orchestrator,
			Channel:      domain.ChannelPlatformWebhook,
		})

		r.Method(http.MethodGet, "/webhooks/messages", handlers.VerifyHandler{Orchestrator: d.Orchestrator})
		r.Method(http.MethodPost, "/webhooks/messages", handlers.SyncHandler{
			Orchestrator: d.Orchestrator,
			Channel:      domain.ChannelConversational,
		})
	})

	return r
}
