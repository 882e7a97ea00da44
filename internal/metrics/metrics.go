package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorsync_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vendorsync_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	SyncRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorsync_sync_requests_total",
		Help: "Sync requests by source channel and response status.",
	}, []string{"channel", "status"})

	SyncItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorsync_sync_items_total",
		Help: "Products processed by source channel and disposition.",
	}, []string{"channel", "disposition"})

	ExtractionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorsync_extraction_fallbacks_total",
		Help: "Conversational extractions that fell back to the raw text title.",
	}, []string{"reason"})

	SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vendorsync_side_effect_failures_total",
		Help: "Best-effort side effects that failed (audit, acknowledgment, event, media).",
	}, []string{"kind"})
)
