// Package telemetry exposes Prometheus metrics for the ingest, search, and
// chat paths. Metrics register on the default registry and are served by the
// /metrics endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestedChunks counts chunks persisted to the knowledge store.
	IngestedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragkb_ingested_chunks_total",
		Help: "Chunks embedded and persisted to the knowledge store",
	})

	// EmbeddingCalls counts embedding requests sent to the LLM provider.
	EmbeddingCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragkb_embedding_calls_total",
		Help: "Embedding requests sent to the LLM provider",
	})

	// CompletionCalls counts chat completion requests sent to the provider.
	CompletionCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragkb_completion_calls_total",
		Help: "Chat completion requests sent to the LLM provider",
	})

	// Searches counts nearest-neighbor queries answered.
	Searches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragkb_searches_total",
		Help: "Nearest-neighbor searches answered",
	})

	// RequestDuration observes HTTP handler latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragkb_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
