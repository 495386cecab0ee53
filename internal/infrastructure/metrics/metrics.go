package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts processed inbound turns by outcome
	// (replied, saved_silent, duplicate, ignored, failed).
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nuvia_turns_total",
		Help: "Inbound turns processed, labeled by outcome",
	}, []string{"outcome"})

	// TurnDuration observes end-to-end turn latency.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nuvia_turn_duration_seconds",
		Help:    "End-to-end inbound turn latency",
		Buckets: prometheus.DefBuckets,
	})

	// CompletionFallbacks counts turns answered with the canned reply.
	CompletionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nuvia_completion_fallbacks_total",
		Help: "Turns that degraded to the fallback reply",
	})

	// StatusUpdatesTotal counts delivery-status callbacks by result
	// (applied, stale, unknown_reference, unknown_status).
	StatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nuvia_status_updates_total",
		Help: "Delivery status callbacks, labeled by result",
	}, []string{"result"})

	// RetrievalChunks observes how many knowledge chunks survived the
	// distance filter per retrieval.
	RetrievalChunks = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nuvia_retrieval_chunks",
		Help:    "Knowledge chunks returned per retrieval",
		Buckets: []float64{0, 1, 2, 3, 5, 7, 10},
	})
)
