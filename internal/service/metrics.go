package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// значения лейбла result
const (
	resultCommitted   = "committed"
	resultConflict    = "version_conflict"
	resultIllegal     = "illegal_action"
	resultNotSeated   = "not_a_participant"
	resultClosed      = "room_closed"
	resultNotFound    = "room_not_found"
	resultUnavailable = "persistence_unavailable"
	resultError       = "error"
)

type Metrics struct {
	Moves           *prometheus.CounterVec
	PublishFailures prometheus.Counter
	CommitSeconds   prometheus.Histogram
}

// NewMetrics регистрирует метрики в reg; nil - метрики без регистрации (тесты)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Moves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cucumbers_moves_total",
			Help: "Proposed moves by outcome.",
		}, []string{"result"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "cucumbers_publish_failures_total",
			Help: "Per-seat view deliveries that failed or timed out.",
		}),
		CommitSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cucumbers_commit_seconds",
			Help:    "Time from load to confirmed compare-and-set of a move.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
}
