package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommitMetrics records outcomes of the sale commitment workflow.
type CommitMetrics struct {
	duration  *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
	shipments prometheus.Counter
}

// NewCommitMetrics registers the commit workflow metrics on the provided
// registerer. A nil registerer yields a no-op recorder, which tests use.
func NewCommitMetrics(reg prometheus.Registerer) *CommitMetrics {
	if reg == nil {
		return &CommitMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commit_duration_seconds",
		Help:    "Duration of sale commitment attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commit_outcomes_total",
		Help: "Commitment attempts by outcome.",
	}, []string{"outcome"})
	shipments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_shipments_created_total",
		Help: "Shipments successfully created at the courier aggregator.",
	})
	reg.MustRegister(duration, outcomes, shipments)
	return &CommitMetrics{
		duration:  duration,
		outcomes:  outcomes,
		shipments: shipments,
	}
}

// Observe records one commitment attempt.
func (m *CommitMetrics) Observe(outcome string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
	m.outcomes.WithLabelValues(label).Inc()
}

// IncShipment counts a successful courier shipment creation.
func (m *CommitMetrics) IncShipment() {
	if m == nil || m.shipments == nil {
		return
	}
	m.shipments.Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
