package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for event processing. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	processed *prometheus.CounterVec
	removed   *prometheus.CounterVec
	malformed prometheus.Counter
}

// NewMetrics creates a Metrics instance registered with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a Metrics instance registered with reg. Tests pass
// a fresh registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		processed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_events_processed_total",
				Help: "Total number of events routed through the manager",
			},
			[]string{"source", "outcome"},
		),

		removed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_event_tokens_removed_total",
				Help: "Total number of tokens removed by event processing",
			},
			[]string{"source"},
		),

		malformed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tollgate_events_malformed_total",
				Help: "Total number of events rejected as malformed",
			},
		),
	}
}

// Outcome labels recorded by the processed counter.
const (
	OutcomeProcessed = "processed"
	OutcomeError     = "error"
)

// RecordProcessed records one routed event.
func (m *Metrics) RecordProcessed(source, outcome string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(source, outcome).Inc()
}

// RecordRemoved records tokens removed for one event.
func (m *Metrics) RecordRemoved(source string, n int) {
	if m == nil {
		return
	}
	m.removed.WithLabelValues(source).Add(float64(n))
}

// RecordMalformed records an event rejected before routing.
func (m *Metrics) RecordMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}
