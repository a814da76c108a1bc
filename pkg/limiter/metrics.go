package limiter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the limiter package. A nil
// *Metrics is valid and records nothing, so instrumentation stays optional.
type Metrics struct {
	// Acquire / reserve outcomes
	acquires *prometheus.CounterVec
	reserves *prometheus.CounterVec

	// Reservation lifecycle
	binds    *prometheus.CounterVec
	releases *prometheus.CounterVec

	// Conditional-write contention
	retries *prometheus.CounterVec

	// Decision latency
	decisionDuration *prometheus.HistogramVec
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
		acquires: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_acquires_total",
				Help: "Total number of fungible acquire decisions",
			},
			[]string{"resource", "outcome"},
		),

		reserves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_reserves_total",
				Help: "Total number of non-fungible reserve decisions",
			},
			[]string{"resource", "outcome"},
		),

		binds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_binds_total",
				Help: "Total number of reservation bind attempts",
			},
			[]string{"resource", "outcome"},
		),

		releases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_releases_total",
				Help: "Total number of reservation releases",
			},
			[]string{"resource"},
		),

		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tollgate_write_retries_total",
				Help: "Total number of conditional writes voided by contention",
			},
			[]string{"resource", "operation"},
		),

		decisionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tollgate_decision_duration_seconds",
				Help:    "Duration of limit decisions in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
			},
			[]string{"operation"},
		),
	}
}

// Outcome labels recorded by the decision counters.
const (
	OutcomeGranted     = "granted"
	OutcomeLimited     = "limited"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// RecordAcquire records a fungible acquire decision.
func (m *Metrics) RecordAcquire(resource, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.acquires.WithLabelValues(resource, outcome).Inc()
	m.decisionDuration.WithLabelValues("acquire").Observe(duration.Seconds())
}

// RecordReserve records a non-fungible reserve decision.
func (m *Metrics) RecordReserve(resource, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reserves.WithLabelValues(resource, outcome).Inc()
	m.decisionDuration.WithLabelValues("reserve").Observe(duration.Seconds())
}

// RecordBind records a reservation bind attempt.
func (m *Metrics) RecordBind(resource, outcome string) {
	if m == nil {
		return
	}
	m.binds.WithLabelValues(resource, outcome).Inc()
}

// RecordRelease records a reservation release.
func (m *Metrics) RecordRelease(resource string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(resource).Inc()
}

// RecordRetry records a conditional write voided by a concurrent writer.
func (m *Metrics) RecordRetry(resource, operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(resource, operation).Inc()
}
