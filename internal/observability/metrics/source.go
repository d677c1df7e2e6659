// Package metrics provides knowledge source metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SourceMetrics contains Prometheus metrics for knowledge source adapters
type SourceMetrics struct {
	registry *prometheus.Registry

	sourceRequestsTotal *prometheus.CounterVec
	sourceErrorsTotal   *prometheus.CounterVec
	sourceDuration      *prometheus.HistogramVec
	sourceSignalsTotal  *prometheus.CounterVec
	rateLimitWaits      *prometheus.CounterVec
}

// NewSourceMetrics creates and registers new knowledge source metrics
func NewSourceMetrics(registry *prometheus.Registry) (*SourceMetrics, error) {
	m := &SourceMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SourceMetrics) initMetrics() error {
	m.sourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_requests_total",
			Help: "Total number of requests to knowledge sources",
		},
		[]string{"source", "status"}, // status: success, error, timeout
	)

	m.sourceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_errors_total",
			Help: "Total number of knowledge source errors",
		},
		[]string{"source", "error_type"},
	)

	m.sourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "source_request_duration_seconds",
			Help: "Time taken for one knowledge source lookup",
			// Public API response times, 100ms to ~100s
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
		[]string{"source"},
	)

	m.sourceSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_signals_total",
			Help: "Total number of signals returned by knowledge sources",
		},
		[]string{"source", "label"}, // label: reported label, or none
	)

	m.rateLimitWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_rate_limit_waits_total",
			Help: "Total number of lookups delayed by the client side rate limiter",
		},
		[]string{"source"},
	)

	return nil
}

// Describe implements the Collector interface
func (m *SourceMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.sourceRequestsTotal.Describe(ch)
	m.sourceErrorsTotal.Describe(ch)
	m.sourceDuration.Describe(ch)
	m.sourceSignalsTotal.Describe(ch)
	m.rateLimitWaits.Describe(ch)
}

// Collect implements the Collector interface
func (m *SourceMetrics) Collect(ch chan<- prometheus.Metric) {
	m.sourceRequestsTotal.Collect(ch)
	m.sourceErrorsTotal.Collect(ch)
	m.sourceDuration.Collect(ch)
	m.sourceSignalsTotal.Collect(ch)
	m.rateLimitWaits.Collect(ch)
}

// RecordSourceRequest records a knowledge source request outcome
func (m *SourceMetrics) RecordSourceRequest(source, status string) {
	if m == nil {
		return
	}
	m.sourceRequestsTotal.WithLabelValues(source, status).Inc()
}

// RecordSourceError records a knowledge source error
func (m *SourceMetrics) RecordSourceError(source, errorType string) {
	if m == nil {
		return
	}
	m.sourceErrorsTotal.WithLabelValues(source, errorType).Inc()
}

// RecordSourceDuration records the duration of a knowledge source lookup
func (m *SourceMetrics) RecordSourceDuration(source string, duration float64) {
	if m == nil {
		return
	}
	m.sourceDuration.WithLabelValues(source).Observe(duration)
}

// RecordSourceSignal records a signal returned by a knowledge source
func (m *SourceMetrics) RecordSourceSignal(source, label string) {
	if m == nil {
		return
	}
	m.sourceSignalsTotal.WithLabelValues(source, label).Inc()
}

// RecordRateLimitWait records a lookup delayed by the client side rate limiter
func (m *SourceMetrics) RecordRateLimitWait(source string) {
	if m == nil {
		return
	}
	m.rateLimitWaits.WithLabelValues(source).Inc()
}
