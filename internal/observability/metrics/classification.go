// Package metrics provides Prometheus metric collectors for trackguard subsystems.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ClassificationMetrics contains Prometheus metrics for the decision engine
type ClassificationMetrics struct {
	registry *prometheus.Registry

	classificationsTotal   *prometheus.CounterVec
	classificationDuration prometheus.Histogram
	cacheHitsTotal         prometheus.Counter
	cacheMissesTotal       prometheus.Counter
	overrideHitsTotal      prometheus.Counter
	bandPolicyAppliedTotal prometheus.Counter
	fallbackInvokedTotal   *prometheus.CounterVec
	fallbackDuration       prometheus.Histogram
}

// NewClassificationMetrics creates and registers new classification metrics
func NewClassificationMetrics(registry *prometheus.Registry) (*ClassificationMetrics, error) {
	m := &ClassificationMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ClassificationMetrics) initMetrics() error {
	m.classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifications_total",
			Help: "Total number of completed artist classifications",
		},
		[]string{"label", "origin"}, // origin: sources, fallback, override, cache
	)

	m.classificationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "classification_duration_seconds",
		Help: "Time taken for one full classification pass",
		// Buckets cover typical passes: instant cache hits up to the
		// configured classification timeout with all sources slow.
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
	})

	m.cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classification_cache_hits_total",
		Help: "Total number of decision cache hits",
	})

	m.cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classification_cache_misses_total",
		Help: "Total number of decision cache misses",
	})

	m.overrideHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classification_override_hits_total",
		Help: "Total number of classifications resolved by a manual override",
	})

	m.bandPolicyAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classification_band_policy_applied_total",
		Help: "Total number of decisions where the band policy forced an artificial label",
	})

	m.fallbackInvokedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classification_fallback_invocations_total",
			Help: "Total number of LLM fallback invocations",
		},
		[]string{"status"}, // status: success, error, invalid_output
	)

	m.fallbackDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "classification_fallback_duration_seconds",
		Help: "Time taken for LLM fallback inference",
		// Local model inference, 100ms to ~100s depending on hardware
		Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
	})

	return nil
}

// Describe implements the Collector interface
func (m *ClassificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.classificationsTotal.Describe(ch)
	m.classificationDuration.Describe(ch)
	m.cacheHitsTotal.Describe(ch)
	m.cacheMissesTotal.Describe(ch)
	m.overrideHitsTotal.Describe(ch)
	m.bandPolicyAppliedTotal.Describe(ch)
	m.fallbackInvokedTotal.Describe(ch)
	m.fallbackDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *ClassificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.classificationsTotal.Collect(ch)
	m.classificationDuration.Collect(ch)
	m.cacheHitsTotal.Collect(ch)
	m.cacheMissesTotal.Collect(ch)
	m.overrideHitsTotal.Collect(ch)
	m.bandPolicyAppliedTotal.Collect(ch)
	m.fallbackInvokedTotal.Collect(ch)
	m.fallbackDuration.Collect(ch)
}

// RecordClassification records a completed classification by label and origin
func (m *ClassificationMetrics) RecordClassification(label, origin string) {
	if m == nil {
		return
	}
	m.classificationsTotal.WithLabelValues(label, origin).Inc()
}

// RecordClassificationDuration records the duration of a classification pass
func (m *ClassificationMetrics) RecordClassificationDuration(duration float64) {
	if m == nil {
		return
	}
	m.classificationDuration.Observe(duration)
}

// RecordCacheHit records a decision cache hit
func (m *ClassificationMetrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a decision cache miss
func (m *ClassificationMetrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMissesTotal.Inc()
}

// RecordOverrideHit records a classification resolved by a manual override
func (m *ClassificationMetrics) RecordOverrideHit() {
	if m == nil {
		return
	}
	m.overrideHitsTotal.Inc()
}

// RecordBandPolicyApplied records a decision forced artificial by the band policy
func (m *ClassificationMetrics) RecordBandPolicyApplied() {
	if m == nil {
		return
	}
	m.bandPolicyAppliedTotal.Inc()
}

// RecordFallbackInvocation records an LLM fallback invocation outcome
func (m *ClassificationMetrics) RecordFallbackInvocation(status string) {
	if m == nil {
		return
	}
	m.fallbackInvokedTotal.WithLabelValues(status).Inc()
}

// RecordFallbackDuration records the duration of LLM fallback inference
func (m *ClassificationMetrics) RecordFallbackDuration(duration float64) {
	if m == nil {
		return
	}
	m.fallbackDuration.Observe(duration)
}
