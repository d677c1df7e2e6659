// Package metrics provides playback monitor metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MonitorMetrics contains Prometheus metrics for the playback polling loop
// and the action executor
type MonitorMetrics struct {
	registry *prometheus.Registry

	pollsTotal        *prometheus.CounterVec
	trackChangesTotal prometheus.Counter
	backoffGauge      prometheus.Gauge
	actionsTotal      *prometheus.CounterVec
	actionRetries     *prometheus.CounterVec
	actionDuration    *prometheus.HistogramVec
}

// NewMonitorMetrics creates and registers new playback monitor metrics
func NewMonitorMetrics(registry *prometheus.Registry) (*MonitorMetrics, error) {
	m := &MonitorMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MonitorMetrics) initMetrics() error {
	m.pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_polls_total",
			Help: "Total number of playback state polls",
		},
		[]string{"status"}, // status: playing, idle, rate_limited, error
	)

	m.trackChangesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "monitor_track_changes_total",
		Help: "Total number of observed track changes",
	})

	m.backoffGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_backoff_seconds",
		Help: "Current poll backoff interval in seconds",
	})

	m.actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_actions_total",
			Help: "Total number of playback actions executed",
		},
		[]string{"action", "status"}, // action: skip, remove_from_playlist, add_to_blocked
	)

	m.actionRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_action_retries_total",
			Help: "Total number of playback action retry attempts",
		},
		[]string{"action"},
	)

	m.actionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monitor_action_duration_seconds",
			Help:    "Time taken for one playback action including retries",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
		[]string{"action"},
	)

	return nil
}

// Describe implements the Collector interface
func (m *MonitorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.pollsTotal.Describe(ch)
	m.trackChangesTotal.Describe(ch)
	m.backoffGauge.Describe(ch)
	m.actionsTotal.Describe(ch)
	m.actionRetries.Describe(ch)
	m.actionDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *MonitorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.pollsTotal.Collect(ch)
	m.trackChangesTotal.Collect(ch)
	m.backoffGauge.Collect(ch)
	m.actionsTotal.Collect(ch)
	m.actionRetries.Collect(ch)
	m.actionDuration.Collect(ch)
}

// RecordPoll records a playback poll outcome
func (m *MonitorMetrics) RecordPoll(status string) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(status).Inc()
}

// RecordTrackChange records an observed track change
func (m *MonitorMetrics) RecordTrackChange() {
	if m == nil {
		return
	}
	m.trackChangesTotal.Inc()
}

// SetBackoff records the current poll backoff interval
func (m *MonitorMetrics) SetBackoff(seconds float64) {
	if m == nil {
		return
	}
	m.backoffGauge.Set(seconds)
}

// RecordAction records a playback action outcome
func (m *MonitorMetrics) RecordAction(action, status string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action, status).Inc()
}

// RecordActionRetry records a playback action retry attempt
func (m *MonitorMetrics) RecordActionRetry(action string) {
	if m == nil {
		return
	}
	m.actionRetries.WithLabelValues(action).Inc()
}

// RecordActionDuration records the duration of a playback action
func (m *MonitorMetrics) RecordActionDuration(action string, duration float64) {
	if m == nil {
		return
	}
	m.actionDuration.WithLabelValues(action).Observe(duration)
}
