// Package observability provides metrics and monitoring capabilities for trackguard.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tlahtinen/trackguard/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry       *prometheus.Registry
	Classification *metrics.ClassificationMetrics
	Source         *metrics.SourceMetrics
	Monitor        *metrics.MonitorMetrics
	Datastore      *metrics.DatastoreMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	classificationMetrics, err := metrics.NewClassificationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create classification metrics: %w", err)
	}

	sourceMetrics, err := metrics.NewSourceMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create source metrics: %w", err)
	}

	monitorMetrics, err := metrics.NewMonitorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	return &Metrics{
		registry:       registry,
		Classification: classificationMetrics,
		Source:         sourceMetrics,
		Monitor:        monitorMetrics,
		Datastore:      datastoreMetrics,
	}, nil
}

// Handler returns an HTTP handler exposing all registered metrics
// in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
