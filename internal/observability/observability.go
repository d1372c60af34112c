// Package observability provides Prometheus metrics functionality for
// monitoring the canvass service.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	metricspkg "github.com/neighbourly/canvass-go/internal/observability/metrics"
)

// Metrics bundles all metric groups behind one registry.
type Metrics struct {
	registry *prometheus.Registry

	Claims *metricspkg.ClaimMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	claims, err := metricspkg.NewClaimMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register claim metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Claims:   claims,
	}, nil
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
