// Package metrics provides claim lifecycle metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ClaimMetrics contains Prometheus metrics for claim lifecycle operations
type ClaimMetrics struct {
	claimOperationsTotal *prometheus.CounterVec
	overlayFeaturesHist  prometheus.Histogram

	collectors []prometheus.Collector
}

// NewClaimMetrics creates and registers claim metrics with the given registry
func NewClaimMetrics(registry *prometheus.Registry) (*ClaimMetrics, error) {
	m := &ClaimMetrics{}

	m.claimOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canvass_claim_operations_total",
			Help: "Total number of claim lifecycle operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	m.overlayFeaturesHist = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "canvass_overlay_features",
			Help:    "Number of features annotated per status overlay request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	m.collectors = []prometheus.Collector{
		m.claimOperationsTotal,
		m.overlayFeaturesHist,
	}

	for _, collector := range m.collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordClaimOperation records one claim lifecycle operation.
// operation is one of claim, unclaim, admin_unclaim, data_entry_unclaim;
// result is one of success, conflict, not_found, error.
func (m *ClaimMetrics) RecordClaimOperation(operation, result string) {
	if m == nil {
		return
	}
	m.claimOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordOverlaySize records the feature count of one overlay request.
func (m *ClaimMetrics) RecordOverlaySize(features int) {
	if m == nil {
		return
	}
	m.overlayFeaturesHist.Observe(float64(features))
}
