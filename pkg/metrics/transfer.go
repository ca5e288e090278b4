package metrics

import (
	"github.com/marmos91/telebridge/pkg/transfer"
)

// NewTransferMetrics creates a Prometheus-backed transfer.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
// Workers treat a nil Metrics as a no-op.
func NewTransferMetrics() transfer.Metrics {
	if !IsEnabled() || newPrometheusTransferMetrics == nil {
		return nil
	}

	return newPrometheusTransferMetrics()
}

// newPrometheusTransferMetrics is implemented in pkg/metrics/prometheus.
var newPrometheusTransferMetrics func() transfer.Metrics

// RegisterTransferMetricsConstructor registers the Prometheus transfer
// metrics constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterTransferMetricsConstructor(constructor func() transfer.Metrics) {
	newPrometheusTransferMetrics = constructor
}
