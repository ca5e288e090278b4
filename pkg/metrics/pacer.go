package metrics

import (
	"github.com/marmos91/telebridge/pkg/pacer"
)

// NewPacerMetrics creates a Prometheus-backed pacer.Metrics labeled with
// the pacer's name.
//
// Returns nil if metrics are not enabled (InitRegistry not called), in
// which case the pacer runs uninstrumented at zero overhead.
func NewPacerMetrics(name string) pacer.Metrics {
	if !IsEnabled() || newPrometheusPacerMetrics == nil {
		return nil
	}

	return newPrometheusPacerMetrics(name)
}

// newPrometheusPacerMetrics is implemented in pkg/metrics/prometheus.
// The indirection avoids an import cycle between the registry and the
// implementation package.
var newPrometheusPacerMetrics func(name string) pacer.Metrics

// RegisterPacerMetricsConstructor registers the Prometheus pacer metrics
// constructor. Called by pkg/metrics/prometheus during package
// initialization.
func RegisterPacerMetricsConstructor(constructor func(name string) pacer.Metrics) {
	newPrometheusPacerMetrics = constructor
}
