// Package prometheus contains the Prometheus-backed implementations of
// the instrumentation interfaces the feature packages define. Importing
// it (underscore import in the start command) registers the constructors
// with pkg/metrics.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/telebridge/pkg/metrics"
	"github.com/marmos91/telebridge/pkg/pacer"
)

func init() {
	metrics.RegisterPacerMetricsConstructor(NewPacerMetrics)
	metrics.RegisterTransferMetricsConstructor(NewTransferMetrics)
}

// pacerMetrics is the Prometheus implementation of pacer.Metrics.
type pacerMetrics struct {
	requestsTotal *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

// NewPacerMetrics creates a Prometheus-backed pacer.Metrics labeled with
// the pacer's name. Returns nil if metrics are not enabled.
func NewPacerMetrics(name string) pacer.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()
	labels := prometheus.Labels{"pacer": name}

	return &pacerMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "telebridge_pacer_requests_total",
				Help:        "Outbound chat requests serviced by the pacer, by status",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name:        "telebridge_pacer_queue_depth",
				Help:        "Requests currently queued across all chats",
				ConstLabels: labels,
			},
		),
	}
}

func (m *pacerMetrics) Enqueued() {
	m.queueDepth.Inc()
}

func (m *pacerMetrics) Serviced(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(status).Inc()
}

func (m *pacerMetrics) QueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}
