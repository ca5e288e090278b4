package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/telebridge/pkg/metrics"
	"github.com/marmos91/telebridge/pkg/transfer"
)

// transferMetrics is the Prometheus implementation of transfer.Metrics.
type transferMetrics struct {
	tasksTotal      *prometheus.CounterVec
	activeTransfers prometheus.Gauge
	bytesUploaded   prometheus.Counter
	partDuration    *prometheus.HistogramVec
}

// NewTransferMetrics creates a Prometheus-backed transfer.Metrics.
// Returns nil if metrics are not enabled.
func NewTransferMetrics() transfer.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &transferMetrics{
		tasksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "telebridge_transfer_tasks_total",
				Help: "Finished transfer tasks by terminal status",
			},
			[]string{"status"},
		),
		activeTransfers: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "telebridge_transfer_active",
				Help: "Transfers currently holding a worker permit",
			},
		),
		bytesUploaded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "telebridge_transfer_bytes_total",
				Help: "Bytes uploaded to the drive across all tasks",
			},
		),
		partDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "telebridge_transfer_part_duration_milliseconds",
				Help: "Duration of single part uploads in milliseconds",
				Buckets: []float64{
					100,   // small parts on a fast link
					500,
					1000,  // 1s
					2500,
					5000,  // 5s
					10000, // 10s, close to a stalled link
					30000,
				},
			},
			[]string{"status"},
		),
	}
}

func (m *transferMetrics) TaskStarted() {
	m.activeTransfers.Inc()
}

func (m *transferMetrics) TaskFinished(status string) {
	m.activeTransfers.Dec()
	m.tasksTotal.WithLabelValues(status).Inc()
}

func (m *transferMetrics) PartUploaded(bytes int, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	} else {
		m.bytesUploaded.Add(float64(bytes))
	}
	m.partDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}
