package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ProducerMetrics contains Prometheus metrics for the synthetic data generator.
type ProducerMetrics struct {
	RecordsGenerated   *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	ActiveProducers    prometheus.Gauge
}

// NewProducerMetrics creates and registers generator metrics on reg.
func NewProducerMetrics(reg prometheus.Registerer, namespace string) *ProducerMetrics {
	f := factory(reg)
	return &ProducerMetrics{
		RecordsGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "producer",
				Name:      "records_generated_total",
				Help:      "Total number of records posted to the backends",
			},
			[]string{"type"}, // type: pump, reservoir, consumption, flow, alert_event
		),
		GenerationFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "producer",
				Name:      "generation_failures_total",
				Help:      "Total number of records the backends rejected",
			},
			[]string{"type"},
		),
		GenerationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "producer",
				Name:      "generation_duration_seconds",
				Help:      "Duration of one generation tick",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"producer"},
		),
		ActiveProducers: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "producer",
				Name:      "active_producers",
				Help:      "Number of currently running producers",
			},
		),
	}
}

// ObserveRecord counts one posted record. Safe on a nil receiver.
func (m *ProducerMetrics) ObserveRecord(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.GenerationFailures.WithLabelValues(kind).Inc()
		return
	}
	m.RecordsGenerated.WithLabelValues(kind).Inc()
}
