package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MQMetrics contains Prometheus metrics for the alert event client.
type MQMetrics struct {
	MessagesPublished   *prometheus.CounterVec
	PublishFailures     *prometheus.CounterVec
	PublishDuration     *prometheus.HistogramVec
	ReconnectAttempts   prometheus.Counter
	ConnectionStatus    prometheus.Gauge
	MessagesConsumed    *prometheus.CounterVec
	ConsumptionFailures *prometheus.CounterVec
}

// NewMQMetrics creates and registers MQ client metrics on reg.
func NewMQMetrics(reg prometheus.Registerer, namespace string) *MQMetrics {
	f := factory(reg)
	return &MQMetrics{
		MessagesPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "messages_published_total",
				Help:      "Total number of messages confirmed by the broker",
			},
			[]string{"exchange"},
		),
		PublishFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "publish_failures_total",
				Help:      "Total number of publishes that were given up",
			},
			[]string{"exchange", "reason"},
		),
		PublishDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "publish_duration_seconds",
				Help:      "Duration of confirmed publishes including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"exchange"},
		),
		ReconnectAttempts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "reconnect_attempts_total",
				Help:      "Total number of connection attempts",
			},
		),
		ConnectionStatus: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "connection_status",
				Help:      "Current connection status (1=connected, 0=disconnected)",
			},
		),
		MessagesConsumed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "messages_consumed_total",
				Help:      "Total number of messages handled by a consumer",
			},
			[]string{"exchange"},
		),
		ConsumptionFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mq",
				Name:      "consumption_failures_total",
				Help:      "Total number of messages a consumer could not handle",
			},
			[]string{"exchange", "reason"},
		),
	}
}
