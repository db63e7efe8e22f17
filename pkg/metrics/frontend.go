package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FrontendMetrics contains Prometheus metrics for the dashboard HTTP surface.
type FrontendMetrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec
	TemplateRenderTime   *prometheus.HistogramVec
	TemplateRenderErrors *prometheus.CounterVec
	Mutations            *prometheus.CounterVec
	LiveConnections      *prometheus.GaugeVec
	LivePushes           *prometheus.CounterVec
	Sessions             prometheus.Gauge
}

// NewFrontendMetrics creates and registers dashboard metrics on reg.
func NewFrontendMetrics(reg prometheus.Registerer, namespace string) *FrontendMetrics {
	f := factory(reg)
	return &FrontendMetrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		HTTPResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
			},
			[]string{"route"},
		),
		TemplateRenderTime: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "render_duration_seconds",
				Help:      "Duration of component rendering",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component"},
		),
		TemplateRenderErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "template",
				Name:      "render_errors_total",
				Help:      "Total number of component rendering errors",
			},
			[]string{"component"},
		),
		Mutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "mutations_total",
				Help:      "Mutations submitted from the dashboard by operation and outcome",
			},
			[]string{"operation", "outcome"}, // outcome: success, failure, invalid, declined
		),
		LiveConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "live",
				Name:      "connections",
				Help:      "Open live view websocket connections",
			},
			[]string{"view"},
		),
		LivePushes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "live",
				Name:      "pushes_total",
				Help:      "Fragments pushed to live views",
			},
			[]string{"view", "kind"},
		),
		Sessions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "active",
				Help:      "Dashboard sessions currently tracked",
			},
		),
	}
}

// ObserveMutation counts one workflow outcome. Safe on a nil receiver.
func (m *FrontendMetrics) ObserveMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(operation, outcome).Inc()
}
