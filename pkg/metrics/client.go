package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics instruments calls made to the energy and water services.
type ClientMetrics struct {
	Calls    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewClientMetrics creates and registers API client metrics on reg.
func NewClientMetrics(reg prometheus.Registerer, namespace string) *ClientMetrics {
	f := factory(reg)
	return &ClientMetrics{
		Calls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api_client",
				Name:      "calls_total",
				Help:      "Total number of backend API calls",
			},
			[]string{"service", "method", "status"}, // status: success, error
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api_client",
				Name:      "call_duration_seconds",
				Help:      "Duration of backend API calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method"},
		),
	}
}

// Observe records one finished call. Safe on a nil receiver.
func (m *ClientMetrics) Observe(service, method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(service, method, statusLabel(err)).Inc()
	m.Duration.WithLabelValues(service, method).Observe(elapsed.Seconds())
}
