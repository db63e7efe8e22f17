// Package metrics provides Prometheus metrics collection for the irriflow commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric family exported by irriflow.
const Namespace = "irriflow"

// Registry is the process-wide Prometheus registry.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an HTTP handler exposing the process-wide registry.
func Handler() http.Handler {
	return HandlerFor(Registry)
}

// HandlerFor returns an HTTP handler exposing the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// factory returns a promauto factory bound to reg, or to Registry when reg is nil.
func factory(reg prometheus.Registerer) promauto.Factory {
	if reg == nil {
		reg = Registry
	}
	return promauto.With(reg)
}

// statusLabel collapses an error into the "success"/"error" label used across families.
func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
