package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PollMetrics instruments the refresh cycles of the view stores.
type PollMetrics struct {
	Cycles     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Degraded   *prometheus.CounterVec
	Coalesced  *prometheus.CounterVec
	Discarded  *prometheus.CounterVec
	Generation *prometheus.GaugeVec
}

// NewPollMetrics creates and registers store metrics on reg.
func NewPollMetrics(reg prometheus.Registerer, namespace string) *PollMetrics {
	f := factory(reg)
	return &PollMetrics{
		Cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "cycles_total",
				Help:      "Refresh cycles by view and outcome",
			},
			[]string{"view", "outcome"}, // outcome: complete, degraded, aborted, discarded
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "cycle_duration_seconds",
				Help:      "Time from cycle start until every fetch settled",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"view"},
		),
		Degraded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "degraded_fetches_total",
				Help:      "Fetches that failed and were replaced by an empty collection",
			},
			[]string{"view", "source"},
		),
		Coalesced: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "coalesced_requests_total",
				Help:      "Refresh requests folded into a pending follow-up cycle",
			},
			[]string{"view"},
		),
		Discarded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "discarded_cycles_total",
				Help:      "Cycles that settled after their store was stopped",
			},
			[]string{"view"},
		),
		Generation: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "last_generation",
				Help:      "Generation of the most recently applied snapshot",
			},
			[]string{"view"},
		),
	}
}

// ObserveCycle records a settled cycle. Safe on a nil receiver.
func (m *PollMetrics) ObserveCycle(view, outcome string, elapsed time.Duration, degraded []string) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(view, outcome).Inc()
	m.Duration.WithLabelValues(view).Observe(elapsed.Seconds())
	for _, source := range degraded {
		m.Degraded.WithLabelValues(view, source).Inc()
	}
}

// ObserveGeneration records the generation of an applied snapshot. Safe on a nil receiver.
func (m *PollMetrics) ObserveGeneration(view string, generation uint64) {
	if m == nil {
		return
	}
	m.Generation.WithLabelValues(view).Set(float64(generation))
}

// ObserveCoalesced counts a refresh request that joined a pending follow-up. Safe on a nil receiver.
func (m *PollMetrics) ObserveCoalesced(view string) {
	if m == nil {
		return
	}
	m.Coalesced.WithLabelValues(view).Inc()
}

// ObserveDiscarded counts a cycle dropped because its store was stopped. Safe on a nil receiver.
func (m *PollMetrics) ObserveDiscarded(view string) {
	if m == nil {
		return
	}
	m.Discarded.WithLabelValues(view).Inc()
}
