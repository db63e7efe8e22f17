package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"irriflow.dev/dashboard/pkg/metrics"
)

var _ = Describe("Metrics", func() {
	var reg *prometheus.Registry

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
	})

	It("registers every family on a private registry without clashing", func() {
		Expect(func() {
			metrics.NewFrontendMetrics(reg, "test")
			metrics.NewClientMetrics(reg, "test")
			metrics.NewPollMetrics(reg, "test")
			metrics.NewMQMetrics(reg, "test")
			metrics.NewProducerMetrics(reg, "test")
		}).NotTo(Panic())
	})

	It("panics on duplicate registration", func() {
		metrics.NewPollMetrics(reg, "test")
		Expect(func() { metrics.NewPollMetrics(reg, "test") }).To(Panic())
	})

	Describe("ClientMetrics", func() {
		It("labels calls by outcome", func() {
			m := metrics.NewClientMetrics(reg, "test")
			m.Observe("energy", "ListPumps", 10*time.Millisecond, nil)
			m.Observe("energy", "ListPumps", 10*time.Millisecond, errors.New("boom"))
			m.Observe("energy", "ListPumps", 10*time.Millisecond, nil)

			Expect(testutil.ToFloat64(m.Calls.WithLabelValues("energy", "ListPumps", "success"))).To(Equal(2.0))
			Expect(testutil.ToFloat64(m.Calls.WithLabelValues("energy", "ListPumps", "error"))).To(Equal(1.0))
		})
	})

	Describe("PollMetrics", func() {
		It("counts degraded sources per cycle", func() {
			m := metrics.NewPollMetrics(reg, "test")
			m.ObserveCycle("dashboard", "degraded", time.Millisecond, []string{"pumps", "alerts"})
			m.ObserveGeneration("dashboard", 7)

			Expect(testutil.ToFloat64(m.Cycles.WithLabelValues("dashboard", "degraded"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(m.Degraded.WithLabelValues("dashboard", "pumps"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(m.Generation.WithLabelValues("dashboard"))).To(Equal(7.0))
		})
	})

	It("tolerates nil receivers", func() {
		var (
			fm *metrics.FrontendMetrics
			cm *metrics.ClientMetrics
			pm *metrics.PollMetrics
			gm *metrics.ProducerMetrics
		)
		Expect(func() {
			fm.ObserveMutation("create_pump", "success")
			cm.Observe("water", "ListAlerts", time.Second, nil)
			pm.ObserveCycle("alerts", "complete", time.Second, nil)
			pm.ObserveCoalesced("alerts")
			pm.ObserveDiscarded("alerts")
			pm.ObserveGeneration("alerts", 1)
			gm.ObserveRecord("flow", nil)
		}).NotTo(Panic())
	})

	It("exposes a gatherer over HTTP", func() {
		m := metrics.NewProducerMetrics(reg, "test")
		m.ObserveRecord("consumption", nil)

		srv := httptest.NewServer(metrics.HandlerFor(reg))
		DeferCleanup(srv.Close)

		resp, err := http.Get(srv.URL)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("test_producer_records_generated_total"))
	})
})
