package alertfeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"irriflow.dev/dashboard/internal/alertfeed"
	"irriflow.dev/dashboard/internal/frontend"
	"irriflow.dev/dashboard/internal/producer"
	"irriflow.dev/dashboard/internal/views/mock"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/mq"
	"irriflow.dev/dashboard/pkg/water"
)

var _ = Describe("Alert feed E2E", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		exchange  string
		energyAPI *mock.Energy
		waterAPI  *mock.Water
		server    *frontend.Server
		ts        *httptest.Server
		consumer  *alertfeed.Consumer
		publisher *mq.Client
		events    chan alertfeed.Event
		mqMetrics *metrics.MQMetrics
	)

	connect := func() *mq.Client {
		client, err := mq.New(mq.Config{URL: rabbitmqURL, Exchange: exchange, Logger: testLogger, Metrics: mqMetrics})
		Expect(err).NotTo(HaveOccurred())
		readyCtx, readyCancel := context.WithTimeout(ctx, 15*time.Second)
		defer readyCancel()
		Expect(client.WaitReady(readyCtx)).To(Succeed())
		return client
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		exchange = "alerts-" + time.Now().Format("20060102-150405.000")
		mqMetrics = metrics.NewMQMetrics(prometheus.NewRegistry(), "e2e")

		energyAPI = mock.NewEnergy([]energy.Pump{{ID: 1, Reference: "P-001", PowerWatts: 1500, Status: energy.StatusActive}}, nil)
		waterAPI = mock.NewWater(nil, nil, nil)

		var err error
		server, err = frontend.NewServer(&frontend.ServerConfig{
			Logger:            testLogger,
			HTTPPort:          8080,
			Energy:            energyAPI,
			Water:             waterAPI,
			DashboardInterval: time.Hour,
			AlertsInterval:    time.Hour,
		})
		Expect(err).NotTo(HaveOccurred())
		ts = httptest.NewServer(server.Handler())

		events = make(chan alertfeed.Event, 8)
		refresh := alertfeed.RefreshViews(server, "dashboard", "alerts")
		record := alertfeed.NotifierFunc(func(ctx context.Context, e alertfeed.Event) error {
			events <- e
			return refresh.Notify(ctx, e)
		})
		consumer, err = alertfeed.NewConsumer(&alertfeed.ConsumerConfig{
			Logger:   testLogger,
			Client:   connect(),
			Notifier: record,
			Exchange: exchange,
			Metrics:  mqMetrics,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(consumer.Start(ctx)).To(Succeed())

		publisher = connect()
	})

	AfterEach(func() {
		cancel()
		_ = consumer.Stop()
		_ = publisher.Close()
		ts.Close()
		server.Close()
	})

	It("should refresh a mounted dashboard when the relay announces an alert", func() {
		resp, err := http.Get(ts.URL + "/")
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		before := energyAPI.Calls("ListPumps")

		value := 12.5
		waterAPI.AddAlert(water.Alert{Type: "SURCONSOMMATION", PumpID: 1, Message: "Over threshold", Value: &value})

		relay := producer.NewRelay(waterAPI, publisher, nil)
		published, err := relay.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(published).To(Equal(1))

		var event alertfeed.Event
		Eventually(events, 10*time.Second).Should(Receive(&event))
		Expect(event.PumpID).To(Equal(int64(1)))
		Expect(*event.Value).To(Equal(12.5))

		Eventually(func() int { return energyAPI.Calls("ListPumps") }, 5*time.Second).Should(BeNumerically(">", before))
	})

	It("should skip malformed events and keep consuming", func() {
		Expect(publisher.Publish(ctx, []byte("not json"))).To(Succeed())
		Expect(publisher.Publish(ctx, []byte(`{"alerteId":7,"pompeId":2,"type":"SURCONSOMMATION"}`))).To(Succeed())

		var event alertfeed.Event
		Eventually(events, 10*time.Second).Should(Receive(&event))
		Expect(event.AlertID).To(Equal(int64(7)))
		Eventually(func() float64 {
			return testutil.ToFloat64(mqMetrics.ConsumptionFailures.WithLabelValues(exchange, "parse"))
		}, 5*time.Second).Should(Equal(1.0))
	})
})
