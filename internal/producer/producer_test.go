package producer_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"irriflow.dev/dashboard/internal/alertfeed"
	"irriflow.dev/dashboard/internal/producer"
	"irriflow.dev/dashboard/internal/views/mock"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/generator"
	"irriflow.dev/dashboard/pkg/logger"
	mqmock "irriflow.dev/dashboard/pkg/mq/mock"
	"irriflow.dev/dashboard/pkg/water"
)

var _ = Describe("Producer", func() {
	var (
		ctx     context.Context
		energyS *mock.Energy
		waterS  *mock.Water
		p       *producer.Producer
	)

	BeforeEach(func() {
		ctx = context.Background()
		energyS = mock.NewEnergy([]energy.Pump{
			{ID: 1, Reference: "P-001", PowerWatts: 1500, Status: energy.StatusActive},
			{ID: 2, Reference: "P-002", PowerWatts: 2000, Status: energy.StatusMaintenance},
		}, nil)
		waterS = mock.NewWater([]water.Reservoir{{ID: 1, Name: "North", CapacityLiters: 10000}}, nil, nil)
		p = producer.NewProducer(energyS, waterS, generator.New(42))
	})

	Describe("Seed", func() {
		It("should create only the missing pumps and reservoirs", func() {
			Expect(p.Seed(ctx, 4, 3, logger.Discard())).To(Succeed())

			pumps, err := energyS.ListPumps(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pumps).To(HaveLen(4))
			Expect(p.Pumps()).To(HaveLen(4))

			reservoirs, err := waterS.ListReservoirs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(reservoirs).To(HaveLen(3))
			Expect(energyS.Calls("CreatePump")).To(Equal(2))
			Expect(waterS.Calls("CreateReservoir")).To(Equal(2))
		})

		It("should create nothing when enough entities exist", func() {
			Expect(p.Seed(ctx, 1, 1, logger.Discard())).To(Succeed())
			Expect(energyS.Calls("CreatePump")).To(BeZero())
			Expect(waterS.Calls("CreateReservoir")).To(BeZero())
			Expect(p.Pumps()).To(HaveLen(2))
		})

		It("should fail when the pumps cannot be listed", func() {
			energyS.Fail("ListPumps", errors.New("down"))
			Expect(p.Seed(ctx, 1, 1, logger.Discard())).To(MatchError(ContainSubstring("list pumps")))
		})

		It("should fail when a reservoir cannot be created", func() {
			waterS.Fail("CreateReservoir", errors.New("down"))
			Expect(p.Seed(ctx, 0, 2, logger.Discard())).To(MatchError(ContainSubstring("create reservoir")))
		})
	})

	Describe("RandomDataPoint", func() {
		It("should post a consumption and a flow for an active pump", func() {
			Expect(p.Seed(ctx, 0, 0, logger.Discard())).To(Succeed())
			Expect(p.RandomDataPoint(ctx)).To(Succeed())

			records, err := energyS.ListConsumption(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].PumpID).To(Equal(int64(1)))

			flows, err := waterS.ListFlows(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(flows).To(HaveLen(1))
			Expect(flows[0].PumpID).To(Equal(int64(1)))
			Expect(flows[0].Unit).To(Equal(water.LitersPerMinute))
		})

		It("should still post the flow when the consumption fails", func() {
			Expect(p.Seed(ctx, 0, 0, logger.Discard())).To(Succeed())
			energyS.Fail("CreateConsumption", errors.New("down"))

			err := p.RandomDataPoint(ctx)
			Expect(err).To(MatchError(ContainSubstring("record consumption of pump 1")))
			Expect(waterS.Calls("CreateFlow")).To(Equal(1))
		})

		It("should fail without an active pump", func() {
			Expect(p.RandomDataPoint(ctx)).To(MatchError(ContainSubstring("no active pump")))
			Expect(energyS.Calls("CreateConsumption")).To(BeZero())
		})
	})
})

var _ = Describe("Relay", func() {
	var (
		ctx       context.Context
		waterS    *mock.Water
		publisher *mqmock.MockClient
		relay     *producer.Relay
		value     = 4.2
	)

	BeforeEach(func() {
		ctx = context.Background()
		waterS = mock.NewWater(nil, nil, []water.Alert{
			{ID: 30, Type: "SURCONSOMMATION", PumpID: 1, Value: &value},
			{ID: 31, Type: "SURCONSOMMATION", PumpID: 2, Resolved: true},
		})
		publisher = &mqmock.MockClient{}
		relay = producer.NewRelay(waterS, publisher, nil)
	})

	It("should publish each unresolved alert once", func() {
		published, err := relay.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(published).To(Equal(1))

		bodies := publisher.PublishedBodies()
		Expect(bodies).To(HaveLen(1))
		var event alertfeed.Event
		Expect(json.Unmarshal(bodies[0], &event)).To(Succeed())
		Expect(event.AlertID).To(Equal(int64(30)))
		Expect(event.PumpID).To(Equal(int64(1)))
		Expect(*event.Value).To(Equal(4.2))

		published, err = relay.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(published).To(BeZero())
		Expect(publisher.PublishedBodies()).To(HaveLen(1))
	})

	It("should retry alerts whose publish failed", func() {
		publisher.PublishError = errors.New("broker down")
		_, err := relay.Announce(ctx)
		Expect(err).To(MatchError(ContainSubstring("publish alert 30")))

		publisher.PublishError = nil
		published, err := relay.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(published).To(Equal(1))
	})

	It("should announce alerts raised later", func() {
		_, err := relay.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())

		waterS.AddAlert(water.Alert{Type: "SURCONSOMMATION", PumpID: 3})
		published, err := relay.Announce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(published).To(Equal(1))
	})
})
