package views_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"irriflow.dev/dashboard/internal/views"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/water"
)

var _ = Describe("Derived metrics", func() {
	Describe("fill levels", func() {
		It("renders 7500 of 10000 liters as 75%", func() {
			r := water.Reservoir{CapacityLiters: 10000, VolumeLiters: 7500}
			Expect(views.FillPercent(r)).To(Equal(75.0))
		})

		It("yields 0 for a reservoir without capacity", func() {
			Expect(views.FillPercent(water.Reservoir{CapacityLiters: 0, VolumeLiters: 20})).To(BeZero())
		})

		It("yields 0 when there are no reservoirs", func() {
			Expect(views.AverageFill(nil)).To(BeZero())
			Expect(views.GlobalFill(nil)).To(BeZero())
		})

		It("averages per-reservoir levels and weighs the global rate by capacity", func() {
			reservoirs := []water.Reservoir{
				{CapacityLiters: 1000, VolumeLiters: 1000},
				{CapacityLiters: 3000, VolumeLiters: 0},
			}
			Expect(views.AverageFill(reservoirs)).To(Equal(50.0))
			Expect(views.TotalCapacity(reservoirs)).To(Equal(4000.0))
			Expect(views.TotalVolume(reservoirs)).To(Equal(1000.0))
			Expect(views.GlobalFill(reservoirs)).To(Equal(25.0))
		})
	})

	Describe("pumps and consumption", func() {
		records := []energy.ConsumptionRecord{
			{PumpID: 1, EnergyKWh: 100},
			{PumpID: 1, EnergyKWh: 50},
			{PumpID: 2, EnergyKWh: 30},
		}

		It("totals consumption per pump", func() {
			Expect(views.PumpEnergy(records, 1)).To(Equal(150.0))
			Expect(views.PumpEnergy(records, 2)).To(Equal(30.0))
			Expect(views.PumpEnergy(records, 3)).To(BeZero())
			Expect(views.TotalEnergy(records)).To(Equal(180.0))
		})

		It("counts active pumps", func() {
			pumps := []energy.Pump{
				{ID: 1, Status: energy.StatusActive},
				{ID: 2, Status: energy.StatusMaintenance},
				{ID: 3, Status: energy.StatusActive},
				{ID: 4, Status: energy.StatusInactive},
			}
			Expect(views.ActivePumps(pumps)).To(Equal(2))
			Expect(views.ActiveRatio(pumps)).To(Equal(50.0))
			Expect(views.ActiveRatio(nil)).To(BeZero())
		})
	})

	DescribeTable("Percent guards the denominator",
		func(part, whole, want float64) {
			Expect(views.Percent(part, whole)).To(Equal(want))
		},
		Entry("regular", 1.0, 4.0, 25.0),
		Entry("zero whole", 5.0, 0.0, 0.0),
		Entry("negative whole", 5.0, -10.0, 0.0),
	)

	Describe("Latest and First", func() {
		items := []int{1, 2, 3, 4, 5}

		It("returns the newest items first", func() {
			Expect(views.Latest(items, 3)).To(Equal([]int{5, 4, 3}))
			Expect(views.Latest(items, 10)).To(Equal([]int{5, 4, 3, 2, 1}))
			Expect(views.Latest(items, 0)).To(BeEmpty())
		})

		It("returns leading items", func() {
			Expect(views.First(items, 2)).To(Equal([]int{1, 2}))
			Expect(views.First(items, 9)).To(HaveLen(5))
			Expect(views.First([]int(nil), 3)).To(BeEmpty())
		})
	})

	It("counts unresolved alerts", func() {
		alerts := []water.Alert{{Resolved: false}, {Resolved: true}, {Resolved: false}}
		Expect(views.UnresolvedAlerts(alerts)).To(Equal(2))
	})
})

var _ = Describe("AlertFilter", func() {
	alerts := []water.Alert{
		{ID: 1, Resolved: false},
		{ID: 2, Resolved: true},
		{ID: 3, Resolved: false},
		{ID: 4, Resolved: true},
		{ID: 5, Resolved: false},
	}

	ids := func(in []water.Alert) []int64 {
		out := make([]int64, 0, len(in))
		for _, a := range in {
			out = append(out, a.ID)
		}
		return out
	}

	It("keeps exactly the unresolved alerts when pending", func() {
		Expect(ids(views.FilterPending.Apply(alerts))).To(Equal([]int64{1, 3, 5}))
	})

	It("keeps the complement when resolved", func() {
		Expect(ids(views.FilterResolved.Apply(alerts))).To(Equal([]int64{2, 4}))
	})

	It("keeps everything by default", func() {
		Expect(views.FilterAll.Apply(alerts)).To(HaveLen(5))
	})

	It("has counts that sum to the total", func() {
		c := views.CountAlerts(alerts)
		Expect(c.All).To(Equal(5))
		Expect(c.Pending + c.Resolved).To(Equal(c.All))
		Expect(c.For(views.FilterPending)).To(Equal(3))
		Expect(c.For(views.FilterResolved)).To(Equal(2))
	})

	DescribeTable("parsing query values",
		func(in string, want views.AlertFilter) {
			Expect(views.ParseAlertFilter(in)).To(Equal(want))
		},
		Entry("empty", "", views.FilterAll),
		Entry("pending", "pending", views.FilterPending),
		Entry("mixed case", " Resolved ", views.FilterResolved),
		Entry("unknown", "archived", views.FilterAll),
	)
})

var _ = Describe("Routes", func() {
	It("maps every navigable path", func() {
		for path, kind := range map[string]views.Kind{
			"/":       views.Dashboard,
			"/energy": views.Energy,
			"/water/": views.Water,
			"/alerts": views.Alerts,
		} {
			r, ok := views.Lookup(path)
			Expect(ok).To(BeTrue(), path)
			Expect(r.Kind).To(Equal(kind))
		}
	})

	It("rejects unknown paths", func() {
		_, ok := views.Lookup("/settings")
		Expect(ok).To(BeFalse())
	})

	It("highlights a section for its sub pages", func() {
		Expect(views.Energy.Route().Active("/energy/pumps/3")).To(BeTrue())
		Expect(views.Dashboard.Route().Active("/energy")).To(BeFalse())
		Expect(views.Routes()).To(HaveLen(4))
	})
})
