package generator_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/generator"
	"irriflow.dev/dashboard/pkg/water"
)

var _ = Describe("Source", func() {
	var (
		src *generator.Source
		now time.Time
	)

	BeforeEach(func() {
		src = generator.New(42)
		now = time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	})

	It("generates active pumps with a reference and a rated power", func() {
		for range 20 {
			p := src.Pump(now)
			Expect(p.Reference).To(MatchRegexp(`^P-\d{3}$`))
			Expect(p.PowerWatts).To(BeNumerically(">=", 500))
			Expect(p.PowerWatts).To(BeNumerically("<=", 5500))
			Expect(p.Status).To(Equal(energy.StatusActive))
			Expect(p.CommissionedOn.Time).To(BeTemporally("<=", now))
			Expect(p.CommissionedOn.Time).To(BeTemporally(">=", now.AddDate(-3, 0, -1)))
		}
	})

	It("generates reservoirs that are never overfull", func() {
		for range 20 {
			r := src.Reservoir()
			Expect(r.Name).NotTo(BeEmpty())
			Expect(r.CapacityLiters).To(BeNumerically(">", 0))
			Expect(r.VolumeLiters).To(BeNumerically("<=", r.CapacityLiters))
		}
	})

	It("generates measurements for the given pump and time", func() {
		pump := energy.Pump{ID: 7, PowerWatts: 2000}

		c := src.Consumption(pump, now)
		Expect(c.PumpID).To(Equal(int64(7)))
		Expect(c.EnergyKWh).To(BeNumerically(">", 0))
		Expect(c.DurationHours).To(BeNumerically(">=", 0.5))
		Expect(c.MeasuredAt.Time).To(Equal(now))

		f := src.Flow(pump, now)
		Expect(f.PumpID).To(Equal(int64(7)))
		Expect(f.Unit).To(Equal(water.LitersPerMinute))
		Expect(f.Rate).To(BeNumerically(">", 0))
	})

	It("is reproducible for a seed", func() {
		other := generator.New(42)
		Expect(other.Pump(now)).To(Equal(src.Pump(now)))
		Expect(other.Reservoir()).To(Equal(src.Reservoir()))
	})

	It("picks among pumps", func() {
		_, ok := src.Pick(nil)
		Expect(ok).To(BeFalse())

		pumps := []energy.Pump{{ID: 1}, {ID: 2}}
		p, ok := src.Pick(pumps)
		Expect(ok).To(BeTrue())
		Expect(p.ID).To(BeElementOf(int64(1), int64(2)))
	})
})
