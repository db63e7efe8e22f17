// Package generator produces plausible irrigation data: pumps, reservoirs
// and the consumption and flow measurements they would report.
package generator

import (
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/rest"
	"irriflow.dev/dashboard/pkg/water"
)

// PumpFake is the faked part of a new pump.
type PumpFake struct {
	Serial     int     `fake:"{number:1,999}"`
	PowerWatts float64 `fake:"{float64range:500,5500}"`
}

// ReservoirFake is the faked part of a new reservoir.
type ReservoirFake struct {
	Name     string  `fake:"{city}"`
	Location string  `fake:"{street}"`
	Capacity float64 `fake:"{float64range:5000,50000}"`
	FillRate float64 `fake:"{float64range:0.2,0.95}"`
}

// Source generates records. A Source is not safe for concurrent use.
type Source struct {
	faker *gofakeit.Faker
}

// New returns a Source seeded with seed. Zero picks a random seed.
func New(seed uint64) *Source {
	return &Source{faker: gofakeit.New(seed)}
}

// Pump returns a new pump commissioned within the last three years.
func (s *Source) Pump(now time.Time) energy.PumpInput {
	var fake PumpFake
	if err := s.faker.Struct(&fake); err != nil {
		fake = PumpFake{Serial: s.faker.Number(1, 999), PowerWatts: 1500}
	}
	commissioned := s.faker.DateRange(now.AddDate(-3, 0, 0), now)
	return energy.PumpInput{
		Reference:      fmt.Sprintf("P-%03d", fake.Serial),
		PowerWatts:     math.Round(fake.PowerWatts/50) * 50,
		Status:         energy.StatusActive,
		CommissionedOn: rest.Date{Time: time.Date(commissioned.Year(), commissioned.Month(), commissioned.Day(), 0, 0, 0, 0, time.UTC)},
	}
}

// Reservoir returns a new, partially filled reservoir.
func (s *Source) Reservoir() water.ReservoirInput {
	var fake ReservoirFake
	if err := s.faker.Struct(&fake); err != nil {
		fake = ReservoirFake{Name: "Reservoir", Location: "Field", Capacity: 10000, FillRate: 0.5}
	}
	capacity := math.Round(fake.Capacity/100) * 100
	return water.ReservoirInput{
		Name:           fake.Name,
		CapacityLiters: capacity,
		VolumeLiters:   math.Round(capacity * fake.FillRate),
		Location:       fake.Location,
	}
}

// irrigationLoad is the share of rated power drawn at t. Irrigation runs
// mostly at dawn and dusk.
func irrigationLoad(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	dawn := math.Exp(-math.Pow(hour-6, 2) / 4)
	dusk := math.Exp(-math.Pow(hour-19, 2) / 4)
	return 0.2 + 0.8*math.Max(dawn, dusk)
}

// Consumption returns a measurement of p taken at t. About one in twenty
// readings is a spike well above the rated draw, which is what the water
// service raises over-consumption alerts for.
func (s *Source) Consumption(p energy.Pump, t time.Time) energy.ConsumptionInput {
	duration := math.Round(s.faker.Float64Range(0.5, 4)*10) / 10
	kw := p.PowerWatts / 1000
	energyKWh := kw * duration * irrigationLoad(t) * s.faker.Float64Range(0.9, 1.1)
	if s.faker.Float64() < 0.05 {
		energyKWh *= s.faker.Float64Range(2, 3)
	}
	return energy.ConsumptionInput{
		PumpID:        p.ID,
		EnergyKWh:     math.Round(energyKWh*10) / 10,
		DurationHours: duration,
		MeasuredAt:    rest.NewTimestamp(t),
	}
}

// Flow returns a flow measurement of pump id taken at t, in liters per
// minute and roughly proportional to its rated power.
func (s *Source) Flow(p energy.Pump, t time.Time) water.FlowInput {
	base := p.PowerWatts / 1000 * 25
	rate := base * irrigationLoad(t) * s.faker.Float64Range(0.85, 1.15)
	return water.FlowInput{
		PumpID:     p.ID,
		Rate:       math.Round(rate*10) / 10,
		Unit:       water.LitersPerMinute,
		MeasuredAt: rest.NewTimestamp(t),
	}
}

// Pick returns a random pump, or false when pumps is empty.
func (s *Source) Pick(pumps []energy.Pump) (energy.Pump, bool) {
	if len(pumps) == 0 {
		return energy.Pump{}, false
	}
	return pumps[s.faker.IntRange(0, len(pumps)-1)], true
}
