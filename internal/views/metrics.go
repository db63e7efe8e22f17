package views

import (
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/water"
)

// Derived values are recomputed from the snapshot on every render.

// Percent returns part/whole*100, or 0 when whole is not positive.
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

// ActivePumps counts pumps with status ACTIVE.
func ActivePumps(pumps []energy.Pump) int {
	n := 0
	for _, p := range pumps {
		if p.Active() {
			n++
		}
	}
	return n
}

// ActiveRatio is the share of active pumps in percent.
func ActiveRatio(pumps []energy.Pump) float64 {
	return Percent(float64(ActivePumps(pumps)), float64(len(pumps)))
}

// TotalEnergy sums the energy of every record, in kWh.
func TotalEnergy(records []energy.ConsumptionRecord) float64 {
	var sum float64
	for _, r := range records {
		sum += r.EnergyKWh
	}
	return sum
}

// PumpEnergy sums the energy recorded for pump id.
func PumpEnergy(records []energy.ConsumptionRecord, id int64) float64 {
	var sum float64
	for _, r := range records {
		if r.PumpID == id {
			sum += r.EnergyKWh
		}
	}
	return sum
}

// FillPercent is the fill level of r, 0 when its capacity is not positive.
func FillPercent(r water.Reservoir) float64 {
	return Percent(r.VolumeLiters, r.CapacityLiters)
}

// AverageFill is the mean fill level over reservoirs, 0 when there are none.
func AverageFill(reservoirs []water.Reservoir) float64 {
	if len(reservoirs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reservoirs {
		sum += FillPercent(r)
	}
	return sum / float64(len(reservoirs))
}

// TotalCapacity sums reservoir capacities, in liters.
func TotalCapacity(reservoirs []water.Reservoir) float64 {
	var sum float64
	for _, r := range reservoirs {
		sum += r.CapacityLiters
	}
	return sum
}

// TotalVolume sums current reservoir volumes, in liters.
func TotalVolume(reservoirs []water.Reservoir) float64 {
	var sum float64
	for _, r := range reservoirs {
		sum += r.VolumeLiters
	}
	return sum
}

// GlobalFill is total volume over total capacity, in percent.
func GlobalFill(reservoirs []water.Reservoir) float64 {
	return Percent(TotalVolume(reservoirs), TotalCapacity(reservoirs))
}

// UnresolvedAlerts counts alerts not yet handled.
func UnresolvedAlerts(alerts []water.Alert) int {
	n := 0
	for _, a := range alerts {
		if !a.Resolved {
			n++
		}
	}
	return n
}

// Latest returns the last n items, newest first. Collections arrive in
// creation order.
func Latest[T any](items []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}
	out := make([]T, 0, n)
	for i := len(items) - 1; i >= len(items)-n; i-- {
		out = append(out, items[i])
	}
	return out
}

// First returns at most n leading items.
func First[T any](items []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}

// PumpsByID indexes pumps for lookups while rendering records.
func PumpsByID(pumps []energy.Pump) map[int64]energy.Pump {
	m := make(map[int64]energy.Pump, len(pumps))
	for _, p := range pumps {
		m[p.ID] = p
	}
	return m
}
