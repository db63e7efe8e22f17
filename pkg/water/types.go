package water

import (
	"irriflow.dev/dashboard/pkg/rest"
)

// Reservoir is a water storage tank. Its fill ratio is always derived.
type Reservoir struct {
	ID             int64   `json:"id"`
	Name           string  `json:"nom"`
	CapacityLiters float64 `json:"capaciteTotale"`
	VolumeLiters   float64 `json:"volumeActuel"`
	Location       string  `json:"localisation"`
}

// ReservoirInput is the payload for creating or replacing a reservoir.
type ReservoirInput struct {
	Name           string  `json:"nom"`
	CapacityLiters float64 `json:"capaciteTotale"`
	VolumeLiters   float64 `json:"volumeActuel"`
	Location       string  `json:"localisation"`
}

// FlowUnit is the unit a flow rate is expressed in.
type FlowUnit string

const (
	LitersPerMinute    FlowUnit = "L/min"
	LitersPerHour      FlowUnit = "L/h"
	CubicMetersPerHour FlowUnit = "m³/h"
)

// FlowUnits lists every FlowUnit in display order.
var FlowUnits = []FlowUnit{LitersPerMinute, LitersPerHour, CubicMetersPerHour}

// Valid reports whether u is one of the known units.
func (u FlowUnit) Valid() bool {
	switch u {
	case LitersPerMinute, LitersPerHour, CubicMetersPerHour:
		return true
	}
	return false
}

// FlowRecord is one measured flow rate of a pump.
type FlowRecord struct {
	ID         int64          `json:"id"`
	PumpID     int64          `json:"pompeId"`
	Rate       float64        `json:"debit"`
	Unit       FlowUnit       `json:"unite"`
	MeasuredAt rest.Timestamp `json:"dateMesure"`
}

// FlowInput is the payload for recording a flow measurement.
type FlowInput struct {
	PumpID     int64          `json:"pompeId"`
	Rate       float64        `json:"debit"`
	Unit       FlowUnit       `json:"unite"`
	MeasuredAt rest.Timestamp `json:"dateMesure"`
}

// Alert is a backend-raised notice about a pump, typically over-consumption.
type Alert struct {
	ID       int64          `json:"id"`
	Type     string         `json:"type"`
	PumpID   int64          `json:"pompeId"`
	Message  string         `json:"message"`
	Value    *float64       `json:"valeur"`
	RaisedAt rest.Timestamp `json:"dateAlerte"`
	Resolved bool           `json:"traitee"`
}

// StartPumpResult is the water service's verdict on a pump start command.
type StartPumpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
