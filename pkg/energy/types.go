package energy

import (
	"irriflow.dev/dashboard/pkg/rest"
)

// PumpStatus is the operating state of a pump.
type PumpStatus string

const (
	StatusActive      PumpStatus = "ACTIVE"
	StatusInactive    PumpStatus = "INACTIVE"
	StatusMaintenance PumpStatus = "MAINTENANCE"
)

// Statuses lists every PumpStatus in display order.
var Statuses = []PumpStatus{StatusActive, StatusInactive, StatusMaintenance}

// Valid reports whether s is one of the known statuses.
func (s PumpStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance:
		return true
	}
	return false
}

// Pump is an electrically-powered irrigation pump.
type Pump struct {
	ID             int64      `json:"id"`
	Reference      string     `json:"reference"`
	PowerWatts     float64    `json:"puissance"`
	Status         PumpStatus `json:"statut"`
	CommissionedOn rest.Date  `json:"dateMiseEnService"`
}

// Active reports whether the pump is currently running.
func (p Pump) Active() bool {
	return p.Status == StatusActive
}

// PumpInput is the payload for creating or replacing a pump.
type PumpInput struct {
	Reference      string     `json:"reference"`
	PowerWatts     float64    `json:"puissance"`
	Status         PumpStatus `json:"statut"`
	CommissionedOn rest.Date  `json:"dateMiseEnService"`
}

// ConsumptionRecord is one measured energy draw of a pump.
type ConsumptionRecord struct {
	ID            int64          `json:"id"`
	PumpID        int64          `json:"pompeId"`
	EnergyKWh     float64        `json:"energieUtilisee"`
	DurationHours float64        `json:"duree"`
	MeasuredAt    rest.Timestamp `json:"dateMesure"`
}

// ConsumptionInput is the payload for recording a consumption measurement.
type ConsumptionInput struct {
	PumpID        int64          `json:"pompeId"`
	EnergyKWh     float64        `json:"energieUtilisee"`
	DurationHours float64        `json:"duree"`
	MeasuredAt    rest.Timestamp `json:"dateMesure"`
}
