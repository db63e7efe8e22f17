package views

import (
	"context"

	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/water"
)

// EnergyReader is the read side of the energy service.
type EnergyReader interface {
	ListPumps(ctx context.Context) ([]energy.Pump, error)
	GetPump(ctx context.Context, id int64) (*energy.Pump, error)
	CheckAvailability(ctx context.Context, id int64) (bool, error)
	ListConsumption(ctx context.Context) ([]energy.ConsumptionRecord, error)
	ListConsumptionByPump(ctx context.Context, pumpID int64) ([]energy.ConsumptionRecord, error)
	TotalConsumption(ctx context.Context, pumpID int64) (float64, error)
}

// EnergyWriter is the write side of the energy service.
type EnergyWriter interface {
	CreatePump(ctx context.Context, in energy.PumpInput) (*energy.Pump, error)
	UpdatePump(ctx context.Context, id int64, in energy.PumpInput) (*energy.Pump, error)
	DeletePump(ctx context.Context, id int64) error
	CreateConsumption(ctx context.Context, in energy.ConsumptionInput) (*energy.ConsumptionRecord, error)
}

// EnergyAPI is everything the views need from the energy service.
type EnergyAPI interface {
	EnergyReader
	EnergyWriter
}

// WaterReader is the read side of the water service.
type WaterReader interface {
	ListReservoirs(ctx context.Context) ([]water.Reservoir, error)
	GetReservoir(ctx context.Context, id int64) (*water.Reservoir, error)
	FillLevel(ctx context.Context, id int64) (float64, error)
	ListFlows(ctx context.Context) ([]water.FlowRecord, error)
	ListFlowsByPump(ctx context.Context, pumpID int64) ([]water.FlowRecord, error)
	AverageFlow(ctx context.Context, pumpID int64) (float64, error)
	ListAlerts(ctx context.Context) ([]water.Alert, error)
	ListUnresolvedAlerts(ctx context.Context) ([]water.Alert, error)
}

// WaterWriter is the write side of the water service.
type WaterWriter interface {
	CreateReservoir(ctx context.Context, in water.ReservoirInput) (*water.Reservoir, error)
	UpdateReservoir(ctx context.Context, id int64, in water.ReservoirInput) (*water.Reservoir, error)
	DeleteReservoir(ctx context.Context, id int64) error
	CreateFlow(ctx context.Context, in water.FlowInput) (*water.FlowRecord, error)
	ResolveAlert(ctx context.Context, id int64) (*water.Alert, error)
	StartPump(ctx context.Context, pumpID int64) (water.StartPumpResult, error)
}

// WaterAPI is everything the views need from the water service.
type WaterAPI interface {
	WaterReader
	WaterWriter
}

var (
	_ EnergyAPI = (*energy.Client)(nil)
	_ WaterAPI  = (*water.Client)(nil)
)

// DashboardState is the overview: every pump and reservoir, all
// consumption records and the alerts still waiting to be handled.
type DashboardState struct {
	Pumps       poll.Result[energy.Pump]
	Reservoirs  poll.Result[water.Reservoir]
	Consumption poll.Result[energy.ConsumptionRecord]
	Alerts      poll.Result[water.Alert]
}

// DashboardSources fetches the four dashboard collections.
func DashboardSources(e EnergyReader, w WaterReader) []poll.Source[DashboardState] {
	return []poll.Source[DashboardState]{
		poll.Collection("pumps", e.ListPumps, func(s *DashboardState) *poll.Result[energy.Pump] { return &s.Pumps }),
		poll.Collection("reservoirs", w.ListReservoirs, func(s *DashboardState) *poll.Result[water.Reservoir] { return &s.Reservoirs }),
		poll.Collection("consumption", e.ListConsumption, func(s *DashboardState) *poll.Result[energy.ConsumptionRecord] { return &s.Consumption }),
		poll.Collection("unresolved_alerts", w.ListUnresolvedAlerts, func(s *DashboardState) *poll.Result[water.Alert] { return &s.Alerts }),
	}
}

// EnergyState backs pump management.
type EnergyState struct {
	Pumps       poll.Result[energy.Pump]
	Consumption poll.Result[energy.ConsumptionRecord]
}

// EnergySources fetches pumps and consumption records.
func EnergySources(e EnergyReader) []poll.Source[EnergyState] {
	return []poll.Source[EnergyState]{
		poll.Collection("pumps", e.ListPumps, func(s *EnergyState) *poll.Result[energy.Pump] { return &s.Pumps }),
		poll.Collection("consumption", e.ListConsumption, func(s *EnergyState) *poll.Result[energy.ConsumptionRecord] { return &s.Consumption }),
	}
}

// WaterState backs reservoir management.
type WaterState struct {
	Reservoirs poll.Result[water.Reservoir]
	Flows      poll.Result[water.FlowRecord]
}

// WaterSources fetches reservoirs and flow records.
func WaterSources(w WaterReader) []poll.Source[WaterState] {
	return []poll.Source[WaterState]{
		poll.Collection("reservoirs", w.ListReservoirs, func(s *WaterState) *poll.Result[water.Reservoir] { return &s.Reservoirs }),
		poll.Collection("flows", w.ListFlows, func(s *WaterState) *poll.Result[water.FlowRecord] { return &s.Flows }),
	}
}

// AlertsState holds every alert, handled or not. Filtering happens at render.
type AlertsState struct {
	Alerts poll.Result[water.Alert]
}

// AlertsSources fetches all alerts.
func AlertsSources(w WaterReader) []poll.Source[AlertsState] {
	return []poll.Source[AlertsState]{
		poll.Collection("alerts", w.ListAlerts, func(s *AlertsState) *poll.Result[water.Alert] { return &s.Alerts }),
	}
}

// PumpDetailState is one pump with what both services know about it.
type PumpDetailState struct {
	ID          int64
	Pump        poll.Value[energy.Pump]
	Available   poll.Value[bool]
	Consumption poll.Result[energy.ConsumptionRecord]
	Total       poll.Value[float64]
	Flows       poll.Result[water.FlowRecord]
	AverageFlow poll.Value[float64]
}

// PumpDetailSources fetches everything about pump id.
func PumpDetailSources(id int64, e EnergyReader, w WaterReader) []poll.Source[PumpDetailState] {
	return []poll.Source[PumpDetailState]{
		poll.Single("pump", func(ctx context.Context) (energy.Pump, error) {
			p, err := e.GetPump(ctx, id)
			if err != nil {
				return energy.Pump{}, err
			}
			return *p, nil
		}, func(s *PumpDetailState) *poll.Value[energy.Pump] { s.ID = id; return &s.Pump }),
		poll.Single("availability", func(ctx context.Context) (bool, error) {
			return e.CheckAvailability(ctx, id)
		}, func(s *PumpDetailState) *poll.Value[bool] { return &s.Available }),
		poll.Collection("consumption", func(ctx context.Context) ([]energy.ConsumptionRecord, error) {
			return e.ListConsumptionByPump(ctx, id)
		}, func(s *PumpDetailState) *poll.Result[energy.ConsumptionRecord] { return &s.Consumption }),
		poll.Single("total_consumption", func(ctx context.Context) (float64, error) {
			return e.TotalConsumption(ctx, id)
		}, func(s *PumpDetailState) *poll.Value[float64] { return &s.Total }),
		poll.Collection("flows", func(ctx context.Context) ([]water.FlowRecord, error) {
			return w.ListFlowsByPump(ctx, id)
		}, func(s *PumpDetailState) *poll.Result[water.FlowRecord] { return &s.Flows }),
		poll.Single("average_flow", func(ctx context.Context) (float64, error) {
			return w.AverageFlow(ctx, id)
		}, func(s *PumpDetailState) *poll.Value[float64] { return &s.AverageFlow }),
	}
}

// ReservoirDetailState is one reservoir and the fill level reported by the
// water service.
type ReservoirDetailState struct {
	ID        int64
	Reservoir poll.Value[water.Reservoir]
	Level     poll.Value[float64]
}

// ReservoirDetailSources fetches reservoir id and its fill level.
func ReservoirDetailSources(id int64, w WaterReader) []poll.Source[ReservoirDetailState] {
	return []poll.Source[ReservoirDetailState]{
		poll.Single("reservoir", func(ctx context.Context) (water.Reservoir, error) {
			r, err := w.GetReservoir(ctx, id)
			if err != nil {
				return water.Reservoir{}, err
			}
			return *r, nil
		}, func(s *ReservoirDetailState) *poll.Value[water.Reservoir] { s.ID = id; return &s.Reservoir }),
		poll.Single("fill_level", func(ctx context.Context) (float64, error) {
			return w.FillLevel(ctx, id)
		}, func(s *ReservoirDetailState) *poll.Value[float64] { return &s.Level }),
	}
}
