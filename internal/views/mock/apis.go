// Package mock provides in-memory energy and water services for tests.
package mock

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/rest"
	"irriflow.dev/dashboard/pkg/water"
)

// calls tracks invocations and injected failures per method name.
type calls struct {
	mu     sync.Mutex
	counts map[string]int
	errs   map[string]error
}

func (c *calls) enter(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[method]++
	return c.errs[method]
}

// Fail makes every later call of method return err. A nil err clears it.
func (c *calls) Fail(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errs == nil {
		c.errs = make(map[string]error)
	}
	if err == nil {
		delete(c.errs, method)
		return
	}
	c.errs[method] = err
}

// Calls returns how many times method was invoked.
func (c *calls) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[method]
}

// Energy is an in-memory energy service.
type Energy struct {
	calls

	mu          sync.Mutex
	pumps       []energy.Pump
	consumption []energy.ConsumptionRecord
	nextID      int64
	// Unavailable lists pumps CheckAvailability reports as busy.
	Unavailable map[int64]bool
}

// NewEnergy returns a service holding pumps and records.
func NewEnergy(pumps []energy.Pump, records []energy.ConsumptionRecord) *Energy {
	e := &Energy{
		pumps:       slices.Clone(pumps),
		consumption: slices.Clone(records),
		Unavailable: make(map[int64]bool),
	}
	for _, p := range pumps {
		e.nextID = max(e.nextID, p.ID)
	}
	for _, r := range records {
		e.nextID = max(e.nextID, r.ID)
	}
	return e
}

func (e *Energy) id() int64 {
	e.nextID++
	return e.nextID
}

func (e *Energy) ListPumps(context.Context) ([]energy.Pump, error) {
	if err := e.enter("ListPumps"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.pumps), nil
}

func (e *Energy) GetPump(_ context.Context, id int64) (*energy.Pump, error) {
	if err := e.enter("GetPump"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.pumps {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, notFound(energy.ServiceName, "/pompes", id)
}

func (e *Energy) CreatePump(_ context.Context, in energy.PumpInput) (*energy.Pump, error) {
	if err := e.enter("CreatePump"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p := energy.Pump{ID: e.id(), Reference: in.Reference, PowerWatts: in.PowerWatts, Status: in.Status, CommissionedOn: in.CommissionedOn}
	e.pumps = append(e.pumps, p)
	return &p, nil
}

func (e *Energy) UpdatePump(_ context.Context, id int64, in energy.PumpInput) (*energy.Pump, error) {
	if err := e.enter("UpdatePump"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range e.pumps {
		if p.ID == id {
			e.pumps[i] = energy.Pump{ID: id, Reference: in.Reference, PowerWatts: in.PowerWatts, Status: in.Status, CommissionedOn: in.CommissionedOn}
			out := e.pumps[i]
			return &out, nil
		}
	}
	return nil, notFound(energy.ServiceName, "/pompes", id)
}

func (e *Energy) DeletePump(_ context.Context, id int64) error {
	if err := e.enter("DeletePump"); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.pumps)
	e.pumps = slices.DeleteFunc(e.pumps, func(p energy.Pump) bool { return p.ID == id })
	if len(e.pumps) == n {
		return notFound(energy.ServiceName, "/pompes", id)
	}
	return nil
}

func (e *Energy) CheckAvailability(_ context.Context, id int64) (bool, error) {
	if err := e.enter("CheckAvailability"); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Unavailable[id], nil
}

func (e *Energy) ListConsumption(context.Context) ([]energy.ConsumptionRecord, error) {
	if err := e.enter("ListConsumption"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.consumption), nil
}

func (e *Energy) ListConsumptionByPump(_ context.Context, pumpID int64) ([]energy.ConsumptionRecord, error) {
	if err := e.enter("ListConsumptionByPump"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []energy.ConsumptionRecord
	for _, r := range e.consumption {
		if r.PumpID == pumpID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Energy) CreateConsumption(_ context.Context, in energy.ConsumptionInput) (*energy.ConsumptionRecord, error) {
	if err := e.enter("CreateConsumption"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	r := energy.ConsumptionRecord{ID: e.id(), PumpID: in.PumpID, EnergyKWh: in.EnergyKWh, DurationHours: in.DurationHours, MeasuredAt: in.MeasuredAt}
	e.consumption = append(e.consumption, r)
	return &r, nil
}

func (e *Energy) TotalConsumption(_ context.Context, pumpID int64) (float64, error) {
	if err := e.enter("TotalConsumption"); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var sum float64
	for _, r := range e.consumption {
		if r.PumpID == pumpID {
			sum += r.EnergyKWh
		}
	}
	return sum, nil
}

// Water is an in-memory water service.
type Water struct {
	calls

	mu         sync.Mutex
	reservoirs []water.Reservoir
	flows      []water.FlowRecord
	alerts     []water.Alert
	nextID     int64
	// Start decides the verdict of StartPump. The default accepts every pump.
	Start func(pumpID int64) water.StartPumpResult
}

// NewWater returns a service holding reservoirs, flow records and alerts.
func NewWater(reservoirs []water.Reservoir, flows []water.FlowRecord, alerts []water.Alert) *Water {
	w := &Water{
		reservoirs: slices.Clone(reservoirs),
		flows:      slices.Clone(flows),
		alerts:     slices.Clone(alerts),
	}
	for _, r := range reservoirs {
		w.nextID = max(w.nextID, r.ID)
	}
	for _, f := range flows {
		w.nextID = max(w.nextID, f.ID)
	}
	for _, a := range alerts {
		w.nextID = max(w.nextID, a.ID)
	}
	return w
}

func (w *Water) id() int64 {
	w.nextID++
	return w.nextID
}

// AddAlert raises an alert as the backend would.
func (w *Water) AddAlert(a water.Alert) water.Alert {
	w.mu.Lock()
	defer w.mu.Unlock()
	if a.ID == 0 {
		a.ID = w.id()
	}
	w.alerts = append(w.alerts, a)
	return a
}

func (w *Water) ListReservoirs(context.Context) ([]water.Reservoir, error) {
	if err := w.enter("ListReservoirs"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.reservoirs), nil
}

func (w *Water) GetReservoir(_ context.Context, id int64) (*water.Reservoir, error) {
	if err := w.enter("GetReservoir"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.reservoirs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, notFound(water.ServiceName, "/reservoirs", id)
}

func (w *Water) CreateReservoir(_ context.Context, in water.ReservoirInput) (*water.Reservoir, error) {
	if err := w.enter("CreateReservoir"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r := water.Reservoir{ID: w.id(), Name: in.Name, CapacityLiters: in.CapacityLiters, VolumeLiters: in.VolumeLiters, Location: in.Location}
	w.reservoirs = append(w.reservoirs, r)
	return &r, nil
}

func (w *Water) UpdateReservoir(_ context.Context, id int64, in water.ReservoirInput) (*water.Reservoir, error) {
	if err := w.enter("UpdateReservoir"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range w.reservoirs {
		if r.ID == id {
			w.reservoirs[i] = water.Reservoir{ID: id, Name: in.Name, CapacityLiters: in.CapacityLiters, VolumeLiters: in.VolumeLiters, Location: in.Location}
			out := w.reservoirs[i]
			return &out, nil
		}
	}
	return nil, notFound(water.ServiceName, "/reservoirs", id)
}

func (w *Water) DeleteReservoir(_ context.Context, id int64) error {
	if err := w.enter("DeleteReservoir"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.reservoirs)
	w.reservoirs = slices.DeleteFunc(w.reservoirs, func(r water.Reservoir) bool { return r.ID == id })
	if len(w.reservoirs) == n {
		return notFound(water.ServiceName, "/reservoirs", id)
	}
	return nil
}

func (w *Water) FillLevel(_ context.Context, id int64) (float64, error) {
	if err := w.enter("FillLevel"); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.reservoirs {
		if r.ID == id {
			if r.CapacityLiters <= 0 {
				return 0, nil
			}
			return r.VolumeLiters / r.CapacityLiters * 100, nil
		}
	}
	return 0, notFound(water.ServiceName, "/reservoirs/niveau", id)
}

func (w *Water) ListFlows(context.Context) ([]water.FlowRecord, error) {
	if err := w.enter("ListFlows"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.flows), nil
}

func (w *Water) ListFlowsByPump(_ context.Context, pumpID int64) ([]water.FlowRecord, error) {
	if err := w.enter("ListFlowsByPump"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []water.FlowRecord
	for _, f := range w.flows {
		if f.PumpID == pumpID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (w *Water) CreateFlow(_ context.Context, in water.FlowInput) (*water.FlowRecord, error) {
	if err := w.enter("CreateFlow"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	f := water.FlowRecord{ID: w.id(), PumpID: in.PumpID, Rate: in.Rate, Unit: in.Unit, MeasuredAt: in.MeasuredAt}
	w.flows = append(w.flows, f)
	return &f, nil
}

func (w *Water) AverageFlow(_ context.Context, pumpID int64) (float64, error) {
	if err := w.enter("AverageFlow"); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var sum float64
	var n int
	for _, f := range w.flows {
		if f.PumpID == pumpID {
			sum += f.Rate
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func (w *Water) ListAlerts(context.Context) ([]water.Alert, error) {
	if err := w.enter("ListAlerts"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.alerts), nil
}

func (w *Water) ListUnresolvedAlerts(context.Context) ([]water.Alert, error) {
	if err := w.enter("ListUnresolvedAlerts"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []water.Alert
	for _, a := range w.alerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	return out, nil
}

func (w *Water) ResolveAlert(_ context.Context, id int64) (*water.Alert, error) {
	if err := w.enter("ResolveAlert"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.alerts {
		if w.alerts[i].ID == id {
			w.alerts[i].Resolved = true
			out := w.alerts[i]
			return &out, nil
		}
	}
	return nil, notFound(water.ServiceName, "/alertes", id)
}

func (w *Water) StartPump(_ context.Context, pumpID int64) (water.StartPumpResult, error) {
	if err := w.enter("StartPump"); err != nil {
		return water.StartPumpResult{}, err
	}
	if w.Start != nil {
		return w.Start(pumpID), nil
	}
	return water.StartPumpResult{Success: true, Message: "Pump started"}, nil
}

func notFound(service, path string, id int64) error {
	return &rest.StatusError{Service: service, Path: fmt.Sprintf("%s/%d", path, id), StatusCode: http.StatusNotFound}
}
