package views

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"irriflow.dev/dashboard/internal/workflow"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/rest"
	"irriflow.dev/dashboard/pkg/water"
)

// Form names.
const (
	FormPump        = "pump"
	FormConsumption = "consumption"
	FormReservoir   = "reservoir"
	FormFlow        = "flow"
)

// Form field keys, shared by the HTML inputs and the mutation builders.
const (
	FieldReference      = "reference"
	FieldPower          = "power"
	FieldStatus         = "status"
	FieldCommissionedOn = "commissioned_on"
	FieldPumpID         = "pump_id"
	FieldEnergy         = "energy"
	FieldDuration       = "duration"
	FieldName           = "name"
	FieldCapacity       = "capacity"
	FieldVolume         = "volume"
	FieldLocation       = "location"
	FieldRate           = "rate"
	FieldUnit           = "unit"
)

// FormFields lists the keys read from a submission of each form.
var FormFields = map[string][]string{
	FormPump:        {FieldReference, FieldPower, FieldStatus, FieldCommissionedOn},
	FormConsumption: {FieldPumpID, FieldEnergy, FieldDuration},
	FormReservoir:   {FieldName, FieldCapacity, FieldVolume, FieldLocation},
	FormFlow:        {FieldPumpID, FieldRate, FieldUnit},
}

// PumpDefaults prefills a new pump.
func PumpDefaults() map[string]string {
	return map[string]string{FieldStatus: string(energy.StatusActive)}
}

// FlowDefaults prefills a new flow record.
func FlowDefaults() map[string]string {
	return map[string]string{FieldUnit: string(water.LitersPerMinute)}
}

// PumpValues prefills the edit form of p.
func PumpValues(p energy.Pump) map[string]string {
	return map[string]string{
		FieldReference:      p.Reference,
		FieldPower:          formatNumber(p.PowerWatts),
		FieldStatus:         string(p.Status),
		FieldCommissionedOn: p.CommissionedOn.String(),
	}
}

// ReservoirValues prefills the edit form of r.
func ReservoirValues(r water.Reservoir) map[string]string {
	return map[string]string{
		FieldName:     r.Name,
		FieldCapacity: formatNumber(r.CapacityLiters),
		FieldVolume:   formatNumber(r.VolumeLiters),
		FieldLocation: r.Location,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SavePump creates a pump, or replaces form.EditingID when the form edits one.
func SavePump(api EnergyWriter, form *workflow.Form) workflow.Mutation {
	m := workflow.Mutation{
		Operation: "create_pump",
		Required:  []string{FieldReference, FieldPower},
		Success:   "Pump created successfully",
		Failure:   workflow.MsgSaveFailed,
	}
	id := form.EditingID
	if form.Editing() {
		m.Operation = "update_pump"
		m.Success = "Pump updated successfully"
	}
	m.Do = func(ctx context.Context) error {
		in, err := pumpInput(form)
		if err != nil {
			return err
		}
		if id != 0 {
			_, err = api.UpdatePump(ctx, id, in)
		} else {
			_, err = api.CreatePump(ctx, in)
		}
		return err
	}
	return m
}

func pumpInput(form *workflow.Form) (energy.PumpInput, error) {
	power, err := parseNumber(form, FieldPower)
	if err != nil {
		return energy.PumpInput{}, err
	}
	status := energy.PumpStatus(strings.ToUpper(form.Get(FieldStatus)))
	if status == "" {
		status = energy.StatusActive
	}
	commissioned, err := rest.ParseDate(form.Get(FieldCommissionedOn))
	if err != nil {
		return energy.PumpInput{}, fmt.Errorf("parse %s: %w", FieldCommissionedOn, err)
	}
	return energy.PumpInput{
		Reference:      form.Get(FieldReference),
		PowerWatts:     power,
		Status:         status,
		CommissionedOn: commissioned,
	}, nil
}

// DeletePump removes pump id.
func DeletePump(api EnergyWriter, id int64) workflow.Mutation {
	return workflow.Mutation{
		Operation: "delete_pump",
		Success:   "Pump deleted",
		Failure:   workflow.MsgDeleteFailed,
		Do: func(ctx context.Context) error {
			return api.DeletePump(ctx, id)
		},
	}
}

// RecordConsumption posts a consumption record stamped with now().
func RecordConsumption(api EnergyWriter, form *workflow.Form, now func() time.Time) workflow.Mutation {
	return workflow.Mutation{
		Operation: "record_consumption",
		Required:  []string{FieldPumpID, FieldEnergy, FieldDuration},
		Success:   "Consumption recorded",
		Failure:   workflow.MsgRecordFailed,
		Do: func(ctx context.Context) error {
			pumpID, err := parseID(form, FieldPumpID)
			if err != nil {
				return err
			}
			kwh, err := parseNumber(form, FieldEnergy)
			if err != nil {
				return err
			}
			hours, err := parseNumber(form, FieldDuration)
			if err != nil {
				return err
			}
			_, err = api.CreateConsumption(ctx, energy.ConsumptionInput{
				PumpID:        pumpID,
				EnergyKWh:     kwh,
				DurationHours: hours,
				MeasuredAt:    rest.NewTimestamp(now()),
			})
			return err
		},
	}
}

// SaveReservoir creates a reservoir, or replaces form.EditingID when the
// form edits one. Volume against capacity is left to the water service.
func SaveReservoir(api WaterWriter, form *workflow.Form) workflow.Mutation {
	m := workflow.Mutation{
		Operation: "create_reservoir",
		Required:  []string{FieldName, FieldCapacity, FieldVolume, FieldLocation},
		Success:   "Reservoir created successfully",
		Failure:   workflow.MsgSaveFailed,
	}
	id := form.EditingID
	if form.Editing() {
		m.Operation = "update_reservoir"
		m.Success = "Reservoir updated successfully"
	}
	m.Do = func(ctx context.Context) error {
		capacity, err := parseNumber(form, FieldCapacity)
		if err != nil {
			return err
		}
		volume, err := parseNumber(form, FieldVolume)
		if err != nil {
			return err
		}
		in := water.ReservoirInput{
			Name:           form.Get(FieldName),
			CapacityLiters: capacity,
			VolumeLiters:   volume,
			Location:       form.Get(FieldLocation),
		}
		if id != 0 {
			_, err = api.UpdateReservoir(ctx, id, in)
		} else {
			_, err = api.CreateReservoir(ctx, in)
		}
		return err
	}
	return m
}

// DeleteReservoir removes reservoir id.
func DeleteReservoir(api WaterWriter, id int64) workflow.Mutation {
	return workflow.Mutation{
		Operation: "delete_reservoir",
		Success:   "Reservoir deleted",
		Failure:   workflow.MsgDeleteFailed,
		Do: func(ctx context.Context) error {
			return api.DeleteReservoir(ctx, id)
		},
	}
}

// RecordFlow posts a flow record stamped with now().
func RecordFlow(api WaterWriter, form *workflow.Form, now func() time.Time) workflow.Mutation {
	return workflow.Mutation{
		Operation: "record_flow",
		Required:  []string{FieldPumpID, FieldRate},
		Success:   "Flow recorded",
		Failure:   workflow.MsgRecordFailed,
		Do: func(ctx context.Context) error {
			pumpID, err := parseID(form, FieldPumpID)
			if err != nil {
				return err
			}
			rate, err := parseNumber(form, FieldRate)
			if err != nil {
				return err
			}
			unit := water.FlowUnit(form.Get(FieldUnit))
			if unit == "" {
				unit = water.LitersPerMinute
			}
			_, err = api.CreateFlow(ctx, water.FlowInput{
				PumpID:     pumpID,
				Rate:       rate,
				Unit:       unit,
				MeasuredAt: rest.NewTimestamp(now()),
			})
			return err
		},
	}
}

// ResolveAlert marks alert id as handled.
func ResolveAlert(api WaterWriter, id int64) workflow.Mutation {
	return workflow.Mutation{
		Operation: "resolve_alert",
		Success:   "Alert marked as handled",
		Failure:   workflow.MsgUpdateFailed,
		Do: func(ctx context.Context) error {
			_, err := api.ResolveAlert(ctx, id)
			return err
		},
	}
}

// StartPump asks the water service to start pump id. The service checks
// availability with the energy service and explains its verdict.
func StartPump(api WaterWriter, id int64) workflow.Command {
	return workflow.Command{
		Operation: "start_pump",
		Do: func(ctx context.Context) (bool, string, error) {
			res, err := api.StartPump(ctx, id)
			if err != nil {
				return false, "", err
			}
			return res.Success, res.Message, nil
		},
		Unreachable: workflow.MsgUnreachable,
		Success:     "Pump started",
	}
}

func parseNumber(form *workflow.Form, key string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(form.Get(key), ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func parseID(form *workflow.Form, key string) (int64, error) {
	v, err := strconv.ParseInt(form.Get(key), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
