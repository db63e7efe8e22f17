package frontend

import (
	"fmt"
	"strconv"

	"github.com/a-h/templ"

	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/internal/views"
	"irriflow.dev/dashboard/internal/workflow"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/water"
)

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate

const stylesheet = `
body{font-family:system-ui,sans-serif;margin:0;background:#f4f6f8;color:#1f2933}
nav{display:flex;gap:1rem;align-items:center;background:#14532d;padding:.75rem 1.5rem}
nav a{color:#d1fae5;text-decoration:none}nav a.active{color:#fff;font-weight:600}
nav .brand{color:#fff;font-weight:700;margin-right:1rem}
main{padding:1.5rem}.card{background:#fff;border-radius:8px;padding:1rem;margin-bottom:1rem}
.stats-grid{display:grid;grid-template-columns:repeat(auto-fit,minmax(200px,1fr));gap:1rem;margin-bottom:1rem}
.stat-value{font-size:1.6rem;font-weight:700}.progress-bar,.reservoir-water{width:100%;height:8px}
.status{padding:.5rem 1.5rem}.status .success{color:#166534}.status .error{color:#b91c1c}
.badge{padding:.1rem .5rem;border-radius:1rem;font-size:.8rem;background:#e5e7eb}
.badge.active{background:#dcfce7}.badge.maintenance{background:#fef3c7}
.modal{border:1px solid #d1d5db;background:#fff;padding:1rem;border-radius:8px;max-width:28rem}
.missing input,.missing select{border-color:#b91c1c}.hint{color:#b91c1c;font-size:.8rem}
.filter.active{font-weight:600}.alert-item.resolved{opacity:.6}form.inline{display:inline}
table{width:100%;border-collapse:collapse}td,th{padding:.4rem;border-bottom:1px solid #e5e7eb;text-align:left}
`

const liveScript = `(function(){
var v=document.getElementById("view");var m=v&&v.dataset.mount;if(!m){return;}
var ws=new WebSocket((location.protocol==="https:"?"wss://":"ws://")+location.host+"/live/"+m);
ws.onmessage=function(e){var d=JSON.parse(e.data);var t=document.getElementById(d.type==="status"?"status":"view");if(t){t.innerHTML=d.html;}};
})();`

// page is one full HTML document.
type page struct {
	Title  string
	Path   string
	Mount  string
	Status *workflow.Status
	Body   templ.Component
}

// field is one labelled input of a form.
type field struct {
	Key     string
	Label   string
	Type    string
	Step    string
	Options []option
}

type option struct {
	Value string
	Label string
}

func pumpPath(id int64) string {
	return fmt.Sprintf("/energy/pumps/%d", id)
}

func reservoirPath(id int64) string {
	return fmt.Sprintf("/water/reservoirs/%d", id)
}

func badgeClass(status string) string {
	switch status {
	case string(energy.StatusActive):
		return "active"
	case string(energy.StatusMaintenance):
		return "maintenance"
	}
	return "inactive"
}

func clampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}

// pumpName labels a record's pump by reference when the pump is known.
func pumpName(pumps map[int64]energy.Pump, id int64) string {
	if p, ok := pumps[id]; ok {
		return p.Reference
	}
	return fmt.Sprintf("Pump #%d", id)
}

// alertTitle names the alert kind raised by the water service.
func alertTitle(a water.Alert) string {
	kind := a.Type
	if kind == "SURCONSOMMATION" || kind == "" {
		kind = "Over-consumption"
	}
	return fmt.Sprintf("%s - Pump %d", kind, a.PumpID)
}

func availability(v poll.Value[bool]) string {
	switch {
	case v.Degraded():
		return "Unknown"
	case v.Value:
		return "Available"
	}
	return "Busy"
}

func valueOrDash(v poll.Value[float64], unit string) string {
	if v.Degraded() {
		return "-"
	}
	return number(v.Value, 1) + unit
}

// fillLevel prefers the level computed by the water service.
func fillLevel(d views.ReservoirDetailState) float64 {
	if d.Level.Degraded() {
		return views.FillPercent(d.Reservoir.Value)
	}
	return d.Level.Value
}

func pumpForm(form *workflow.Form) templ.Component {
	title, action := "New pump", "/energy/pumps"
	if form.Editing() {
		title, action = "Edit pump", pumpPath(form.EditingID)
	}
	statuses := make([]option, 0, len(energy.Statuses))
	for _, s := range energy.Statuses {
		statuses = append(statuses, option{Value: string(s), Label: string(s)})
	}
	return formModal(title, action, "/energy", form, []field{
		{Key: views.FieldReference, Label: "Reference", Type: "text"},
		{Key: views.FieldPower, Label: "Power (W)", Type: "number", Step: "any"},
		{Key: views.FieldStatus, Label: "Status", Options: statuses},
		{Key: views.FieldCommissionedOn, Label: "In service since", Type: "date"},
	})
}

func consumptionForm(form *workflow.Form, pumps []energy.Pump) templ.Component {
	choices := []option{{Value: "", Label: "Select a pump"}}
	for _, p := range pumps {
		choices = append(choices, option{Value: strconv.FormatInt(p.ID, 10), Label: p.Reference})
	}
	return formModal("Record consumption", "/energy/consumption", "/energy", form, []field{
		{Key: views.FieldPumpID, Label: "Pump", Options: choices},
		{Key: views.FieldEnergy, Label: "Energy used (kWh)", Type: "number", Step: "0.1"},
		{Key: views.FieldDuration, Label: "Duration (h)", Type: "number", Step: "0.1"},
	})
}

func reservoirForm(form *workflow.Form) templ.Component {
	title, action := "New reservoir", "/water/reservoirs"
	if form.Editing() {
		title, action = "Edit reservoir", reservoirPath(form.EditingID)
	}
	return formModal(title, action, "/water", form, []field{
		{Key: views.FieldName, Label: "Name", Type: "text"},
		{Key: views.FieldCapacity, Label: "Total capacity (L)", Type: "number", Step: "any"},
		{Key: views.FieldVolume, Label: "Current volume (L)", Type: "number", Step: "any"},
		{Key: views.FieldLocation, Label: "Location", Type: "text"},
	})
}

func flowForm(form *workflow.Form) templ.Component {
	units := make([]option, 0, len(water.FlowUnits))
	for _, u := range water.FlowUnits {
		units = append(units, option{Value: string(u), Label: string(u)})
	}
	return formModal("Record flow", "/water/flows", "/water", form, []field{
		{Key: views.FieldPumpID, Label: "Pump ID", Type: "number"},
		{Key: views.FieldRate, Label: "Flow rate", Type: "number", Step: "0.1"},
		{Key: views.FieldUnit, Label: "Unit", Options: units},
	})
}
