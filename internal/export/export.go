// Package export writes view snapshots as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"irriflow.dev/dashboard/internal/views"
)

// ContentType is the media type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names.
const (
	SheetSummary     = "Summary"
	SheetPumps       = "Pumps"
	SheetConsumption = "Consumption"
	SheetReservoirs  = "Reservoirs"
	SheetFlows       = "Flows"
)

const cellTime = "2006-01-02 15:04:05"

// Exporter builds workbooks. Timestamps are written in Location.
type Exporter struct {
	Location *time.Location
}

// New returns an exporter writing timestamps in loc, or time.Local when nil.
func New(loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{Location: loc}
}

// Energy builds the pump and consumption workbook.
func (e *Exporter) Energy(state views.EnergyState, generatedAt time.Time) (*excelize.File, error) {
	pumps := state.Pumps.Items
	records := state.Consumption.Items

	f, err := e.newWorkbook("IrriFlow energy report", generatedAt)
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Generated at", e.timestamp(generatedAt)},
		{"Pumps", len(pumps)},
		{"Active pumps", views.ActivePumps(pumps)},
		{"Consumption records", len(records)},
		{"Total energy (kWh)", views.TotalEnergy(records)},
	}
	if err := e.summarySheet(f, "Energy management", summary); err != nil {
		return nil, e.fail(f, err)
	}

	pumpRows := make([][]any, 0, len(pumps))
	for _, p := range pumps {
		pumpRows = append(pumpRows, []any{
			p.ID, p.Reference, p.PowerWatts, string(p.Status), p.CommissionedOn.String(),
			views.PumpEnergy(records, p.ID),
		})
	}
	if err := e.tableSheet(f, SheetPumps,
		[]string{"ID", "Reference", "Power (W)", "Status", "Commissioned on", "Energy (kWh)"}, pumpRows); err != nil {
		return nil, e.fail(f, err)
	}

	references := make(map[int64]string, len(pumps))
	for _, p := range pumps {
		references[p.ID] = p.Reference
	}
	recordRows := make([][]any, 0, len(records))
	for _, r := range records {
		recordRows = append(recordRows, []any{
			r.ID, pumpLabel(references, r.PumpID), r.EnergyKWh, r.DurationHours, e.timestamp(r.MeasuredAt.Time),
		})
	}
	if err := e.tableSheet(f, SheetConsumption,
		[]string{"ID", "Pump", "Energy (kWh)", "Duration (h)", "Measured at"}, recordRows); err != nil {
		return nil, e.fail(f, err)
	}

	return f, nil
}

// Water builds the reservoir and flow workbook.
func (e *Exporter) Water(state views.WaterState, generatedAt time.Time) (*excelize.File, error) {
	reservoirs := state.Reservoirs.Items
	flows := state.Flows.Items

	f, err := e.newWorkbook("IrriFlow water report", generatedAt)
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Generated at", e.timestamp(generatedAt)},
		{"Reservoirs", len(reservoirs)},
		{"Total capacity (L)", views.TotalCapacity(reservoirs)},
		{"Total volume (L)", views.TotalVolume(reservoirs)},
		{"Global fill (%)", round1(views.GlobalFill(reservoirs))},
		{"Flow records", len(flows)},
	}
	if err := e.summarySheet(f, "Water management", summary); err != nil {
		return nil, e.fail(f, err)
	}

	reservoirRows := make([][]any, 0, len(reservoirs))
	for _, r := range reservoirs {
		reservoirRows = append(reservoirRows, []any{
			r.ID, r.Name, r.Location, r.CapacityLiters, r.VolumeLiters, round1(views.FillPercent(r)),
		})
	}
	if err := e.tableSheet(f, SheetReservoirs,
		[]string{"ID", "Name", "Location", "Capacity (L)", "Volume (L)", "Fill (%)"}, reservoirRows); err != nil {
		return nil, e.fail(f, err)
	}

	flowRows := make([][]any, 0, len(flows))
	for _, fl := range flows {
		flowRows = append(flowRows, []any{
			fl.ID, fmt.Sprintf("Pump %d", fl.PumpID), fl.Rate, string(fl.Unit), e.timestamp(fl.MeasuredAt.Time),
		})
	}
	if err := e.tableSheet(f, SheetFlows,
		[]string{"ID", "Pump", "Rate", "Unit", "Measured at"}, flowRows); err != nil {
		return nil, e.fail(f, err)
	}

	return f, nil
}

// Write serializes f to w and closes it.
func Write(w io.Writer, f *excelize.File) error {
	if err := f.Write(w); err != nil {
		_ = f.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	return f.Close()
}

func (e *Exporter) newWorkbook(title string, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, e.fail(f, err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Category: "Irrigation",
		Created:  generatedAt.UTC().Format(time.RFC3339),
		Creator:  views.AppName,
		Title:    title,
	}); err != nil {
		return nil, e.fail(f, err)
	}
	return f, nil
}

func (e *Exporter) summarySheet(f *excelize.File, title string, rows [][]any) error {
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellValue(SheetSummary, "A1", title); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "A1", titleStyle); err != nil {
		return err
	}
	for i, row := range rows {
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+3), &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetSummary, "A", "A", 24)
}

func (e *Exporter) tableSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"14532D"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 16)
}

func (e *Exporter) timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(e.Location).Format(cellTime)
}

func (e *Exporter) fail(f *excelize.File, err error) error {
	_ = f.Close()
	return fmt.Errorf("build workbook: %w", err)
}

func pumpLabel(references map[int64]string, id int64) string {
	if ref, ok := references[id]; ok && ref != "" {
		return ref
	}
	return fmt.Sprintf("Pump %d", id)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
