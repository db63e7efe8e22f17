package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"irriflow.dev/dashboard/internal/views"
)

// PDFContentType is the media type of the generated reports.
const PDFContentType = "application/pdf"

// alertColumns are the widths in millimeters of the alerts table.
var alertColumns = []struct {
	title string
	width float64
	align string
}{
	{"ID", 14, "C"},
	{"Pump", 22, "C"},
	{"Type", 38, "L"},
	{"Message", 62, "L"},
	{"Raised at", 34, "C"},
	{"State", 20, "C"},
}

// AlertsReport writes the alerts passing filter as a PDF document.
func (e *Exporter) AlertsReport(w io.Writer, state views.AlertsState, filter views.AlertFilter, generatedAt time.Time) error {
	alerts := filter.Apply(state.Alerts.Items)
	counts := views.CountAlerts(state.Alerts.Items)

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("IrriFlow alerts report", true)
	pdf.SetCreator(views.AppName, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Alerts report")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{
		fmt.Sprintf("Generated at: %s", e.timestamp(generatedAt)),
		fmt.Sprintf("Filter: %s", filter.Label()),
		fmt.Sprintf("Pending: %d  Resolved: %d  Total: %d", counts.Pending, counts.Resolved, counts.All),
	} {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(20, 83, 45)
	pdf.SetTextColor(255, 255, 255)
	for _, c := range alertColumns {
		pdf.CellFormat(c.width, 6, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	if len(alerts) == 0 {
		pdf.CellFormat(0, 6, "No alerts", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	for _, a := range alerts {
		state := "Pending"
		if a.Resolved {
			state = "Resolved"
		}
		cells := []string{
			fmt.Sprintf("%d", a.ID),
			fmt.Sprintf("%d", a.PumpID),
			a.Type,
			truncate(a.Message, 40),
			e.timestamp(a.RaisedAt.Time),
			state,
		}
		for i, c := range alertColumns {
			pdf.CellFormat(c.width, 6, tr(cells[i]), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
