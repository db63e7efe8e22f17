package frontend

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/xuri/excelize/v2"

	"irriflow.dev/dashboard/internal/export"
	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/internal/views"
)

// handleEnergyExport downloads pumps and consumption records as a workbook.
func (s *Server) handleEnergyExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.backendContext(r)
	defer cancel()

	store := s.factory.Energy()
	defer store.Stop()
	if err := fresh(ctx, store); err != nil {
		s.exportFailed(w, "energy", err)
		return
	}
	f, err := s.exporter.Energy(store.Snapshot().Data, s.now())
	s.sendWorkbook(w, "energy", f, err)
}

// handleWaterExport downloads reservoirs and flow records as a workbook.
func (s *Server) handleWaterExport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.backendContext(r)
	defer cancel()

	store := s.factory.Water()
	defer store.Stop()
	if err := fresh(ctx, store); err != nil {
		s.exportFailed(w, "water", err)
		return
	}
	f, err := s.exporter.Water(store.Snapshot().Data, s.now())
	s.sendWorkbook(w, "water", f, err)
}

// fresh loads store and fails when any collection could not be fetched, so
// an export never silently leaves rows out.
func fresh[S any](ctx context.Context, store *poll.Store[S]) error {
	if err := store.Refresh(ctx); err != nil {
		return err
	}
	if snap := store.Snapshot(); snap.Degraded() {
		return fmt.Errorf("sources failed: %v", slices.Sorted(maps.Keys(snap.Failures)))
	}
	return nil
}

func (s *Server) sendWorkbook(w http.ResponseWriter, name string, f *excelize.File, err error) {
	if err != nil {
		s.logger.Error("failed to build workbook", "export", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, s.exportName(name, "xlsx")))
	if err := export.Write(w, f); err != nil {
		s.logger.Error("failed to write workbook", "export", name, "error", err)
	}
}

func (s *Server) exportFailed(w http.ResponseWriter, name string, err error) {
	s.logger.Warn("export refresh failed", "export", name, "error", err)
	http.Error(w, "Backend unavailable", http.StatusBadGateway)
}

// handleAlertsReport downloads the alerts passing ?filter= as a PDF report.
func (s *Server) handleAlertsReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.backendContext(r)
	defer cancel()

	store := s.factory.Alerts()
	defer store.Stop()
	if err := fresh(ctx, store); err != nil {
		s.exportFailed(w, "alerts", err)
		return
	}

	var buf bytes.Buffer
	filter := views.ParseAlertFilter(r.URL.Query().Get("filter"))
	if err := s.exporter.AlertsReport(&buf, store.Snapshot().Data, filter, s.now()); err != nil {
		s.logger.Error("failed to build report", "export", "alerts", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", export.PDFContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, s.exportName("alerts", "pdf")))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("failed to write report", "export", "alerts", "error", err)
	}
}

func (s *Server) exportName(name, ext string) string {
	return fmt.Sprintf("irriflow-%s-%s.%s", name, s.now().In(s.clock.loc).Format("20060102-150405"), ext)
}
