package frontend

import (
	"bytes"
	"context"
	"net/http"

	"github.com/a-h/templ"
	"github.com/prometheus/client_golang/prometheus"

	"irriflow.dev/dashboard/internal/workflow"
	"irriflow.dev/dashboard/pkg/metrics"
)

// renderTo renders c into a buffer so a failing component never produces a
// half-written page.
func renderTo(ctx context.Context, m *metrics.FrontendMetrics, name string, c templ.Component) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	err := trackTemplateRender(m, name, func() error {
		return c.Render(ctx, &buf)
	})
	return &buf, err
}

// writeHTML renders c and writes it with status code.
func (s *Server) writeHTML(w http.ResponseWriter, r *http.Request, code int, name string, c templ.Component) {
	buf, err := renderTo(r.Context(), s.config.Metrics, name, c)
	if err != nil {
		s.logger.Error("failed to render page", "component", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("failed to write page", "component", name, "error", err)
	}
}

// renderMount writes the full page of a mounted view.
func (s *Server) renderMount(w http.ResponseWriter, r *http.Request, sess *session, m *mount, title string, code int) {
	s.writeHTML(w, r, code, m.name, layout(page{
		Title:  title,
		Path:   m.path,
		Mount:  m.id,
		Status: currentStatus(sess),
		Body:   m.view(),
	}))
}

// renderStatic writes a page that is not backed by a store.
func (s *Server) renderStatic(w http.ResponseWriter, r *http.Request, sess *session, name, title string, code int, body templ.Component) {
	s.writeHTML(w, r, code, name, layout(page{
		Title:  title,
		Path:   r.URL.Path,
		Status: currentStatus(sess),
		Body:   body,
	}))
}

func currentStatus(sess *session) *workflow.Status {
	if sess == nil {
		return nil
	}
	st, ok := sess.status.Current()
	if !ok {
		return nil
	}
	return &st
}

// trackTemplateRender wraps component rendering with metrics tracking.
func trackTemplateRender(m *metrics.FrontendMetrics, component string, renderFunc func() error) error {
	// If metrics not enabled, just render
	if m == nil {
		return renderFunc()
	}

	// Track duration
	timer := prometheus.NewTimer(m.TemplateRenderTime.WithLabelValues(component))
	defer timer.ObserveDuration()

	// Render component
	if err := renderFunc(); err != nil {
		m.TemplateRenderErrors.WithLabelValues(component).Inc()
		return err
	}

	return nil
}
