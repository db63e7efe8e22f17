package frontend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/internal/views"
	"irriflow.dev/dashboard/internal/workflow"
	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/rest"
	"irriflow.dev/dashboard/pkg/water"
)

// session returns the session of r. It writes a 500 and reports false when
// none could be created.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, err := s.sessions.get(w, r)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (s *Server) backendContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), backendTimeout)
}

func (s *Server) liveGrace() time.Duration {
	if s.config.LiveGrace > 0 {
		return s.config.LiveGrace
	}
	return defaultLiveGrace
}

// open mounts a view: the store loads once, then the mount replaces the
// session's previous mount of the same view.
func (s *Server) open(ctx context.Context, sess *session, name, path string, store poll.Controller, build func(*workflow.Form, views.AlertFilter) templ.Component) *mount {
	m, _ := s.load(ctx, name, path, store, build)
	sess.replace(m)
	return m
}

// load builds a mount and runs its first refresh. The returned error is
// only informative: the mount is usable and its page shows what loaded.
func (s *Server) load(ctx context.Context, name, path string, store poll.Controller, build func(*workflow.Form, views.AlertFilter) templ.Component) (*mount, error) {
	m := newMount(name, path, store, build, s.liveGrace(), s.logger)
	err := store.Refresh(ctx)
	if err != nil {
		m.logger.Warn("initial load failed", "error", err)
	}
	return m, err
}

// mountView opens a fresh mount of kind.
func (s *Server) mountView(ctx context.Context, sess *session, kind views.Kind) *mount {
	path := kind.Route().Path
	switch kind {
	case views.Energy:
		store := s.factory.Energy()
		return s.open(ctx, sess, string(kind), path, store, func(form *workflow.Form, _ views.AlertFilter) templ.Component {
			return energyView(store.Snapshot(), form, s.clock)
		})
	case views.Water:
		store := s.factory.Water()
		return s.open(ctx, sess, string(kind), path, store, func(form *workflow.Form, _ views.AlertFilter) templ.Component {
			return waterView(store.Snapshot(), form, s.clock)
		})
	case views.Alerts:
		store := s.factory.Alerts()
		return s.open(ctx, sess, string(kind), path, store, func(_ *workflow.Form, filter views.AlertFilter) templ.Component {
			return alertsView(store.Snapshot(), filter, s.clock)
		})
	default:
		store := s.factory.Dashboard()
		return s.open(ctx, sess, string(views.Dashboard), "/", store, func(*workflow.Form, views.AlertFilter) templ.Component {
			return dashboardView(store.Snapshot(), s.clock)
		})
	}
}

// enter returns the mount a page GET renders: the mount named by ?mount=
// when it is still live, otherwise a fresh one.
func (s *Server) enter(ctx context.Context, r *http.Request, sess *session, kind views.Kind) *mount {
	if id := r.URL.Query().Get("mount"); id != "" {
		if m, ok := sess.mounted(string(kind)); ok && m.id == id {
			return m
		}
	}
	return s.mountView(ctx, sess, kind)
}

// target returns the mount a mutation reloads: the live mount of kind, or a
// fresh one when the page was never opened in this session.
func (s *Server) target(ctx context.Context, sess *session, kind views.Kind) *mount {
	if m, ok := sess.mounted(string(kind)); ok {
		return m
	}
	return s.mountView(ctx, sess, kind)
}

// back redirects to the page of m, keeping it mounted.
func back(w http.ResponseWriter, r *http.Request, m *mount) {
	http.Redirect(w, r, m.path+"?mount="+m.id, http.StatusSeeOther)
}

// finish answers a form post: the page is shown again with the form open
// when the submission needs correcting, otherwise the browser goes back.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, sess *session, m *mount, form *workflow.Form, outcome workflow.Outcome) {
	if form != nil && (outcome == workflow.Invalid || outcome == workflow.Failed) {
		m.setForm(form)
		s.renderMount(w, r, sess, m, views.Kind(m.name).Route().Title, http.StatusUnprocessableEntity)
		return
	}
	m.setForm(nil)
	back(w, r, m)
}

// localReturn accepts a return target only when it is a page of this
// dashboard: a bare path naming a view or a detail page.
func localReturn(raw string) (string, bool) {
	if raw == "" || strings.ContainsAny(raw, "\\\r\n\t") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil || u.Opaque != "" {
		return "", false
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "", false
	}
	if _, ok := views.Lookup(u.Path); ok {
		return u.Path, true
	}
	for _, prefix := range []string{"/energy/pumps/", "/water/reservoirs/"} {
		id, found := strings.CutPrefix(u.Path, prefix)
		if !found {
			continue
		}
		if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > 0 {
			return u.Path, true
		}
	}
	return "", false
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// submitted builds an open form from the posted fields of name.
func submitted(r *http.Request, name string, editing int64) *workflow.Form {
	values := make(map[string]string, len(views.FormFields[name]))
	for _, key := range views.FormFields[name] {
		values[key] = r.PostFormValue(key)
	}
	form := workflow.NewForm(name)
	if editing > 0 {
		form.OpenEdit(editing, values)
	} else {
		form.OpenCreate(values)
	}
	return form
}

// handleDashboard serves the overview.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.enter(ctx, r, sess, views.Dashboard)
	s.renderMount(w, r, sess, m, views.Dashboard.Route().Title, http.StatusOK)
}

// handleEnergy serves pump management, with a form open when ?form= asks.
func (s *Server) handleEnergy(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.enter(ctx, r, sess, views.Energy)
	q := r.URL.Query()
	switch q.Get("form") {
	case views.FormPump:
		form := workflow.NewForm(views.FormPump)
		if id, err := strconv.ParseInt(q.Get("edit"), 10, 64); err == nil && id > 0 {
			p, err := s.findPump(ctx, m, id)
			if err != nil {
				s.notFoundOr(w, r, sess, err)
				return
			}
			form.OpenEdit(id, views.PumpValues(p))
		} else {
			form.OpenCreate(views.PumpDefaults())
		}
		m.setForm(form)
	case views.FormConsumption:
		form := workflow.NewForm(views.FormConsumption)
		form.OpenCreate(nil)
		m.setForm(form)
	default:
		m.setForm(nil)
	}
	s.renderMount(w, r, sess, m, views.Energy.Route().Title, http.StatusOK)
}

// findPump looks pump id up in the mounted snapshot, then asks the service.
func (s *Server) findPump(ctx context.Context, m *mount, id int64) (energy.Pump, error) {
	if store, ok := m.store.(*poll.Store[views.EnergyState]); ok {
		for _, p := range store.Snapshot().Data.Pumps.Items {
			if p.ID == id {
				return p, nil
			}
		}
	}
	p, err := s.config.Energy.GetPump(ctx, id)
	if err != nil {
		return energy.Pump{}, err
	}
	return *p, nil
}

// findReservoir looks reservoir id up in the mounted snapshot, then asks the service.
func (s *Server) findReservoir(ctx context.Context, m *mount, id int64) (water.Reservoir, error) {
	if store, ok := m.store.(*poll.Store[views.WaterState]); ok {
		for _, res := range store.Snapshot().Data.Reservoirs.Items {
			if res.ID == id {
				return res, nil
			}
		}
	}
	res, err := s.config.Water.GetReservoir(ctx, id)
	if err != nil {
		return water.Reservoir{}, err
	}
	return *res, nil
}

// handleSavePump creates a pump, or updates the one in the path.
func (s *Server) handleSavePump(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var editing int64
	if chi.URLParam(r, "id") != "" {
		id, ok := pathID(r)
		if !ok {
			s.handleNotFound(w, r)
			return
		}
		editing = id
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.target(ctx, sess, views.Energy)
	form := submitted(r, views.FormPump, editing)
	outcome := sess.flow.Submit(ctx, form, views.SavePump(s.config.Energy, form), m.store)
	s.finish(w, r, sess, m, form, outcome)
}

// handleRecordConsumption posts a consumption measurement taken now.
func (s *Server) handleRecordConsumption(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.target(ctx, sess, views.Energy)
	form := submitted(r, views.FormConsumption, 0)
	outcome := sess.flow.Submit(ctx, form, views.RecordConsumption(s.config.Energy, form, s.now), m.store)
	s.finish(w, r, sess, m, form, outcome)
}

// handleConfirmDeletePump asks before deleting a pump.
func (s *Server) handleConfirmDeletePump(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	label := fmt.Sprintf("#%d", id)
	if m, ok := sess.mounted(string(views.Energy)); ok {
		if p, err := s.findPump(ctx, m, id); err == nil {
			label = p.Reference
		}
	}
	s.renderStatic(w, r, sess, "confirm_delete_pump", "Delete pump", http.StatusOK,
		confirmation(fmt.Sprintf("Are you sure you want to delete pump %s?", label), r.URL.Path, "/energy"))
}

// handleDeletePump deletes a pump once the form carries confirm=yes.
func (s *Server) handleDeletePump(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.target(ctx, sess, views.Energy)
	confirmed := r.PostFormValue("confirm") == "yes"
	outcome := sess.flow.Delete(ctx, confirmed, views.DeletePump(s.config.Energy, id), m.store)
	s.finish(w, r, sess, m, nil, outcome)
}

// handlePumpDetail serves one pump with its records from both services.
func (s *Server) handlePumpDetail(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	store := s.factory.PumpDetail(id)
	path := fmt.Sprintf("/energy/pumps/%d", id)
	m, err := s.load(ctx, mountPumpDetail, path, store, func(*workflow.Form, views.AlertFilter) templ.Component {
		return pumpDetailView(store.Snapshot(), s.clock)
	})
	if errors.Is(err, rest.ErrNotFound) || errors.Is(store.Snapshot().Data.Pump.Err, rest.ErrNotFound) {
		m.stop()
		s.handleNotFound(w, r)
		return
	}
	sess.replace(m)
	s.renderMount(w, r, sess, m, "Pump", http.StatusOK)
}

// handleWater serves reservoir management, with a form open when ?form= asks.
func (s *Server) handleWater(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.enter(ctx, r, sess, views.Water)
	q := r.URL.Query()
	switch q.Get("form") {
	case views.FormReservoir:
		form := workflow.NewForm(views.FormReservoir)
		if id, err := strconv.ParseInt(q.Get("edit"), 10, 64); err == nil && id > 0 {
			res, err := s.findReservoir(ctx, m, id)
			if err != nil {
				s.notFoundOr(w, r, sess, err)
				return
			}
			form.OpenEdit(id, views.ReservoirValues(res))
		} else {
			form.OpenCreate(nil)
		}
		m.setForm(form)
	case views.FormFlow:
		form := workflow.NewForm(views.FormFlow)
		defaults := views.FlowDefaults()
		if pump := q.Get("pump"); pump != "" {
			defaults[views.FieldPumpID] = pump
		}
		form.OpenCreate(defaults)
		m.setForm(form)
	default:
		m.setForm(nil)
	}
	s.renderMount(w, r, sess, m, views.Water.Route().Title, http.StatusOK)
}

// handleSaveReservoir creates a reservoir, or updates the one in the path.
func (s *Server) handleSaveReservoir(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var editing int64
	if chi.URLParam(r, "id") != "" {
		id, ok := pathID(r)
		if !ok {
			s.handleNotFound(w, r)
			return
		}
		editing = id
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.target(ctx, sess, views.Water)
	form := submitted(r, views.FormReservoir, editing)
	outcome := sess.flow.Submit(ctx, form, views.SaveReservoir(s.config.Water, form), m.store)
	s.finish(w, r, sess, m, form, outcome)
}

// handleRecordFlow posts a flow measurement taken now.
func (s *Server) handleRecordFlow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.target(ctx, sess, views.Water)
	form := submitted(r, views.FormFlow, 0)
	outcome := sess.flow.Submit(ctx, form, views.RecordFlow(s.config.Water, form, s.now), m.store)
	s.finish(w, r, sess, m, form, outcome)
}

// handleConfirmDeleteReservoir asks before deleting a reservoir.
func (s *Server) handleConfirmDeleteReservoir(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	label := fmt.Sprintf("#%d", id)
	if m, ok := sess.mounted(string(views.Water)); ok {
		if res, err := s.findReservoir(ctx, m, id); err == nil {
			label = res.Name
		}
	}
	s.renderStatic(w, r, sess, "confirm_delete_reservoir", "Delete reservoir", http.StatusOK,
		confirmation(fmt.Sprintf("Are you sure you want to delete reservoir %s?", label), r.URL.Path, "/water"))
}

// handleDeleteReservoir deletes a reservoir once the form carries confirm=yes.
func (s *Server) handleDeleteReservoir(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.target(ctx, sess, views.Water)
	confirmed := r.PostFormValue("confirm") == "yes"
	outcome := sess.flow.Delete(ctx, confirmed, views.DeleteReservoir(s.config.Water, id), m.store)
	s.finish(w, r, sess, m, nil, outcome)
}

// handleReservoirDetail serves one reservoir with its reported fill level.
func (s *Server) handleReservoirDetail(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	store := s.factory.ReservoirDetail(id)
	path := fmt.Sprintf("/water/reservoirs/%d", id)
	m, err := s.load(ctx, mountReservoirDetail, path, store, func(*workflow.Form, views.AlertFilter) templ.Component {
		return reservoirDetailView(store.Snapshot())
	})
	if errors.Is(err, rest.ErrNotFound) || errors.Is(store.Snapshot().Data.Reservoir.Err, rest.ErrNotFound) {
		m.stop()
		s.handleNotFound(w, r)
		return
	}
	sess.replace(m)
	s.renderMount(w, r, sess, m, "Reservoir", http.StatusOK)
}

// handleStartPump asks the water service to start a pump. The verdict is
// shown as a status message on the page the command came from.
func (s *Server) handleStartPump(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	sess.flow.Run(ctx, views.StartPump(s.config.Water, id))

	if ret, ok := localReturn(r.URL.Query().Get("back")); ok {
		http.Redirect(w, r, ret, http.StatusSeeOther)
		return
	}
	if m, ok := sess.mounted(string(views.Water)); ok {
		back(w, r, m)
		return
	}
	http.Redirect(w, r, views.Water.Route().Path, http.StatusSeeOther)
}

// handleAlerts serves the alert list filtered by ?filter=.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.enter(ctx, r, sess, views.Alerts)
	if f := r.URL.Query().Get("filter"); f != "" || r.URL.Query().Get("mount") == "" {
		m.setFilter(views.ParseAlertFilter(f))
	}
	s.renderMount(w, r, sess, m, views.Alerts.Route().Title, http.StatusOK)
}

// handleResolveAlert marks an alert as handled.
func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	ctx, cancel := s.backendContext(r)
	defer cancel()

	m := s.target(ctx, sess, views.Alerts)
	outcome := sess.flow.Submit(ctx, nil, views.ResolveAlert(s.config.Water, id), m.store)
	s.finish(w, r, sess, m, nil, outcome)
}

// notFoundOr answers 404 for missing entities and 502 for anything else.
func (s *Server) notFoundOr(w http.ResponseWriter, r *http.Request, sess *session, err error) {
	if errors.Is(err, rest.ErrNotFound) {
		s.handleNotFound(w, r)
		return
	}
	s.logger.Warn("backend lookup failed", "path", r.URL.Path, "error", err)
	s.renderStatic(w, r, sess, "unavailable", "Unavailable", http.StatusBadGateway,
		emptyState("The backend service could not be reached. Please try again."))
}

// handleNotFound serves the 404 page with the navigation.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessions.lookup(r)
	s.renderStatic(w, r, sess, "not_found", "Not found", http.StatusNotFound, notFound(r.URL.Path))
}

// handleHealth serves health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}
