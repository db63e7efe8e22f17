package frontend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/internal/views"
	"irriflow.dev/dashboard/internal/workflow"
)

// Mount names of the detail pages. The four navigable views use their Kind.
const (
	mountPumpDetail      = "pump_detail"
	mountReservoirDetail = "reservoir_detail"
)

// mount is one mounted view: its own store, the open form and, for the
// alerts view, the selected filter. A page GET creates it; the websocket of
// the page keeps it alive and its ticker running.
type mount struct {
	id    string
	name  string
	path  string
	store poll.Controller
	build func(form *workflow.Form, filter views.AlertFilter) templ.Component
	grace time.Duration

	logger *slog.Logger

	mu       sync.Mutex
	form     *workflow.Form
	filter   views.AlertFilter
	attached int
	timer    *time.Timer
	stopped  bool
}

func newMount(name, path string, store poll.Controller, build func(*workflow.Form, views.AlertFilter) templ.Component, grace time.Duration, logger *slog.Logger) *mount {
	id := uuid.NewString()
	return &mount{
		id:     id,
		name:   name,
		path:   path,
		store:  store,
		build:  build,
		grace:  grace,
		logger: logger.With("mount", id, "view", name),
		filter: views.FilterAll,
	}
}

// view renders the current snapshot with the current form.
func (m *mount) view() templ.Component {
	m.mu.Lock()
	form, filter := m.form, m.filter
	m.mu.Unlock()
	return m.build(form, filter)
}

// setForm replaces the form. A form is never mutated once it is set here.
func (m *mount) setForm(f *workflow.Form) {
	m.mu.Lock()
	m.form = f
	m.mu.Unlock()
}

func (m *mount) currentForm() *workflow.Form {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.form
}

func (m *mount) setFilter(f views.AlertFilter) {
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
}

// attach registers a live connection and starts the recurring refresh.
func (m *mount) attach() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return poll.ErrStopped
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.attached++
	m.mu.Unlock()

	// The ticker outlives the websocket request; stop ends it.
	return m.store.Start(context.Background())
}

// detach unregisters a live connection. The last one leaving unmounts the
// view after the grace period, which covers the navigation of a form post
// and its redirect back to the same mount.
func (m *mount) detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.attached--
	if m.attached > 0 {
		return
	}
	if m.grace <= 0 {
		go m.stop()
		return
	}
	m.timer = time.AfterFunc(m.grace, m.stop)
}

// stop unmounts the view: no more ticks, late results are dropped.
func (m *mount) stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	m.store.Stop()
	m.logger.Debug("view unmounted")
}

func (m *mount) alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.stopped
}
