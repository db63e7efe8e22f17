package frontend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"irriflow.dev/dashboard/internal/workflow"
	"irriflow.dev/dashboard/pkg/metrics"
)

const (
	sessionCookie      = "irriflow_session"
	defaultSessionIdle = 30 * time.Minute
)

// session is one browser: a status slot and at most one mount per view.
type session struct {
	id     string
	status *workflow.StatusSlot
	flow   *workflow.Workflow

	mu       sync.Mutex
	mounts   map[string]*mount
	lastSeen time.Time
}

// replace installs m and unmounts the view it replaces.
func (s *session) replace(m *mount) {
	s.mu.Lock()
	prev := s.mounts[m.name]
	s.mounts[m.name] = m
	s.mu.Unlock()
	if prev != nil {
		prev.stop()
	}
}

// mounted returns the live mount of view name.
func (s *session) mounted(name string) (*mount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mounts[name]
	if !ok || !m.alive() {
		return nil, false
	}
	return m, true
}

// byID returns the live mount with id.
func (s *session) byID(id string) (*mount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.mounts {
		if m.id == id && m.alive() {
			return m, true
		}
	}
	return nil, false
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *session) close() {
	s.mu.Lock()
	mounts := s.mounts
	s.mounts = make(map[string]*mount)
	s.mu.Unlock()
	for _, m := range mounts {
		m.stop()
	}
	s.status.Close()
}

// sessions tracks browsers by cookie.
type sessions struct {
	idle      time.Duration
	statusTTL time.Duration
	secure    bool
	logger    *slog.Logger
	metrics   *metrics.FrontendMetrics
	now       func() time.Time

	mu   sync.Mutex
	byID map[string]*session
}

func newSessions(idle, statusTTL time.Duration, logger *slog.Logger, m *metrics.FrontendMetrics) *sessions {
	if idle <= 0 {
		idle = defaultSessionIdle
	}
	return &sessions{
		idle:      idle,
		statusTTL: statusTTL,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
		byID:      make(map[string]*session),
	}
}

// get returns the session of r, creating it and setting the cookie when
// the browser has none or its session expired.
func (m *sessions) get(w http.ResponseWriter, r *http.Request) (*session, error) {
	if s, ok := m.lookup(r); ok {
		return s, nil
	}

	status := workflow.NewStatusSlot(m.statusTTL)
	flow, err := workflow.New(status, workflow.WithLogger(m.logger), workflow.WithMetrics(m.metrics))
	if err != nil {
		return nil, fmt.Errorf("create session workflow: %w", err)
	}
	s := &session{
		id:       uuid.NewString(),
		status:   status,
		flow:     flow,
		mounts:   make(map[string]*mount),
		lastSeen: m.now(),
	}

	m.mu.Lock()
	m.byID[s.id] = s
	count := len(m.byID)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.Sessions.Set(float64(count))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	m.logger.Debug("session created", "session", s.id)
	return s, nil
}

// lookup returns the existing session of r without creating one.
func (m *sessions) lookup(r *http.Request) (*session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	s, ok := m.byID[c.Value]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.touch(m.now())
	return s, true
}

// each calls fn for every session.
func (m *sessions) each(fn func(*session)) {
	m.mu.Lock()
	all := make([]*session, 0, len(m.byID))
	for _, s := range m.byID {
		all = append(all, s)
	}
	m.mu.Unlock()
	for _, s := range all {
		fn(s)
	}
}

// prune closes sessions idle for longer than the timeout.
func (m *sessions) prune() int {
	cutoff := m.now().Add(-m.idle)
	var expired []*session

	m.mu.Lock()
	for id, s := range m.byID {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.byID, id)
		}
	}
	count := len(m.byID)
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if m.metrics != nil {
		m.metrics.Sessions.Set(float64(count))
	}
	if len(expired) > 0 {
		m.logger.Debug("expired idle sessions", "count", len(expired))
	}
	return len(expired)
}

// janitor prunes idle sessions until ctx ends.
func (m *sessions) janitor(ctx context.Context) {
	interval := max(m.idle/4, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.prune()
		}
	}
}

// closeAll ends every session.
func (m *sessions) closeAll() {
	m.mu.Lock()
	all := m.byID
	m.byID = make(map[string]*session)
	m.mu.Unlock()
	for _, s := range all {
		s.close()
	}
	if m.metrics != nil {
		m.metrics.Sessions.Set(0)
	}
}
