package frontend

import (
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	liveWriteWait  = 10 * time.Second
	livePingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// liveMessage replaces the content of #view or #status in the page.
type liveMessage struct {
	Type string `json:"type"`
	HTML string `json:"html"`
}

// handleLive keeps a mounted view alive for as long as its page is open and
// pushes the view after every applied snapshot and the status bar after
// every status change.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.lookup(r)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	m, ok := sess.byID(chi.URLParam(r, "mount"))
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if err := m.attach(); err != nil {
		m.logger.Debug("live view for unmounted view", "error", err)
		s.closeLive(conn, "view unmounted")
		return
	}
	defer m.detach()

	if s.config.Metrics != nil {
		s.config.Metrics.LiveConnections.WithLabelValues(m.name).Inc()
		defer s.config.Metrics.LiveConnections.WithLabelValues(m.name).Dec()
	}
	m.logger.Debug("live view attached")

	statusChanged, unsubscribe := sess.status.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(livePingPeriod)
	defer ping.Stop()

	changed := m.store.Changed()
	for {
		select {
		case <-closed:
			m.logger.Debug("live view detached")
			return
		case _, ok := <-changed:
			if !ok {
				s.closeLive(conn, "view unmounted")
				return
			}
			if err := s.push(r, conn, m.name, "view", m.view()); err != nil {
				m.logger.Debug("live push failed", "error", err)
				return
			}
		case _, ok := <-statusChanged:
			if !ok {
				s.closeLive(conn, "session ended")
				return
			}
			if err := s.push(r, conn, m.name, "status", statusMessage(currentStatus(sess))); err != nil {
				m.logger.Debug("live push failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

// push renders c and sends it as a message of kind. A component that fails
// to render is skipped; only write errors end the connection.
func (s *Server) push(r *http.Request, conn *websocket.Conn, view, kind string, c templ.Component) error {
	buf, err := renderTo(r.Context(), s.config.Metrics, view, c)
	if err != nil {
		s.logger.Error("failed to render live fragment", "view", view, "kind", kind, "error", err)
		return nil
	}
	if err := conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
		return err
	}
	if err := conn.WriteJSON(liveMessage{Type: kind, HTML: buf.String()}); err != nil {
		return err
	}
	if s.config.Metrics != nil {
		s.config.Metrics.LivePushes.WithLabelValues(view, kind).Inc()
	}
	return nil
}

func (s *Server) closeLive(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(liveWriteWait))
}
