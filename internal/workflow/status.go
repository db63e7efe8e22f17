package workflow

import (
	"sync"
	"time"
)

// DefaultStatusTTL is how long a status message stays visible.
const DefaultStatusTTL = 3 * time.Second

// Level tells success messages from error messages.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Status is one user-facing message.
type Status struct {
	Text    string
	Level   Level
	ShownAt time.Time
}

// StatusSlot holds at most one Status. A newer message replaces the current
// one and restarts its expiry; an expired message clears itself.
type StatusSlot struct {
	ttl time.Duration

	mu      sync.Mutex
	current *Status
	seq     uint64
	timer   *time.Timer
	subs    map[int]chan struct{}
	nextSub int
	closed  bool
}

// NewStatusSlot returns an empty slot whose messages expire after ttl,
// or DefaultStatusTTL when ttl is not positive.
func NewStatusSlot(ttl time.Duration) *StatusSlot {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusSlot{ttl: ttl, subs: make(map[int]chan struct{})}
}

// TTL returns the message lifetime.
func (s *StatusSlot) TTL() time.Duration {
	return s.ttl
}

// Success shows a success message.
func (s *StatusSlot) Success(text string) {
	s.Show(LevelSuccess, text)
}

// Error shows an error message.
func (s *StatusSlot) Error(text string) {
	s.Show(LevelError, text)
}

// Show replaces the current message.
func (s *StatusSlot) Show(level Level, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.seq++
	seq := s.seq
	s.current = &Status{Text: text, Level: level, ShownAt: time.Now()}
	s.timer = time.AfterFunc(s.ttl, func() { s.expire(seq) })
	s.notifyLocked()
}

// expire clears the slot if the message shown as seq is still current.
func (s *StatusSlot) expire(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq != seq || s.current == nil {
		return
	}
	s.current = nil
	s.timer = nil
	s.notifyLocked()
}

// Clear removes the current message immediately.
func (s *StatusSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.seq++
	s.current = nil
	s.notifyLocked()
}

// Current returns the visible message, if any.
func (s *StatusSlot) Current() (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Status{}, false
	}
	return *s.current, true
}

// Subscribe returns a channel signaled whenever the slot changes, and a
// function that ends the subscription.
func (s *StatusSlot) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, 1)
	id := s.nextSub
	s.nextSub++
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
}

// Close cancels the pending expiry and releases every subscriber.
func (s *StatusSlot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *StatusSlot) notifyLocked() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
