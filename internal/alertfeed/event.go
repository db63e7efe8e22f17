package alertfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Event is the notice the water service publishes when it raises an alert.
// It only says that something changed; views re-fetch to show it.
type Event struct {
	AlertID int64    `json:"alerteId"`
	PumpID  int64    `json:"pompeId"`
	Type    string   `json:"type"`
	Value   *float64 `json:"valeur,omitempty"`
}

// ParseEvent decodes and checks an event payload.
func ParseEvent(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("decode alert event: %w", err)
	}
	if e.AlertID <= 0 {
		return Event{}, errors.New("alert event without alerteId")
	}
	return e, nil
}

// Notifier reacts to one event.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// ViewRefresher refreshes mounted views by name.
type ViewRefresher interface {
	RefreshMounted(ctx context.Context, names ...string) int
}

// RefreshViews returns a Notifier that re-fetches every mounted view in names.
func RefreshViews(r ViewRefresher, names ...string) Notifier {
	return NotifierFunc(func(ctx context.Context, _ Event) error {
		r.RefreshMounted(ctx, names...)
		return ctx.Err()
	})
}
