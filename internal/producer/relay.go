package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"irriflow.dev/dashboard/internal/alertfeed"
	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/mq"
)

const kindAlertEvent = "alert_event"

// Relay publishes an event for every unresolved alert it has not announced
// yet, for water services that do not publish them themselves.
type Relay struct {
	water     WaterAPI
	publisher mq.Publisher
	metrics   *metrics.ProducerMetrics

	mu        sync.Mutex
	announced map[int64]bool
}

// NewRelay creates a relay publishing through publisher.
func NewRelay(w WaterAPI, publisher mq.Publisher, m *metrics.ProducerMetrics) *Relay {
	return &Relay{water: w, publisher: publisher, metrics: m, announced: make(map[int64]bool)}
}

// Announce publishes the alerts raised since the last call and returns how
// many were published. Alerts whose publish failed are retried next time.
func (r *Relay) Announce(ctx context.Context) (int, error) {
	alerts, err := r.water.ListUnresolvedAlerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unresolved alerts: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		published int
		errs      []error
	)
	for _, a := range alerts {
		if r.announced[a.ID] {
			continue
		}
		body, err := json.Marshal(alertfeed.Event{AlertID: a.ID, PumpID: a.PumpID, Type: a.Type, Value: a.Value})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		err = r.publisher.Publish(ctx, body)
		r.metrics.ObserveRecord(kindAlertEvent, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish alert %d: %w", a.ID, err))
			continue
		}
		r.announced[a.ID] = true
		published++
	}
	return published, errors.Join(errs...)
}
