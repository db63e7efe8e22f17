// Package producer posts synthetic irrigation records to the backend
// services and relays the alerts they raise to the alert exchange.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"irriflow.dev/dashboard/pkg/energy"
	"irriflow.dev/dashboard/pkg/generator"
	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/water"
)

// EnergyAPI is what the producer needs from the energy service.
type EnergyAPI interface {
	ListPumps(ctx context.Context) ([]energy.Pump, error)
	CreatePump(ctx context.Context, in energy.PumpInput) (*energy.Pump, error)
	CreateConsumption(ctx context.Context, in energy.ConsumptionInput) (*energy.ConsumptionRecord, error)
}

// WaterAPI is what the producer needs from the water service.
type WaterAPI interface {
	ListReservoirs(ctx context.Context) ([]water.Reservoir, error)
	CreateReservoir(ctx context.Context, in water.ReservoirInput) (*water.Reservoir, error)
	CreateFlow(ctx context.Context, in water.FlowInput) (*water.FlowRecord, error)
	ListUnresolvedAlerts(ctx context.Context) ([]water.Alert, error)
}

// Record kinds used as metric labels.
const (
	kindPump        = "pump"
	kindReservoir   = "reservoir"
	kindConsumption = "consumption"
	kindFlow        = "flow"
)

// Producer posts one consumption and one flow measurement per tick for a
// randomly chosen pump.
type Producer struct {
	energy  EnergyAPI
	water   WaterAPI
	metrics *metrics.ProducerMetrics
	now     func() time.Time

	mu     sync.Mutex
	source *generator.Source
	pumps  []energy.Pump
}

// NewProducer creates a producer drawing from source.
func NewProducer(e EnergyAPI, w WaterAPI, source *generator.Source) *Producer {
	return &Producer{energy: e, water: w, source: source, now: time.Now}
}

// SetMetrics sets the metrics collector for this producer.
func (p *Producer) SetMetrics(m *metrics.ProducerMetrics) {
	p.metrics = m
}

// Seed creates pumps and reservoirs until at least the given numbers exist,
// then loads the pumps measurements are generated for.
func (p *Producer) Seed(ctx context.Context, pumps, reservoirs int, logger *slog.Logger) error {
	existing, err := p.energy.ListPumps(ctx)
	if err != nil {
		return fmt.Errorf("list pumps: %w", err)
	}
	for i := len(existing); i < pumps; i++ {
		p.mu.Lock()
		in := p.source.Pump(p.now())
		p.mu.Unlock()
		created, err := p.energy.CreatePump(ctx, in)
		p.metrics.ObserveRecord(kindPump, err)
		if err != nil {
			return fmt.Errorf("create pump: %w", err)
		}
		logger.Info("seeded pump", "pump_id", created.ID, "reference", created.Reference)
		existing = append(existing, *created)
	}

	current, err := p.water.ListReservoirs(ctx)
	if err != nil {
		return fmt.Errorf("list reservoirs: %w", err)
	}
	for i := len(current); i < reservoirs; i++ {
		p.mu.Lock()
		in := p.source.Reservoir()
		p.mu.Unlock()
		created, err := p.water.CreateReservoir(ctx, in)
		p.metrics.ObserveRecord(kindReservoir, err)
		if err != nil {
			return fmt.Errorf("create reservoir: %w", err)
		}
		logger.Info("seeded reservoir", "reservoir_id", created.ID, "name", created.Name)
	}

	p.mu.Lock()
	p.pumps = existing
	p.mu.Unlock()
	return nil
}

// Pumps returns the pumps measurements are generated for.
func (p *Producer) Pumps() []energy.Pump {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]energy.Pump(nil), p.pumps...)
}

// RandomDataPoint posts a consumption and a flow measurement for a random
// active pump. Both are attempted even when one fails.
func (p *Producer) RandomDataPoint(ctx context.Context) error {
	var timer *prometheus.Timer
	if p.metrics != nil {
		timer = prometheus.NewTimer(p.metrics.GenerationDuration.WithLabelValues("measurements"))
		defer timer.ObserveDuration()
	}

	now := p.now()
	p.mu.Lock()
	pump, ok := p.source.Pick(activePumps(p.pumps))
	var (
		consumption energy.ConsumptionInput
		flow        water.FlowInput
	)
	if ok {
		consumption = p.source.Consumption(pump, now)
		flow = p.source.Flow(pump, now)
	}
	p.mu.Unlock()
	if !ok {
		return errors.New("no active pump to generate measurements for")
	}

	_, errConsumption := p.energy.CreateConsumption(ctx, consumption)
	p.metrics.ObserveRecord(kindConsumption, errConsumption)
	if errConsumption != nil {
		errConsumption = fmt.Errorf("record consumption of pump %d: %w", pump.ID, errConsumption)
	}

	_, errFlow := p.water.CreateFlow(ctx, flow)
	p.metrics.ObserveRecord(kindFlow, errFlow)
	if errFlow != nil {
		errFlow = fmt.Errorf("record flow of pump %d: %w", pump.ID, errFlow)
	}

	return errors.Join(errConsumption, errFlow)
}

func activePumps(pumps []energy.Pump) []energy.Pump {
	active := make([]energy.Pump, 0, len(pumps))
	for _, p := range pumps {
		if p.Active() {
			active = append(active, p)
		}
	}
	return active
}
