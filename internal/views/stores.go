package views

import (
	"errors"
	"log/slog"
	"time"

	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/pkg/logger"
	"irriflow.dev/dashboard/pkg/metrics"
)

// Default recurring refresh periods. Management and detail views only
// refresh after a mutation.
const (
	DefaultDashboardInterval = 30 * time.Second
	DefaultAlertsInterval    = 10 * time.Second
)

// Config wires the stores built by a Factory.
type Config struct {
	Energy EnergyReader
	Water  WaterReader

	// DashboardInterval and AlertsInterval default when zero. A negative
	// value disables the timer.
	DashboardInterval time.Duration
	AlertsInterval    time.Duration

	FailurePolicy poll.FailurePolicy
	OverlapPolicy poll.OverlapPolicy

	Logger  *slog.Logger
	Metrics *metrics.PollMetrics
}

// Factory builds a fresh store every time a view is mounted.
type Factory struct {
	cfg Config
}

// NewFactory validates cfg.
func NewFactory(cfg *Config) (*Factory, error) {
	if cfg == nil {
		return nil, errors.New("views config cannot be nil")
	}
	if cfg.Energy == nil {
		return nil, errors.New("energy client cannot be nil")
	}
	if cfg.Water == nil {
		return nil, errors.New("water client cannot be nil")
	}
	c := *cfg
	c.DashboardInterval = interval(c.DashboardInterval, DefaultDashboardInterval)
	c.AlertsInterval = interval(c.AlertsInterval, DefaultAlertsInterval)
	if c.Logger == nil {
		c.Logger = logger.Discard()
	}
	return &Factory{cfg: c}, nil
}

func interval(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	}
	return d
}

// Interval returns the recurring refresh period of kind, zero when the view
// only refreshes on demand.
func (f *Factory) Interval(kind Kind) time.Duration {
	switch kind {
	case Dashboard:
		return f.cfg.DashboardInterval
	case Alerts:
		return f.cfg.AlertsInterval
	}
	return 0
}

func (f *Factory) options(kind Kind) []poll.Option {
	return []poll.Option{
		poll.WithInterval(f.Interval(kind)),
		poll.WithFailurePolicy(f.cfg.FailurePolicy),
		poll.WithOverlapPolicy(f.cfg.OverlapPolicy),
		poll.WithLogger(f.cfg.Logger),
		poll.WithMetrics(f.cfg.Metrics),
	}
}

// Dashboard returns a new overview store.
func (f *Factory) Dashboard() *poll.Store[DashboardState] {
	return poll.New(string(Dashboard), DashboardSources(f.cfg.Energy, f.cfg.Water), f.options(Dashboard)...)
}

// Energy returns a new pump management store.
func (f *Factory) Energy() *poll.Store[EnergyState] {
	return poll.New(string(Energy), EnergySources(f.cfg.Energy), f.options(Energy)...)
}

// Water returns a new reservoir management store.
func (f *Factory) Water() *poll.Store[WaterState] {
	return poll.New(string(Water), WaterSources(f.cfg.Water), f.options(Water)...)
}

// Alerts returns a new alerts store.
func (f *Factory) Alerts() *poll.Store[AlertsState] {
	return poll.New(string(Alerts), AlertsSources(f.cfg.Water), f.options(Alerts)...)
}

// PumpDetail returns a new store for pump id.
func (f *Factory) PumpDetail(id int64) *poll.Store[PumpDetailState] {
	return poll.New("pump_detail", PumpDetailSources(id, f.cfg.Energy, f.cfg.Water), f.detailOptions("pump", id)...)
}

// ReservoirDetail returns a new store for reservoir id.
func (f *Factory) ReservoirDetail(id int64) *poll.Store[ReservoirDetailState] {
	return poll.New("reservoir_detail", ReservoirDetailSources(id, f.cfg.Water), f.detailOptions("reservoir", id)...)
}

func (f *Factory) detailOptions(entity string, id int64) []poll.Option {
	return []poll.Option{
		poll.WithFailurePolicy(f.cfg.FailurePolicy),
		poll.WithOverlapPolicy(f.cfg.OverlapPolicy),
		poll.WithLogger(f.cfg.Logger.With(slog.Int64(entity+"_id", id))),
		poll.WithMetrics(f.cfg.Metrics),
	}
}
