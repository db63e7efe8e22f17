package producer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"irriflow.dev/dashboard/pkg/generator"
	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/mq"
)

// ServerConfig holds the configuration for the producer server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// Energy is the energy service the measurements are posted to
	Energy EnergyAPI
	// Water is the water service the measurements are posted to
	Water WaterAPI
	// Interval is the time between data point generation
	Interval time.Duration
	// ProducerCount is the number of concurrent producers
	ProducerCount int
	// SeedPumps is the number of pumps created at startup when fewer exist
	SeedPumps int
	// SeedReservoirs is the number of reservoirs created at startup when fewer exist
	SeedReservoirs int
	// Publisher, when set, receives an event for every newly raised alert
	Publisher mq.Publisher
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.ProducerMetrics
	// Seed makes the generated data reproducible. Zero picks a random seed.
	Seed uint64
}

// Server manages multiple producer instances.
type Server struct {
	logger    *slog.Logger
	config    *ServerConfig
	producers []*Producer
	relay     *Relay
	metrics   *metrics.ProducerMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
}

var (
	errInvalidProducerCount = errors.New("producer count must be greater than 0")
	errInvalidInterval      = errors.New("interval must be greater than 0")
	errLoggerRequired       = errors.New("logger is required")
	errEnergyRequired       = errors.New("energy service is required")
	errWaterRequired        = errors.New("water service is required")
	errInvalidSeedCount     = errors.New("seed counts cannot be negative")
)

// NewServer creates a new producer server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.ProducerCount <= 0 {
		return nil, errInvalidProducerCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.Energy == nil {
		return nil, errEnergyRequired
	}

	if cfg.Water == nil {
		return nil, errWaterRequired
	}

	if cfg.SeedPumps < 0 || cfg.SeedReservoirs < 0 {
		return nil, errInvalidSeedCount
	}

	s := &Server{
		config:    cfg,
		producers: make([]*Producer, 0, cfg.ProducerCount),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}

	for i := 0; i < cfg.ProducerCount; i++ {
		seed := cfg.Seed
		if seed != 0 {
			seed += uint64(i)
		}
		producer := NewProducer(cfg.Energy, cfg.Water, generator.New(seed))
		if cfg.Metrics != nil {
			producer.SetMetrics(cfg.Metrics)
		}
		s.producers = append(s.producers, producer)
	}

	if cfg.Publisher != nil {
		s.relay = NewRelay(cfg.Water, cfg.Publisher, cfg.Metrics)
	}

	s.logger.Info("created producer server",
		"producer_count", cfg.ProducerCount,
		"seed_pumps", cfg.SeedPumps,
		"seed_reservoirs", cfg.SeedReservoirs,
		"alert_relay", s.relay != nil,
	)

	return s, nil
}

// Run seeds the backends, starts all producers and blocks until a shutdown
// signal is received, ctx ends or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.seed(ctx); err != nil {
		s.closeClients()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	g, gctx := errgroup.WithContext(ctx)
	for i, producer := range s.producers {
		g.Go(func() error {
			s.runProducer(gctx, i, producer)
			return nil
		})
	}
	if s.relay != nil {
		g.Go(func() error {
			s.runRelay(gctx)
			return nil
		})
	}

	s.logger.Info("producer server started",
		"producer_count", len(s.producers),
		"interval", s.config.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for producers to shut down...")
	err := g.Wait()

	s.closeClients()

	s.logger.Info("producer server stopped")
	return err
}

// seed creates the missing pumps and reservoirs once, then lets every other
// producer load the resulting pump list.
func (s *Server) seed(ctx context.Context) error {
	for i, producer := range s.producers {
		pumps, reservoirs := 0, 0
		if i == 0 {
			pumps, reservoirs = s.config.SeedPumps, s.config.SeedReservoirs
		}
		if err := producer.Seed(ctx, pumps, reservoirs, s.logger); err != nil {
			return fmt.Errorf("seed producer %d: %w", i, err)
		}
	}
	s.logger.Info("backends seeded", "pump_count", len(s.producers[0].Pumps()))
	return nil
}

// runProducer runs a single producer instance, generating data points at configured intervals.
func (s *Server) runProducer(ctx context.Context, id int, producer *Producer) {
	if s.metrics != nil {
		s.metrics.ActiveProducers.Inc()
		defer s.metrics.ActiveProducers.Dec()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	producerLogger := s.logger.With(slog.Int("producer_id", id))
	producerLogger.Info("producer started")

	for {
		select {
		case <-ctx.Done():
			producerLogger.Info("producer shutting down")
			return

		case <-ticker.C:
			if err := producer.RandomDataPoint(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				producerLogger.Error("failed to generate data point", "error", err)
				continue
			}

			producerLogger.Debug("data point generated and sent")
		}
	}
}

func (s *Server) runRelay(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	relayLogger := s.logger.With(slog.String("component", "alert-relay"))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			published, err := s.relay.Announce(ctx)
			if err != nil && ctx.Err() == nil {
				relayLogger.Error("failed to relay alerts", "error", err)
			}
			if published > 0 {
				relayLogger.Info("alerts relayed", "count", published)
			}
		}
	}
}

// closeClients closes the alert publisher when it holds a connection.
func (s *Server) closeClients() {
	closer, ok := s.config.Publisher.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		s.logger.Error("failed to close MQ client", "error", err)
		return
	}
	s.logger.Info("MQ client closed")
}

// Shutdown stops a running server. This is an alternative to sending OS signals.
func (s *Server) Shutdown() error {
	s.logger.Info("shutdown requested")

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		s.closeClients()
		return nil
	}
	cancel()
	return nil
}
