// Package frontend serves the IrriFlow dashboard: server-rendered views
// backed by polling stores, form posts running the mutation workflow and a
// websocket per page pushing refreshed fragments.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"irriflow.dev/dashboard/internal/export"
	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/internal/views"
	"irriflow.dev/dashboard/pkg/metrics"
)

const (
	defaultLiveGrace = 10 * time.Second
	backendTimeout   = 10 * time.Second
)

// Server represents the dashboard HTTP server.
type Server struct {
	logger     *slog.Logger
	config     *ServerConfig
	factory    *views.Factory
	sessions   *sessions
	clock      clock
	exporter   *export.Exporter
	now        func() time.Time
	router     http.Handler
	httpServer *http.Server

	closeOnce sync.Once
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// HTTP server configuration
	HTTPPort int

	// Backend services
	Energy views.EnergyAPI
	Water  views.WaterAPI

	// Refresh behavior
	DashboardInterval time.Duration
	AlertsInterval    time.Duration
	FailurePolicy     poll.FailurePolicy
	OverlapPolicy     poll.OverlapPolicy

	// StatusTTL is how long a status message stays visible.
	StatusTTL time.Duration
	// SessionIdle expires sessions without requests for that long.
	SessionIdle time.Duration
	// LiveGrace keeps a view mounted after its last websocket closed.
	LiveGrace     time.Duration
	SecureCookies bool

	// Location renders timestamps. Defaults to time.Local.
	Location *time.Location

	// EnergyProxy and WaterProxy, when set, are the upstreams served under
	// /energy-service/ and /water-service/.
	EnergyProxy string
	WaterProxy  string
	// NoProxy disables the backend forwarding entirely.
	NoProxy bool
	// ProxyCORSOrigins may call the forwarded services cross-origin.
	ProxyCORSOrigins []string

	Metrics        *metrics.FrontendMetrics
	PollMetrics    *metrics.PollMetrics
	MetricsHandler http.Handler

	// Now stamps recorded measurements. Defaults to time.Now.
	Now func() time.Time
}

// NewServer creates a new dashboard Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	if cfg.Energy == nil {
		return nil, errors.New("energy client cannot be nil")
	}

	if cfg.Water == nil {
		return nil, errors.New("water client cannot be nil")
	}

	factory, err := views.NewFactory(&views.Config{
		Energy:            cfg.Energy,
		Water:             cfg.Water,
		DashboardInterval: cfg.DashboardInterval,
		AlertsInterval:    cfg.AlertsInterval,
		FailurePolicy:     cfg.FailurePolicy,
		OverlapPolicy:     cfg.OverlapPolicy,
		Logger:            cfg.Logger,
		Metrics:           cfg.PollMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build view stores: %w", err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		logger:   cfg.Logger,
		config:   cfg,
		factory:  factory,
		sessions: newSessions(cfg.SessionIdle, cfg.StatusTTL, cfg.Logger, cfg.Metrics),
		clock:    clock{loc: loc},
		exporter: export.New(loc),
		now:      now,
	}
	s.sessions.secure = cfg.SecureCookies

	router, err := s.setupRoutes()
	if err != nil {
		return nil, err
	}
	s.router = router
	return s, nil
}

// Handler returns the HTTP handler of the dashboard.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the dashboard server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting frontend server")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go s.sessions.janitor(ctx)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	// Start HTTP server in goroutine
	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("frontend server started successfully")

	// Wait for shutdown signal or HTTP error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			s.Close()
			return err
		}
	}

	// Shutdown
	return s.Shutdown()
}

// Shutdown gracefully shuts down the server and unmounts every view.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down frontend server")

	var shutdownErr error

	// Shutdown HTTP server
	if s.httpServer != nil {
		s.logger.Info("stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	s.Close()

	if shutdownErr != nil {
		s.logger.Error("frontend server shutdown completed with errors", "error", shutdownErr)
		return shutdownErr
	}

	s.logger.Info("frontend server shutdown completed successfully")
	return nil
}

// Close ends every session and stops their stores.
func (s *Server) Close() {
	s.closeOnce.Do(s.sessions.closeAll)
}

// RefreshMounted refreshes every mounted view with one of names, across all
// sessions, and returns how many were refreshed.
func (s *Server) RefreshMounted(ctx context.Context, names ...string) int {
	var targets []*mount
	s.sessions.each(func(sess *session) {
		for _, name := range names {
			if m, ok := sess.mounted(name); ok {
				targets = append(targets, m)
			}
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range targets {
		g.Go(func() error {
			if err := m.store.Refresh(ctx); err != nil && !errors.Is(err, poll.ErrStopped) {
				m.logger.Warn("pushed refresh failed", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(targets)
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	// Health check and metrics
	r.Get("/health", s.handleHealth)
	if s.config.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.config.MetricsHandler)
	}

	// Views
	r.Get("/", s.handleDashboard)

	r.Route("/energy", func(r chi.Router) {
		r.Get("/", s.handleEnergy)
		r.Get("/export.xlsx", s.handleEnergyExport)
		r.Post("/pumps", s.handleSavePump)
		r.Get("/pumps/{id}", s.handlePumpDetail)
		r.Post("/pumps/{id}", s.handleSavePump)
		r.Get("/pumps/{id}/delete", s.handleConfirmDeletePump)
		r.Post("/pumps/{id}/delete", s.handleDeletePump)
		r.Post("/consumption", s.handleRecordConsumption)
	})

	r.Route("/water", func(r chi.Router) {
		r.Get("/", s.handleWater)
		r.Get("/export.xlsx", s.handleWaterExport)
		r.Post("/reservoirs", s.handleSaveReservoir)
		r.Get("/reservoirs/{id}", s.handleReservoirDetail)
		r.Post("/reservoirs/{id}", s.handleSaveReservoir)
		r.Get("/reservoirs/{id}/delete", s.handleConfirmDeleteReservoir)
		r.Post("/reservoirs/{id}/delete", s.handleDeleteReservoir)
		r.Post("/flows", s.handleRecordFlow)
		r.Post("/pumps/{id}/start", s.handleStartPump)
	})

	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", s.handleAlerts)
		r.Get("/report.pdf", s.handleAlertsReport)
		r.Post("/{id}/resolve", s.handleResolveAlert)
	})

	// Live view updates
	r.Get("/live/{mount}", s.handleLive)

	// Backend APIs for browsers and tools that expect them on this origin
	if !s.config.NoProxy {
		if err := s.mountProxies(r); err != nil {
			return nil, err
		}
	}

	r.NotFound(s.handleNotFound)
	return r, nil
}
