// Package poll keeps a view's data as one point-in-time snapshot, rebuilt by
// fanning out every fetch of the view concurrently and swapping the result in
// only after all of them settle.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"irriflow.dev/dashboard/pkg/logger"
	"irriflow.dev/dashboard/pkg/metrics"
)

// ErrStopped is returned by Refresh and Start once Stop has been called.
var ErrStopped = errors.New("store stopped")

// Snapshot is the data of one refresh generation.
type Snapshot[S any] struct {
	Data S
	// Generation counts applied cycles; 0 means nothing was loaded yet.
	Generation uint64
	// Loaded is false until the first cycle settles, degraded or not.
	Loaded bool
	// RefreshedAt is when the snapshot was applied.
	RefreshedAt time.Time
	// Failures maps source names to the error that degraded them.
	Failures map[string]error
}

// Degraded reports whether any source failed in this generation.
func (s Snapshot[S]) Degraded() bool {
	return len(s.Failures) > 0
}

// Controller is the type-independent surface of a Store.
type Controller interface {
	Name() string
	Refresh(ctx context.Context) error
	Start(ctx context.Context) error
	Stop()
	Changed() <-chan struct{}
	Loaded() bool
}

// Option configures a Store.
type Option func(*options)

type options struct {
	interval time.Duration
	failure  FailurePolicy
	overlap  OverlapPolicy
	logger   *slog.Logger
	metrics  *metrics.PollMetrics
	now      func() time.Time
}

// WithInterval sets the recurring refresh period used after Start. Zero disables it.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithFailurePolicy sets how failed fetches are handled.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *options) { o.failure = p }
}

// WithOverlapPolicy sets how concurrent refresh requests are handled.
func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(o *options) { o.overlap = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records cycles in m.
func WithMetrics(m *metrics.PollMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now for RefreshedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// followUp is a pending coalesced cycle that callers wait on.
type followUp struct {
	done chan struct{}
	err  error
}

// Store owns the snapshot of one view.
type Store[S any] struct {
	name    string
	sources []Source[S]
	opts    options
	logger  *slog.Logger

	mu       sync.Mutex
	snap     Snapshot[S]
	running  bool
	follow   *followUp
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	changed  chan struct{}
}

// New returns a store named name that refreshes from sources.
func New[S any](name string, sources []Source[S], opts ...Option) *Store[S] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[S]{
		name:    name,
		sources: sources,
		opts:    o,
		logger:  logger.Component(o.logger, "poll").With("view", name),
		changed: make(chan struct{}, 1),
	}
}

// Name returns the view name.
func (s *Store[S]) Name() string {
	return s.name
}

// Interval returns the recurring refresh period.
func (s *Store[S]) Interval() time.Duration {
	return s.opts.interval
}

// Snapshot returns the current snapshot.
func (s *Store[S]) Snapshot() Snapshot[S] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Loaded reports whether the first cycle has settled.
func (s *Store[S]) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Loaded
}

// Changed is signaled after every applied snapshot. Signals coalesce: a
// slow reader sees one pending signal, not one per cycle. The channel is
// closed by Stop.
func (s *Store[S]) Changed() <-chan struct{} {
	return s.changed
}

// Refresh runs a full cycle over every source and applies the result.
// With the Degrade policy it only fails when ctx ends or the store is stopped.
func (s *Store[S]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.opts.overlap == LastWriteWins {
		s.mu.Unlock()
		return s.cycle(ctx)
	}
	if s.running {
		if s.follow == nil {
			s.follow = &followUp{done: make(chan struct{})}
		}
		wait := s.follow
		s.mu.Unlock()

		s.opts.metrics.ObserveCoalesced(s.name)
		select {
		case <-wait.done:
			return wait.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.running = true
	s.mu.Unlock()

	err := s.cycle(ctx)
	s.handOff(context.WithoutCancel(ctx))
	return err
}

// handOff starts the pending follow-up cycle, if any, or marks the store idle.
func (s *Store[S]) handOff(ctx context.Context) {
	s.mu.Lock()
	next := s.follow
	s.follow = nil
	if next == nil || s.stopped {
		s.running = false
		s.mu.Unlock()
		if next != nil {
			next.err = ErrStopped
			close(next.done)
		}
		return
	}
	s.mu.Unlock()

	go func() {
		next.err = s.cycle(ctx)
		close(next.done)
		s.handOff(ctx)
	}()
}

// cycle fans out every source, waits for all of them and swaps the snapshot.
func (s *Store[S]) cycle(ctx context.Context) error {
	start := time.Now()

	assigns := make([]func(*S), len(s.sources))
	errs := make([]error, len(s.sources))

	var g *errgroup.Group
	fetchCtx := ctx
	if s.opts.failure == Abort {
		g, fetchCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	for i, src := range s.sources {
		g.Go(func() error {
			assigns[i], errs[i] = src.fetch(fetchCtx)
			if s.opts.failure == Abort {
				return errs[i]
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.opts.metrics.ObserveCycle(s.name, "canceled", time.Since(start), nil)
		return err
	}

	var failures map[string]error
	var degraded []string
	for i, err := range errs {
		if err == nil {
			continue
		}
		if failures == nil {
			failures = make(map[string]error)
		}
		name := s.sources[i].name
		failures[name] = err
		degraded = append(degraded, name)
	}

	if s.opts.failure == Abort && len(failures) > 0 {
		s.opts.metrics.ObserveCycle(s.name, "aborted", time.Since(start), degraded)
		var empty S
		for i, assign := range assigns {
			if errs[i] != nil && assign != nil {
				assign(&empty)
			}
		}
		if s.settleEmpty(empty, failures) {
			s.logger.Warn("first refresh aborted, showing empty collections", "failed_sources", degraded)
		} else {
			s.logger.Warn("refresh aborted, keeping previous snapshot", "failed_sources", degraded)
		}
		return errors.Join(errs...)
	}

	var next S
	for _, assign := range assigns {
		if assign != nil {
			assign(&next)
		}
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.opts.metrics.ObserveDiscarded(s.name)
		s.logger.Debug("discarding cycle that settled after stop")
		return nil
	}
	s.snap = Snapshot[S]{
		Data:        next,
		Generation:  s.snap.Generation + 1,
		Loaded:      true,
		RefreshedAt: s.opts.now(),
		Failures:    failures,
	}
	generation := s.snap.Generation
	select {
	case s.changed <- struct{}{}:
	default:
	}
	s.mu.Unlock()

	outcome := "complete"
	if len(degraded) > 0 {
		outcome = "degraded"
		for _, name := range degraded {
			s.logger.Warn("fetch failed, showing empty collection", "source", name, "error", failures[name])
		}
	}
	s.opts.metrics.ObserveCycle(s.name, outcome, time.Since(start), degraded)
	s.opts.metrics.ObserveGeneration(s.name, generation)
	s.logger.Debug("snapshot applied", "generation", generation, "duration", time.Since(start))
	return nil
}

// settleEmpty ends the loading state with empty, degraded data when nothing
// was loaded yet. A loaded snapshot is left untouched.
func (s *Store[S]) settleEmpty(data S, failures map[string]error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.snap.Loaded {
		return false
	}
	s.snap = Snapshot[S]{
		Data:        data,
		Generation:  s.snap.Generation + 1,
		Loaded:      true,
		RefreshedAt: s.opts.now(),
		Failures:    failures,
	}
	select {
	case s.changed <- struct{}{}:
	default:
	}
	return true
}

// Start performs the initial load if nothing is loaded yet and then keeps
// refreshing on the configured interval until ctx ends or Stop is called.
// Calling Start on a running store is a no-op.
func (s *Store[S]) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	loaded := s.snap.Loaded
	if s.opts.interval > 0 {
		s.loopDone = make(chan struct{})
	}
	done := s.loopDone
	s.mu.Unlock()

	var err error
	if !loaded {
		err = s.Refresh(loopCtx)
	}
	if done != nil {
		go s.loop(loopCtx, done)
	}
	return err
}

func (s *Store[S]) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.opts.interval)
	defer ticker.Stop()

	s.logger.Debug("polling started", "interval", s.opts.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("polling stopped")
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, ErrStopped) {
				s.logger.Warn("scheduled refresh failed", "error", err)
			}
		}
	}
}

// Stop ends the store: the ticker stops, cycles still in flight are dropped
// when they settle and Changed is closed. Stop is idempotent.
func (s *Store[S]) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	done := s.loopDone
	close(s.changed)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

var _ Controller = (*Store[struct{}])(nil)
