package poll_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"irriflow.dev/dashboard/internal/poll"
	"irriflow.dev/dashboard/pkg/metrics"
)

type farm struct {
	Pumps      poll.Result[string]
	Reservoirs poll.Result[int]
	Level      poll.Value[float64]
}

// fake is a controllable list fetch.
type fake[T any] struct {
	mu      sync.Mutex
	items   []T
	err     error
	calls   atomic.Int32
	started chan struct{}
	gate    chan struct{}
}

func newFake[T any](items ...T) *fake[T] {
	return &fake[T]{items: items, started: make(chan struct{}, 16)}
}

func (f *fake[T]) set(items []T, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.err = items, err
}

// hold makes every following fetch block until release is called.
func (f *fake[T]) hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

func (f *fake[T]) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

func (f *fake[T]) fetch(ctx context.Context) ([]T, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]T(nil), f.items...), nil
}

var _ = Describe("Store", func() {
	var (
		pumps      *fake[string]
		reservoirs *fake[int]
		reg        *prometheus.Registry
		m          *metrics.PollMetrics
	)

	BeforeEach(func() {
		pumps = newFake("P-1", "P-2")
		reservoirs = newFake(10000, 5000)
		reg = prometheus.NewRegistry()
		m = metrics.NewPollMetrics(reg, "test")
	})

	sources := func() []poll.Source[farm] {
		return []poll.Source[farm]{
			poll.Collection("pumps", pumps.fetch, func(f *farm) *poll.Result[string] { return &f.Pumps }),
			poll.Collection("reservoirs", reservoirs.fetch, func(f *farm) *poll.Result[int] { return &f.Reservoirs }),
		}
	}

	newStore := func(opts ...poll.Option) *poll.Store[farm] {
		opts = append([]poll.Option{poll.WithMetrics(m)}, opts...)
		return poll.New("dashboard", sources(), opts...)
	}

	refreshAsync := func(s *poll.Store[farm]) <-chan error {
		done := make(chan error, 1)
		go func() { done <- s.Refresh(context.Background()) }()
		return done
	}

	Describe("Refresh", func() {
		It("starts every fetch before any of them settles", func() {
			pumps.hold()
			reservoirs.hold()
			store := newStore()

			done := refreshAsync(store)
			Eventually(pumps.started).Should(Receive())
			Eventually(reservoirs.started).Should(Receive())
			Consistently(done, 50*time.Millisecond).ShouldNot(Receive())

			pumps.release()
			reservoirs.release()
			Eventually(done).Should(Receive(BeNil()))
		})

		It("does not touch the snapshot until every fetch settled", func() {
			reservoirs.hold()
			store := newStore()

			done := refreshAsync(store)
			Eventually(pumps.started).Should(Receive())
			Eventually(reservoirs.started).Should(Receive())
			Consistently(func() bool { return store.Loaded() }, 50*time.Millisecond).Should(BeFalse())
			Expect(store.Snapshot().Generation).To(BeZero())

			reservoirs.release()
			Eventually(done).Should(Receive(BeNil()))

			snap := store.Snapshot()
			Expect(snap.Loaded).To(BeTrue())
			Expect(snap.Generation).To(Equal(uint64(1)))
			Expect(snap.Data.Pumps.Items).To(Equal([]string{"P-1", "P-2"}))
			Expect(snap.Data.Reservoirs.Items).To(Equal([]int{10000, 5000}))
		})

		It("degrades a failed fetch to an empty collection and keeps the others", func() {
			boom := errors.New("energy service down")
			pumps.set(nil, boom)
			store := newStore()

			Expect(store.Refresh(context.Background())).To(Succeed())

			snap := store.Snapshot()
			Expect(snap.Loaded).To(BeTrue())
			Expect(snap.Degraded()).To(BeTrue())
			Expect(snap.Failures).To(HaveKeyWithValue("pumps", boom))
			Expect(snap.Data.Pumps.Items).To(BeEmpty())
			Expect(snap.Data.Pumps.Degraded()).To(BeTrue())
			Expect(snap.Data.Reservoirs.Items).To(HaveLen(2))
			Expect(snap.Data.Reservoirs.Degraded()).To(BeFalse())
			Expect(testutil.ToFloat64(m.Degraded.WithLabelValues("dashboard", "pumps"))).To(Equal(1.0))
		})

		It("tells an empty backend apart from a failed fetch", func() {
			pumps.set(nil, nil)
			store := newStore()
			Expect(store.Refresh(context.Background())).To(Succeed())

			snap := store.Snapshot()
			Expect(snap.Data.Pumps.Len()).To(BeZero())
			Expect(snap.Data.Pumps.Degraded()).To(BeFalse())
			Expect(snap.Degraded()).To(BeFalse())
		})

		It("is idempotent when the backend does not change", func() {
			store := newStore()
			Expect(store.Refresh(context.Background())).To(Succeed())
			first := store.Snapshot()
			Expect(store.Refresh(context.Background())).To(Succeed())
			second := store.Snapshot()

			Expect(second.Data).To(Equal(first.Data))
			Expect(second.Generation).To(Equal(first.Generation + 1))
		})

		It("replaces the snapshot wholesale on every cycle", func() {
			store := newStore()
			Expect(store.Refresh(context.Background())).To(Succeed())

			pumps.set([]string{"P-9"}, nil)
			reservoirs.set(nil, errors.New("timeout"))
			Expect(store.Refresh(context.Background())).To(Succeed())

			snap := store.Snapshot()
			Expect(snap.Data.Pumps.Items).To(Equal([]string{"P-9"}))
			Expect(snap.Data.Reservoirs.Items).To(BeEmpty())
		})

		It("keeps the previous snapshot under the abort policy", func() {
			store := newStore(poll.WithFailurePolicy(poll.Abort))
			Expect(store.Refresh(context.Background())).To(Succeed())

			pumps.set(nil, errors.New("down"))
			err := store.Refresh(context.Background())
			Expect(err).To(MatchError(ContainSubstring("down")))

			snap := store.Snapshot()
			Expect(snap.Generation).To(Equal(uint64(1)))
			Expect(snap.Data.Pumps.Items).To(Equal([]string{"P-1", "P-2"}))
			Expect(testutil.ToFloat64(m.Cycles.WithLabelValues("dashboard", "aborted"))).To(Equal(1.0))
		})

		It("ends the loading state when the first cycle aborts", func() {
			pumps.set(nil, errors.New("down"))
			store := newStore(poll.WithFailurePolicy(poll.Abort))

			Expect(store.Start(context.Background())).To(MatchError(ContainSubstring("down")))
			DeferCleanup(store.Stop)

			snap := store.Snapshot()
			Expect(snap.Loaded).To(BeTrue())
			Expect(snap.Degraded()).To(BeTrue())
			Expect(snap.Data.Pumps.Degraded()).To(BeTrue())
			Expect(snap.Data.Pumps.Items).To(BeEmpty())
			Expect(snap.Data.Reservoirs.Items).To(BeEmpty())
			Expect(store.Changed()).To(Receive())
		})

		It("does not apply a cycle whose context was canceled", func() {
			pumps.hold()
			store := newStore()
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- store.Refresh(ctx) }()

			Eventually(pumps.started).Should(Receive())
			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
			Expect(store.Loaded()).To(BeFalse())
		})

		It("stamps the snapshot with the injected clock", func() {
			at := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
			store := newStore(poll.WithClock(func() time.Time { return at }))
			Expect(store.Refresh(context.Background())).To(Succeed())
			Expect(store.Snapshot().RefreshedAt).To(Equal(at))
		})

		It("fills scalar sources", func() {
			store := poll.New("detail", []poll.Source[farm]{
				poll.Single("level", func(context.Context) (float64, error) { return 75, nil }, func(f *farm) *poll.Value[float64] { return &f.Level }),
			})
			Expect(store.Refresh(context.Background())).To(Succeed())
			Expect(store.Snapshot().Data.Level.Value).To(Equal(75.0))
			Expect(store.Snapshot().Data.Level.Degraded()).To(BeFalse())
		})
	})

	Describe("overlapping refreshes", func() {
		It("folds requests made during a cycle into one follow-up", func() {
			pumps.hold()
			store := newStore()

			first := refreshAsync(store)
			Eventually(pumps.started).Should(Receive())

			second := refreshAsync(store)
			third := refreshAsync(store)
			Consistently(second, 50*time.Millisecond).ShouldNot(Receive())

			pumps.set([]string{"after mutation"}, nil)
			pumps.release()

			Eventually(first).Should(Receive(BeNil()))
			Eventually(second).Should(Receive(BeNil()))
			Eventually(third).Should(Receive(BeNil()))

			Expect(pumps.calls.Load()).To(Equal(int32(2)))
			snap := store.Snapshot()
			Expect(snap.Generation).To(Equal(uint64(2)))
			Expect(snap.Data.Pumps.Items).To(Equal([]string{"after mutation"}))
			Expect(testutil.ToFloat64(m.Coalesced.WithLabelValues("dashboard"))).To(Equal(2.0))
		})

		It("lets a waiting caller give up without stopping the follow-up", func() {
			pumps.hold()
			store := newStore()

			first := refreshAsync(store)
			Eventually(pumps.started).Should(Receive())

			ctx, cancel := context.WithCancel(context.Background())
			waiting := make(chan error, 1)
			go func() { waiting <- store.Refresh(ctx) }()
			Eventually(func() float64 {
				return testutil.ToFloat64(m.Coalesced.WithLabelValues("dashboard"))
			}).Should(Equal(1.0))
			cancel()
			Eventually(waiting).Should(Receive(MatchError(context.Canceled)))

			pumps.release()
			Eventually(first).Should(Receive(BeNil()))
			Eventually(func() uint64 { return store.Snapshot().Generation }).Should(Equal(uint64(2)))
		})

		It("runs concurrent cycles under last-write-wins", func() {
			pumps.hold()
			store := newStore(poll.WithOverlapPolicy(poll.LastWriteWins))

			first := refreshAsync(store)
			second := refreshAsync(store)
			Eventually(pumps.started).Should(Receive())
			Eventually(pumps.started).Should(Receive())
			pumps.release()

			Eventually(first).Should(Receive(BeNil()))
			Eventually(second).Should(Receive(BeNil()))
			Expect(store.Snapshot().Generation).To(Equal(uint64(2)))
		})
	})

	Describe("Start and Stop", func() {
		It("loads once and keeps polling on the interval", func() {
			store := newStore(poll.WithInterval(20 * time.Millisecond))
			Expect(store.Start(context.Background())).To(Succeed())
			DeferCleanup(store.Stop)

			Expect(store.Loaded()).To(BeTrue())
			Eventually(func() int32 { return pumps.calls.Load() }).Should(BeNumerically(">=", 3))
		})

		It("does not poll without an interval", func() {
			store := newStore()
			Expect(store.Start(context.Background())).To(Succeed())
			DeferCleanup(store.Stop)

			Consistently(func() int32 { return pumps.calls.Load() }, 100*time.Millisecond).Should(Equal(int32(1)))
		})

		It("skips the initial load when already loaded", func() {
			store := newStore()
			Expect(store.Refresh(context.Background())).To(Succeed())
			Expect(store.Start(context.Background())).To(Succeed())
			DeferCleanup(store.Stop)

			Expect(pumps.calls.Load()).To(Equal(int32(1)))
		})

		It("stops the ticker and closes Changed", func() {
			store := newStore(poll.WithInterval(10 * time.Millisecond))
			Expect(store.Start(context.Background())).To(Succeed())
			Eventually(func() int32 { return pumps.calls.Load() }).Should(BeNumerically(">=", 2))

			store.Stop()
			settled := pumps.calls.Load()
			Consistently(func() int32 { return pumps.calls.Load() }, 60*time.Millisecond).Should(Equal(settled))
			Eventually(store.Changed()).Should(BeClosed())
		})

		It("drops a cycle that settles after Stop", func() {
			pumps.hold()
			store := newStore()

			done := refreshAsync(store)
			Eventually(pumps.started).Should(Receive())
			store.Stop()
			pumps.release()

			Eventually(done).Should(Receive(BeNil()))
			Expect(store.Loaded()).To(BeFalse())
			Expect(testutil.ToFloat64(m.Discarded.WithLabelValues("dashboard"))).To(Equal(1.0))
		})

		It("refuses work once stopped", func() {
			store := newStore()
			store.Stop()
			store.Stop()

			Expect(store.Refresh(context.Background())).To(MatchError(poll.ErrStopped))
			Expect(store.Start(context.Background())).To(MatchError(poll.ErrStopped))
		})

		It("signals Changed after each applied snapshot", func() {
			store := newStore()
			Expect(store.Refresh(context.Background())).To(Succeed())
			Eventually(store.Changed()).Should(Receive())

			Expect(store.Refresh(context.Background())).To(Succeed())
			Expect(store.Refresh(context.Background())).To(Succeed())
			Eventually(store.Changed()).Should(Receive())
			Consistently(store.Changed(), 30*time.Millisecond).ShouldNot(Receive())
		})

		It("ends polling with the start context", func() {
			store := newStore(poll.WithInterval(10 * time.Millisecond))
			ctx, cancel := context.WithCancel(context.Background())
			Expect(store.Start(ctx)).To(Succeed())
			DeferCleanup(store.Stop)

			cancel()
			Eventually(func() int32 { return pumps.calls.Load() }).Should(BeNumerically(">=", 1))
			settled := pumps.calls.Load()
			Consistently(func() int32 { return pumps.calls.Load() }, 60*time.Millisecond).Should(BeNumerically("<=", settled+1))
		})
	})
})

var _ = Describe("Policies", func() {
	DescribeTable("ParseFailurePolicy",
		func(in string, expected poll.FailurePolicy, ok bool) {
			p, err := poll.ParseFailurePolicy(in)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(expected))
			Expect(p.String()).NotTo(BeEmpty())
		},
		Entry("default", "", poll.Degrade, true),
		Entry("degrade", "degrade", poll.Degrade, true),
		Entry("abort", "ABORT", poll.Abort, true),
		Entry("unknown", "retry", poll.Degrade, false),
	)

	DescribeTable("ParseOverlapPolicy",
		func(in string, expected poll.OverlapPolicy, ok bool) {
			p, err := poll.ParseOverlapPolicy(in)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(expected))
		},
		Entry("default", "", poll.Coalesce, true),
		Entry("coalesce", "coalesce", poll.Coalesce, true),
		Entry("last-write-wins", "last-write-wins", poll.LastWriteWins, true),
		Entry("short form", "lww", poll.LastWriteWins, true),
		Entry("unknown", "skip", poll.Coalesce, false),
	)
})
