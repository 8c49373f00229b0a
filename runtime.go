package fiber

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Runtime is a multi-scheduler supervisor: the source material's
// fiber_manager is strictly per-thread, and launching a pool of them (one
// per OS thread, sharing the work-stealing registry) is left to whatever
// code embeds Boost.Fiber. SPEC_FULL.md §4 calls this out explicitly as a
// supplemented feature -- Runtime is that launcher, built the way the
// teacher module composes goroutines: golang.org/x/sync/errgroup to run
// every Scheduler's loop and propagate the first failure, and
// golang.org/x/sync/semaphore to optionally bound how many fibers may be
// outstanding across the whole pool at once.
type Runtime struct {
	scheds []*Scheduler
	next   atomic.Uint64

	sem *semaphore.Weighted

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// RuntimeOption configures a Runtime at construction.
type RuntimeOption func(*runtimeConfig)

type runtimeConfig struct {
	maxFibers     int64
	schedulerOpts []SchedulerOption
	policyFactory PolicyFactory
}

// WithMaxFibers bounds the number of fibers that may be outstanding across
// the whole Runtime at once; Spawn blocks once the bound is reached.
// Unbounded (the default) when n <= 0.
func WithMaxFibers(n int64) RuntimeOption {
	return func(c *runtimeConfig) { c.maxFibers = n }
}

// WithRuntimeSchedulerOptions applies the given SchedulerOptions to every
// Scheduler the Runtime creates, e.g. WithLogger or WithWaitTick.
func WithRuntimeSchedulerOptions(opts ...SchedulerOption) RuntimeOption {
	return func(c *runtimeConfig) { c.schedulerOpts = append(c.schedulerOpts, opts...) }
}

// WithRuntimePolicy overrides the Policy every Scheduler in the Runtime
// uses. Defaults to NewWorkStealingPolicy(), since a Runtime's entire
// reason to exist is running several schedulers that can share work.
func WithRuntimePolicy(f PolicyFactory) RuntimeOption {
	return func(c *runtimeConfig) { c.policyFactory = f }
}

// NewRuntime builds a Runtime of n Schedulers, each bound to its own OS
// thread once Start is called, sharing one work-stealing registry by
// default.
func NewRuntime(n int, opts ...RuntimeOption) *Runtime {
	if n < 1 {
		n = 1
	}
	cfg := runtimeConfig{policyFactory: NewWorkStealingPolicy()}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	r := &Runtime{
		group:  group,
		ctx:    gctx,
		cancel: cancel,
	}
	if cfg.maxFibers > 0 {
		r.sem = semaphore.NewWeighted(cfg.maxFibers)
	}

	for i := 0; i < n; i++ {
		schedOpts := append([]SchedulerOption{
			withName(fmt.Sprintf("runtime-scheduler-%d", i)),
			WithPolicyFactory(cfg.policyFactory),
		}, cfg.schedulerOpts...)
		r.scheds = append(r.scheds, NewScheduler(schedOpts...))
	}
	return r
}

// Start launches every Scheduler's Run loop on its own goroutine. It
// returns immediately; use Wait to block for completion.
//
// Each Scheduler first gets a pinned fiber that sleeps until Close unwinds
// it, so Run does not return merely because that Scheduler is idle.
func (r *Runtime) Start() {
	for _, s := range r.scheds {
		s := s
		_, err := s.Spawn(func(c *Context) { c.WaitUntil(neverTimePoint) }, WithPinned())
		r.group.Go(func() error {
			s.Run()
			return err
		})
	}
}

// Wait blocks until every Scheduler has stopped (normally only after
// Close), returning the first error encountered, if any: Run itself reports
// none, so that is an error from spawning a Scheduler's keep-alive fiber.
func (r *Runtime) Wait() error {
	return r.group.Wait()
}

// Spawn schedules fn on one of the Runtime's schedulers, chosen by simple
// round robin -- the work-stealing Policy is what actually balances load
// afterwards, so placement here only needs to be cheap, not clever. If the
// Runtime was built with WithMaxFibers, Spawn blocks until capacity is
// available or ctx is done.
func (r *Runtime) Spawn(ctx context.Context, fn func(*Context), opts ...SpawnOption) (*Fiber, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	idx := int(r.next.Add(1)-1) % len(r.scheds)
	sched := r.scheds[idx]

	wrapped := fn
	if r.sem != nil {
		wrapped = func(c *Context) {
			defer r.sem.Release(1)
			fn(c)
		}
	}

	f, err := sched.Spawn(wrapped, opts...)
	if err != nil {
		if r.sem != nil {
			r.sem.Release(1)
		}
		return nil, err
	}
	return f, nil
}

// Close requests every Scheduler shut down (spec.md §9's teardown
// discipline, applied across the whole pool) and waits for Start's
// goroutines to exit.
func (r *Runtime) Close() error {
	r.cancel()
	for _, s := range r.scheds {
		s := s
		go func() { _ = s.Close() }()
	}
	return r.group.Wait()
}

// Schedulers exposes the underlying per-thread Schedulers, for callers that
// need to pin a fiber (e.g. WithPinned) to a specific one.
func (r *Runtime) Schedulers() []*Scheduler {
	out := make([]*Scheduler, len(r.scheds))
	copy(out, r.scheds)
	return out
}
