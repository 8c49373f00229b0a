package fiber

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/fiberkit/fiber/fiberlog"
)

// nextID is the process-wide fiber ID generator. A single counter (rather
// than one per Scheduler) keeps IDs comparable across an entire Runtime of
// several schedulers, per spec.md §6's ordering requirement.
var nextID atomic.Uint64

func allocID() ID { return ID(nextID.Add(1)) }

// Scheduler is one per-thread event loop, spec.md §4.3: it owns a Policy,
// a sleep set, and the goroutine that repeatedly picks a ready context,
// resumes it, and parks when there is nothing to do. A Scheduler is bound
// to a single OS thread for its entire Run call via runtime.LockOSThread,
// the closest Go analogue to the source material's one-event-loop-per-OS-
// thread design -- it is what makes "the active context and active
// scheduler are thread-local" (spec.md §5) a correctness property here
// rather than just a convention, since both are plain struct fields that
// only the pinned loop goroutine and fibers it resumes ever touch.
type Scheduler struct {
	name   string
	clock  Clock
	logger fiberlog.Logger

	policy   Policy
	waitTick time.Duration

	sleeping *sleepSet

	// terminated is the deferred-destruction queue spec.md §4.3 names: a
	// context that has just finished running is linked here instead of
	// being torn down inline on its own exiting goroutine, and is drained
	// by resume (the owning loop goroutine's stack, never the fiber's own)
	// immediately after that goroutine hands control back.
	terminated *fiberList

	outstanding atomic.Int64
	closing     atomic.Bool
	closed      chan struct{}

	main   *Context
	active *Context

	stackAllocator StackAllocator
}

// SchedulerOption configures a Scheduler at construction.
type SchedulerOption func(*schedulerConfig)

type schedulerConfig struct {
	name           string
	clock          Clock
	logger         fiberlog.Logger
	policyFactory  PolicyFactory
	waitTick       time.Duration
	stackAllocator StackAllocator
}

// WithWaitTick sets the upper bound spec.md §9's Open Question resolves on:
// the longest the loop will ever park when no sleeper has a nearer
// deadline. Default 10ms, matching fiber_manager's wait_interval_ in the
// source material.
func WithWaitTick(d time.Duration) SchedulerOption {
	return func(c *schedulerConfig) { c.waitTick = d }
}

// WithClock overrides the Scheduler's notion of now, for deterministic
// sleep-ordering tests.
func WithClock(clock Clock) SchedulerOption {
	return func(c *schedulerConfig) { c.clock = clock }
}

// WithLogger overrides the Scheduler's ambient logger, nil (the default) is
// fiberlog.NoOp().
func WithLogger(l fiberlog.Logger) SchedulerOption {
	return func(c *schedulerConfig) { c.logger = l }
}

// WithPolicyFactory selects the scheduling Policy. Defaults to
// NewRoundRobinPolicy().
func WithPolicyFactory(f PolicyFactory) SchedulerOption {
	return func(c *schedulerConfig) { c.policyFactory = f }
}

// WithStackAllocator overrides the StackAllocator used by Spawn. Defaults
// to NewDefaultStackAllocator(0).
func WithStackAllocator(a StackAllocator) SchedulerOption {
	return func(c *schedulerConfig) { c.stackAllocator = a }
}

// withName labels a Scheduler for logging; used internally by Runtime.
func withName(name string) SchedulerOption {
	return func(c *schedulerConfig) { c.name = name }
}

// NewScheduler constructs a Scheduler. The returned value must have Run
// called on it (from the goroutine that will become its pinned OS thread)
// before any fiber spawned on it can make progress.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	cfg := schedulerConfig{
		clock:         DefaultClock,
		logger:        fiberlog.NoOp(),
		policyFactory: NewRoundRobinPolicy(),
		waitTick:      10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = fiberlog.NoOp()
	}
	if cfg.stackAllocator == nil {
		cfg.stackAllocator = NewDefaultStackAllocator(0)
	}

	s := &Scheduler{
		name:           cfg.name,
		clock:          cfg.clock,
		logger:         cfg.logger,
		waitTick:       cfg.waitTick,
		sleeping:       newSleepSet(),
		terminated:     newFiberList(func(c *Context) *fiberNode { return &c.schedNode }),
		stackAllocator: cfg.stackAllocator,
		closed:         make(chan struct{}),
	}
	s.policy = cfg.policyFactory(s)
	s.main = newContext(allocID(), kindMain, s, nil, true)
	s.main.setState(stateRunning)
	s.active = s.main
	return s
}

// SpawnOption configures a single fiber at spawn time.
type SpawnOption func(*spawnConfig)

type spawnConfig struct {
	pinned bool
}

// WithPinned marks a fiber as pinned (spec.md §4.4's "a policy may refuse
// to migrate a pinned fiber"): the work-stealing Policy never offers a
// pinned fiber to another thread's steal attempt.
func WithPinned() SpawnOption {
	return func(c *spawnConfig) { c.pinned = true }
}

// Spawn creates a new worker fiber running fn and makes it ready. fn
// receives its own Context, used for Yield/WaitUntil/Join/FLS access --
// there is no ambient/thread-local way to recover "the current fiber" in
// this implementation (spec.md §5's thread-locals are Scheduler fields,
// not globals), so fn must thread its Context through to anything it calls
// that needs to suspend.
//
// Spawn obtains a stack from the Scheduler's StackAllocator before doing
// anything else; failure is returned directly rather than deferred to run
// time, per spec.md §4.1's "failure to allocate is propagated as a fatal
// error at spawn."
func (s *Scheduler) Spawn(fn func(*Context), opts ...SpawnOption) (*Fiber, error) {
	var cfg spawnConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if s.closing.Load() {
		return nil, ErrSchedulerClosed
	}

	sc, err := s.stackAllocator.Allocate()
	if err != nil {
		return nil, fmt.Errorf("fiber: spawn: %w", err)
	}

	c := newContext(allocID(), kindWorker, s, fn, cfg.pinned)
	c.stack = sc
	s.outstanding.Add(1)
	s.launch(c)
	c.setState(stateReady)
	s.policy.Awakened(c)
	return &Fiber{ctx: c}, nil
}

// launch starts the goroutine backing c, blocked on its first resume. If c
// is already marked for forced unwind by the time it is first resumed --
// spawned just as the Scheduler started closing, for instance -- fn is
// never invoked at all, mirroring the source material's worker-fiber
// trampoline (`ctx(); if (!unwinding_requested()) invoke(fn);`), which
// guards the very first call into user code the same way suspend guards
// every one after it.
func (s *Scheduler) launch(c *Context) {
	go func() {
		<-c.resumeCh
		defer finishTrampoline(c)
		if c.forcedUnwind.Load() {
			panic(errForcedUnwind)
		}
		c.fn(c)
	}()
}

// finishTrampoline runs in the fiber's own goroutine, after fn returns or
// panics. It recovers every panic so that one fiber's failure can never
// crash the goroutine running the Scheduler's loop, then hands the
// now-terminated Context to its current owner's terminated queue rather
// than tearing it down here -- spec.md §4.3's "destruction is performed by
// the scheduler that is not currently executing that stack." Actual
// destruction happens in drainTerminated, called from resume once this
// goroutine has handed control back.
func finishTrampoline(c *Context) {
	if r := recover(); r != nil {
		switch r {
		case errForcedUnwind:
			c.err = errForcedUnwind
		default:
			if err, ok := r.(error); ok && err == ErrInterrupted {
				c.err = ErrInterrupted
			} else {
				c.panicValue = r
			}
		}
	}
	c.owner().terminated.PushBack(c)
	c.parkedCh <- struct{}{}
}

// drainTerminated destroys every context currently on sched's terminated
// queue: releases its stack, runs Context.finish (joiner wakeup, FLS
// cleanup), and escalates an unrecovered panic to a process-ending
// *FatalError. Called only from the Scheduler's own loop goroutine, right
// after a resume returns -- the "scheduler that is not currently executing
// that stack" spec.md §4.3 requires, since the fiber's own trampoline
// goroutine has already handed control back by this point.
func (sched *Scheduler) drainTerminated() {
	for {
		c := sched.terminated.PopFront()
		if c == nil {
			return
		}

		c.home.outstanding.Add(-1)
		c.home.stackAllocator.Deallocate(c.stack)
		var fatal *FatalError
		if c.panicValue != nil {
			fatal = &FatalError{FiberID: c.id, Cause: c.panicValue}
			c.err = fatal
		}
		c.finish()

		if fatal != nil {
			sched.logger.Log(fiberlog.LevelError, "fiber exited with an unrecovered panic", "fiber", c.id, "cause", c.panicValue)
			go func() { panic(fatal) }()
		} else {
			sched.logger.Log(fiberlog.LevelDebug, "fiber terminated", "fiber", c.id, "err", c.err)
		}
	}
}

// Run drains ready work until the scheduler has nothing left to do: no
// ready fiber, no sleeper, and no outstanding fiber anywhere in its own
// spawn lineage (spec.md §4.3's main loop, steps 1-5). It pins the calling
// goroutine to its OS thread for the duration, released again on return.
func (s *Scheduler) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.closed)

	for {
		now := s.clock.Now()
		closing := s.closing.Load()
		var expired []*Context
		if closing {
			// Teardown: every sleeper is force-woken immediately rather
			// than waiting for its real deadline, matching the drain
			// loop in fiber_manager's destructor in the source material.
			expired = s.sleeping.DrainExpired(neverTimePoint)
		} else {
			expired = s.sleeping.DrainExpired(now)
		}
		for _, c := range expired {
			c.setState(stateReady)
			s.policy.Awakened(c)
		}

		if c, ok := s.policy.PickNext(); ok {
			if closing {
				c.requestUnwinding()
			}
			s.resume(c)
			continue
		}

		if s.outstanding.Load() == 0 {
			return
		}

		// HasReady is policy.pick_next's cheap-hint sibling (spec.md
		// §4.4): a context can become ready between the failed PickNext
		// above and here (another thread's RequestInterruption, a steal
		// offered concurrently), and checking it lets the loop skip
		// parking instead of calling SuspendUntil only to be woken again
		// immediately.
		if s.policy.HasReady() {
			continue
		}

		wait := s.waitTick
		if !closing {
			if deadline, ok := s.sleeping.NearestDeadline(); ok {
				if d := deadline.Sub(now); d < wait {
					wait = d
				}
			}
		} else {
			wait = time.Millisecond
		}
		if wait < 0 {
			wait = 0
		}
		s.policy.SuspendUntil(wait)
	}
}

// Close requests an orderly shutdown: every live fiber is forced to unwind
// (spec.md §9's teardown discipline -- "drain: interrupt everyone, run
// until idle, repeat") as Run's own loop goroutine picks it up, and Close
// blocks until Run actually returns. Close must not be called from a fiber
// running on this Scheduler itself, since Run's loop goroutine is the one
// that performs the drain.
func (s *Scheduler) Close() error {
	s.logger.Log(fiberlog.LevelInfo, "scheduler closing, forcing unwind of outstanding fibers", "scheduler", s.String(), "outstanding", s.outstanding.Load())
	s.closing.Store(true)
	s.policy.Notify()
	<-s.closed
	if closer, ok := s.policy.(interface{ close() }); ok {
		closer.close()
	}
	return nil
}

// String identifies the scheduler for logging.
func (s *Scheduler) String() string {
	if s.name == "" {
		return fmt.Sprintf("scheduler-%p", s)
	}
	return s.name
}
