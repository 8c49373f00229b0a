package fiber

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiberkit/fiber/fiberlog"
)

// ID identifies a fiber for the lifetime of the process. IDs are assigned
// monotonically at spawn time and never reused, so two IDs can be compared
// for ordering as well as equality (spec.md §6's "fiber_id ... provides a
// strict weak ordering over fibers").
type ID uint64

func (id ID) String() string {
	return "fiber-" + itoa(uint64(id))
}

// Less reports whether id sorts before other, for use in ordered containers
// keyed by fiber identity (e.g. deterministic tie-breaking in tests).
func (id ID) Less(other ID) bool { return id < other }

// Equal reports whether id and other name the same fiber.
func (id ID) Equal(other ID) bool { return id == other }

// itoa formats v in decimal for ID.String without importing strconv. Kept
// trivial on purpose.
func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// contextKind distinguishes the fiber roles named in spec.md §3: the
// thread's original stack (main) and ordinary worker fibers. spec.md also
// names a dispatcher kind -- an internal "nowhere to go" target the
// scheduling algorithm resumes into when it has no ready work of its own.
// Scheduler.Run already plays that role directly as a plain goroutine
// blocked in Policy.SuspendUntil, so there is no separate Context to give a
// kind to; see DESIGN.md.
type contextKind uint8

const (
	kindWorker contextKind = iota
	kindMain
)

// Context is the fiber control block: spec.md §3's data model, minus the
// raw register/stack-pointer fields a machine-stack implementation would
// need. In their place, resumeCh/parkedCh hand off control between a
// Scheduler's event loop goroutine and the fiber's own goroutine -- Go gives
// no portable way to swap a goroutine's machine stack directly, so control
// transfer is expressed as two goroutines taking turns via a pair of
// one-slot handoff channels instead of a swapcontext(3) call. Exactly one side is
// ever runnable at a time, which is what spec.md's "exactly one running
// context per thread" invariant actually requires -- the channel handoff
// enforces it mechanically.
type Context struct {
	id   ID
	kind contextKind

	state *atomicState

	mu sync.Mutex

	sched atomic.Pointer[Scheduler]

	// schedNode provides the intrusive linkage for whichever of {ready,
	// wait} queue a context is currently a member of -- spec.md §3's
	// "linked into at most one of {ready, remote-ready, sleep, wait} at a
	// time" invariant means one field can serve all of them, since the
	// state machine already guarantees mutual exclusion.
	schedNode fiberNode

	// home is the Scheduler a context was spawned on. Ownership (sched)
	// can move to another Scheduler via work stealing, but home never
	// changes once set, so accounting that must stay put regardless of
	// migration (outstanding-fiber bookkeeping) is keyed off it instead.
	home *Scheduler

	heapIndex     int
	wakeTime      time.Time
	wokeByTimeout bool

	// waiters holds every context that has joined this one, woken in order
	// by finish() once this context terminates.
	waiters *fiberList

	fls flsMap

	resumeCh chan struct{}
	parkedCh chan struct{}

	interruptRequested atomic.Bool
	interruptBlocked   atomic.Bool
	forcedUnwind       atomic.Bool

	fn     func(*Context)
	pinned bool

	// stack is the StackContext obtained from the owning Scheduler's
	// StackAllocator at spawn time, released back to it once the fiber's
	// goroutine has exited (spec.md §4.1, §3's "destroying the context frees
	// the stack"). Unset (zero value) on the main context, which never goes
	// through Spawn.
	stack StackContext

	// panicValue carries a non-sentinel panic recovered at the trampoline
	// boundary, for the Scheduler to wrap in a *FatalError and re-panic on a
	// fresh goroutine (spec.md §7's "terminate the process" contract).
	panicValue any

	clock  Clock
	logger fiberlog.Logger

	done chan struct{}
	err  error
}

// newContext allocates a Context in the ready state, wired to sched but not
// yet linked into any of its queues. The caller (Scheduler.Spawn) hands it
// to the policy via Awakened before the first resume.
func newContext(id ID, kind contextKind, sched *Scheduler, fn func(*Context), pinned bool) *Context {
	c := &Context{
		id:       id,
		kind:     kind,
		state:    newAtomicState(stateReady),
		waiters:  newFiberList(func(c *Context) *fiberNode { return &c.schedNode }),
		resumeCh: make(chan struct{}, 1),
		parkedCh: make(chan struct{}, 1),
		fn:       fn,
		pinned:   pinned,
		clock:    sched.clock,
		logger:   sched.logger,
		done:     make(chan struct{}),
		wakeTime: neverTimePoint,
		home:     sched,
	}
	c.heapIndex = -1
	c.sched.Store(sched)
	return c
}

// ID returns the fiber's identity.
func (c *Context) ID() ID { return c.id }

func (c *Context) loadState() runState { return c.state.Load() }

func (c *Context) setState(s runState) { c.state.Store(s) }

// owner returns the Scheduler currently responsible for resuming c. A
// work-stealing Policy updates this via rebind whenever its PickNext hands
// c out, whether from its own rqueue or stolen from a peer's.
func (c *Context) owner() *Scheduler { return c.sched.Load() }

func (c *Context) rebind(sched *Scheduler) { c.sched.Store(sched) }

// detach clears c's owner. A work-stealing Policy calls this from Awakened
// just before pushing an unpinned context onto its rqueue: an owner of nil
// is what makes the context eligible for a thief (spec.md §4.4), and
// whichever Policy next pops it -- locally or via steal -- re-attaches it
// with rebind before returning it from PickNext. Safe because owner() is
// only ever read while c itself is the running context, which cannot
// overlap with it sitting detached in a ready deque.
func (c *Context) detach() { c.sched.Store(nil) }

// resume hands control to c from the calling Scheduler's event-loop
// goroutine, and blocks until c suspends again. Only the owning Scheduler's
// loop goroutine calls this. If c terminated during this turn,
// drainTerminated destroys it here, on the loop goroutine, once c's own
// trampoline goroutine has already handed control back -- never on c's own
// stack (spec.md §4.3).
func (sched *Scheduler) resume(c *Context) {
	c.setState(stateRunning)
	prev := sched.active
	sched.active = c
	c.resumeCh <- struct{}{}
	<-c.parkedCh
	sched.active = prev
	sched.drainTerminated()
}

// suspend is called from inside a running fiber's own goroutine to hand
// control back to the Scheduler and block until resumed again. Every
// blocking operation on Context (yield, waitUntil, join) bottoms out here.
func (c *Context) suspend() {
	c.parkedCh <- struct{}{}
	<-c.resumeCh
	if c.forcedUnwind.Load() {
		panic(errForcedUnwind)
	}
}

// checkInterruption panics with ErrInterrupted if interruption has been
// requested and is not currently blocked. Called at the interruption points
// spec.md §7 names: after wait_until/join wake (Yield is not one) -- never
// inside suspend() itself, since a forced
// unwind must win over a merely-requested interruption.
func (c *Context) checkInterruption() {
	if c.interruptRequested.Load() && !c.interruptBlocked.Load() {
		c.interruptRequested.Store(false)
		panic(ErrInterrupted)
	}
}

// RequestInterruption asks the fiber owning c to observe ErrInterrupted at
// its next interruption point. If the fiber is currently waiting or
// sleeping, it is made ready immediately so it notices promptly, matching
// worker_fiber::request_interruption in the source material.
func (c *Context) RequestInterruption() {
	c.interruptRequested.Store(true)
	c.mu.Lock()
	waiting := c.loadState() == stateWaiting
	c.mu.Unlock()
	if waiting {
		c.setReady()
	}
}

// BlockInterruption toggles whether c currently suppresses delivery of a
// pending interruption request, mirroring disable_interruption /
// enable_interruption guards in the source material.
func (c *Context) BlockInterruption(blocked bool) {
	c.interruptBlocked.Store(blocked)
}

// requestUnwinding marks c for a forced, non-catchable unwind: used only
// during Scheduler teardown, never by ordinary interruption.
// original_source/include/boost/fiber/context.hpp:359 declares the same
// operation (flag_forced_unwind plus a wake) on context itself, though its
// body was not part of the retrieved source. Called by Scheduler.Run's
// closing path on every context it is about to resume; the setReady call
// is a no-op there since PickNext only ever returns a context already in
// stateReady, but folding the wake into this one call keeps it correct to
// use on a still-sleeping context too, not just a ready one.
func (c *Context) requestUnwinding() {
	c.forcedUnwind.Store(true)
	c.setReady()
}

// Yield cooperatively gives up the remainder of this fiber's turn, hands c
// back to the policy via Awakened (the back of the FIFO under the
// round-robin policy), and returns once the scheduler resumes it
// again. There is no interruption point here on purpose: spec.md §7 lists
// wait_until and join as interruption points, not yield.
func (c *Context) Yield() {
	sched := c.owner()
	c.setState(stateReady)
	sched.policy.Awakened(c)
	c.suspend()
}

// WaitUntil suspends c until tp is reached or it is woken early via
// SetReady, whichever happens first. Returns true if woken by timeout.
// Interruption point: on return, a pending interruption is delivered as a
// panic.
func (c *Context) WaitUntil(tp time.Time) bool {
	sched := c.owner()
	c.wakeTime = tp
	c.wokeByTimeout = false
	c.setState(stateWaiting)
	sched.sleeping.Insert(c)
	c.suspend()
	c.checkInterruption()
	return c.wokeByTimeout
}

// SetReady transitions c from waiting to ready, removing it from the sleep
// set if it was there and handing it to the owning scheduler's policy. It
// is a no-op if c is not currently waiting (idempotent, like the source
// material's set_ready).
func (c *Context) SetReady() { c.setReady() }

func (c *Context) setReady() {
	if !c.state.CompareAndSwap(stateWaiting, stateReady) {
		return
	}
	sched := c.owner()
	sched.sleeping.Remove(c)
	sched.policy.Awakened(c)
}

// Join blocks the calling fiber (cur) until c has terminated. If c has
// already terminated, Join returns immediately. Interruption point on
// return.
func (c *Context) Join(cur *Context) {
	c.mu.Lock()
	if c.loadState() == stateTerminated {
		c.mu.Unlock()
		cur.checkInterruption()
		return
	}
	c.waiters.PushBack(cur)
	c.mu.Unlock()

	cur.setState(stateWaiting)
	cur.suspend()
	cur.checkInterruption()
}

// finish runs once, when a fiber's entry function (or trampoline) has
// determined c is terminating: it flips state to terminated, wakes every
// joiner, and runs FLS cleanups. Order matches worker_fiber::release in the
// source material: detach and wake joiners first, clean up FLS after, so a
// joiner's own FLS access during its own unwind can't race a cleanup of the
// fiber it joined.
func (c *Context) finish() {
	c.mu.Lock()
	c.setState(stateTerminated)
	joiners := c.waiters.drain()
	c.mu.Unlock()

	for _, j := range joiners {
		j.setReady()
	}

	for _, entry := range c.fls.drain() {
		if entry.cleanup != nil {
			entry.cleanup(entry.data)
		}
	}

	close(c.done)
}

// GetFSSData reads the fiber-specific-storage slot named by key, or nil if
// unset.
func (c *Context) GetFSSData(key *FLSKey) any { return c.fls.get(key) }

// SetFSSData writes the fiber-specific-storage slot named by key. If
// cleanupExisting is true and a prior value's cleanup is non-nil, it runs
// synchronously before this call returns (matching spec.md §4.2's "replacing
// a slot with cleanup_existing=true also runs the departing cleanup
// inline").
func (c *Context) SetFSSData(key *FLSKey, data any, cleanup func(any), cleanupExisting bool) {
	c.fls.set(key, data, cleanup, cleanupExisting)
}

// Done returns a channel closed once c has terminated, for callers (like
// Fiber.Join) that want to block without being a fiber themselves.
func (c *Context) Done() <-chan struct{} { return c.done }

// Err returns the error c terminated with: nil for a clean return,
// ErrInterrupted for an unrecovered interruption, the internal forced-unwind
// error when Scheduler.Close unwound it, or a *FatalError for any other
// panic.
func (c *Context) Err() error { return c.err }

// Now returns the current time as seen by c's owning Scheduler's Clock --
// the same notion of "now" WaitUntil and the sleep set use, which may be a
// fake clock under test rather than wall-clock time.
func (c *Context) Now() time.Time { return c.clock.Now() }

// Logger returns the ambient logger configured on c's owning Scheduler, so
// a fiber entry function can log without needing a reference to the
// Scheduler itself (spec.md §5 gives fn only its own Context).
func (c *Context) Logger() fiberlog.Logger { return c.logger }
