package fiber

import "time"

// Policy is the pluggable scheduling strategy spec.md §4.4 requires: the
// Scheduler event loop never decides queue order itself, it only calls into
// whichever Policy it was constructed with. RoundRobin and WorkStealing
// (policy_roundrobin.go, policy_workstealing.go) are the two concrete
// implementations named by spec.md §4.4; callers may supply their own.
type Policy interface {
	// Awakened is called whenever a context transitions into the ready
	// state, from any goroutine -- the owning fiber's own suspend point,
	// another fiber's SetReady, or a timer expiring. Implementations must
	// be safe to call concurrently with PickNext and with themselves.
	Awakened(c *Context)

	// PickNext selects and removes the next context to run, or reports
	// false if none is currently available. Called only from the owning
	// Scheduler's own loop goroutine.
	PickNext() (*Context, bool)

	// HasReady reports whether PickNext would currently succeed, used by
	// the Scheduler to decide whether it's safe to skip parking.
	HasReady() bool

	// SuspendUntil parks the calling (Scheduler loop) goroutine until
	// Notify is called or d elapses, whichever comes first.
	SuspendUntil(d time.Duration)

	// Notify wakes a goroutine blocked in SuspendUntil, if any.
	Notify()
}

// PolicyFactory builds a Policy bound to a specific Scheduler. Schedulers
// call their factory once, at construction.
type PolicyFactory func(*Scheduler) Policy
