package fiber

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fiber runtime's error kinds (see spec.md §7).
//
// ErrInterrupted and the unexported forced-unwind sentinel are delivered by
// panicking at an interruption point, so that they unwind the fiber's own
// goroutine stack the way a C++ exception would unwind a fiber's machine
// stack -- Go's panic/recover mechanism is the natural analogue of the
// stack-unwinding DESIGN NOTES in spec.md §9. Everything else is returned
// as an ordinary Go error.
var (
	// ErrInterrupted is delivered at the next interruption point of a fiber
	// whose interruption was requested (and not blocked). A fiber's own code
	// may recover it (mirroring boost::fibers::interrupted being catchable by
	// user code); if it isn't recovered, the trampoline treats it as a normal
	// termination.
	ErrInterrupted = errors.New("fiber: interrupted")

	// ErrStackAllocFailure is returned by Spawn when the configured
	// StackAllocator cannot provide a stack. It is fatal to that spawn only.
	ErrStackAllocFailure = errors.New("fiber: stack allocation failed")

	// ErrLockError is returned when a synchronization primitive built on
	// fibers is used in a forbidden state (e.g. owner mismatch).
	ErrLockError = errors.New("fiber: lock error")

	// ErrSchedulerClosed is returned by Spawn (on a Scheduler, or on a
	// Runtime through the Scheduler it picks) once that Scheduler's Close
	// has begun.
	ErrSchedulerClosed = errors.New("fiber: scheduler is closed")

	// errForcedUnwind is unexported: spec.md §7 requires it be "caught only
	// by the trampoline" and "must not be suppressed by user code" -- making
	// it unexported means user code cannot construct a matching value to
	// intentionally swallow it via errors.Is, and a bare `recover()` that
	// doesn't re-panic unknown values is already a bug by Go convention.
	errForcedUnwind = errors.New("fiber: forced unwind")
)

// FatalError wraps a value that escaped a fiber's entry function without
// being one of the recognized termination sentinels (spec.md §7, "uncaught
// user failure"). The trampoline never swallows it: it is re-panicked on a
// freshly spawned goroutine so the process terminates with a normal Go
// panic trace, matching the spec's "terminate the process" contract.
type FatalError struct {
	// FiberID identifies which fiber's entry function failed to terminate
	// cleanly.
	FiberID ID
	// Cause is the recovered panic value.
	Cause any
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fiber %s: unrecoverable failure: %v", e.FiberID, e.Cause)
}

// Unwrap supports errors.Is/errors.As against the underlying cause, when it
// is itself an error.
func (e *FatalError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}
