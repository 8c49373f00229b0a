// Package fiber implements cooperative, user-space fibers: lightweight
// units of execution that run one at a time per Scheduler and hand control
// to each other explicitly, rather than being preempted by the Go runtime.
//
// A Scheduler owns one event loop, meant to run on a single OS thread for
// its whole lifetime (Scheduler.Run pins it with runtime.LockOSThread).
// Spawn creates a fiber on a Scheduler; the fiber cooperates by calling
// Context.Yield, Context.WaitUntil, or Context.Join, each of which
// suspends it until the Scheduler resumes it again.
//
// A Policy decides which ready fiber a Scheduler resumes next.
// NewRoundRobinPolicy is a plain single-thread FIFO; NewWorkStealingPolicy
// lets several Schedulers -- typically one per OS thread, composed with a
// Runtime -- share load, with idle threads stealing ready, unpinned fibers
// from busy ones.
//
// Fibers are not preemptible: a fiber that never yields blocks its
// Scheduler's thread indefinitely. Interruption (Fiber.Interrupt) and
// forced unwinding (used internally during Scheduler.Close) are both
// cooperative: an interruption is delivered when the target fiber next
// returns from WaitUntil or Join (not Yield), and a forced unwind when it is
// next resumed.
package fiber
