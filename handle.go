package fiber

// Fiber is the public handle returned by Scheduler.Spawn: the external
// interface spec.md §6 describes ("fiber handle: spawn, join, detach,
// interrupt, id"). It wraps a *Context without exposing any of the
// scheduling internals.
type Fiber struct {
	ctx *Context
}

// ID returns the identity of the fiber this handle refers to.
func (f *Fiber) ID() ID { return f.ctx.id }

// Join blocks the calling fiber's own Context until f terminates. Calling
// Join from outside any fiber (e.g. the Scheduler's Run goroutine itself,
// or an ordinary goroutine) is a programming error -- there is no parked
// state to suspend into -- callers in that position should select on
// f.Done() instead.
func (f *Fiber) Join(caller *Context) {
	f.ctx.Join(caller)
}

// Done returns a channel closed once f has terminated, for use by callers
// that are not themselves a fiber.
func (f *Fiber) Done() <-chan struct{} { return f.ctx.Done() }

// Err returns the error f terminated with, valid only after Done is
// closed.
func (f *Fiber) Err() error { return f.ctx.Err() }

// Interrupt requests cooperative interruption of f, delivered as
// ErrInterrupted at its next interruption point.
func (f *Fiber) Interrupt() { f.ctx.RequestInterruption() }

// Detach releases this handle's interest in f without waiting for it to
// terminate. Since Context lifetime here is tied to Go's garbage collector
// rather than the source material's manual intrusive refcounting, Detach
// is a no-op retained only to keep the handle's surface matching spec.md
// §6's external interface -- nothing needs to be freed.
func (f *Fiber) Detach() {}
