package fiber

import (
	"sync"
	"time"
)

// roundRobinPolicy is the default single-thread Policy named in spec.md
// §4.4: one FIFO ready queue, no stealing, no cross-thread coordination
// beyond the bare minimum needed because Awakened/SetReady can still be
// called from a goroutine other than the Scheduler's own loop (e.g. a
// RequestInterruption call from unrelated code).
type roundRobinPolicy struct {
	mu    sync.Mutex
	ready *fiberList
	wake  chan struct{}
}

// NewRoundRobinPolicy returns the factory for the single-thread FIFO
// policy. Use this for a Scheduler that never shares fibers with another
// thread.
func NewRoundRobinPolicy() PolicyFactory {
	return func(*Scheduler) Policy {
		return &roundRobinPolicy{
			ready: newFiberList(func(c *Context) *fiberNode { return &c.schedNode }),
			wake:  make(chan struct{}, 1),
		}
	}
}

func (p *roundRobinPolicy) Awakened(c *Context) {
	p.mu.Lock()
	p.ready.PushBack(c)
	p.mu.Unlock()
	p.Notify()
}

func (p *roundRobinPolicy) PickNext() (*Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.ready.PopFront()
	return c, c != nil
}

func (p *roundRobinPolicy) HasReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.ready.Empty()
}

func (p *roundRobinPolicy) SuspendUntil(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-p.wake:
	case <-time.After(d):
	}
}

func (p *roundRobinPolicy) Notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
