package fiber

import (
	"math/rand/v2"
	"sync"
	"time"
)

// wsRegistry is the process-wide set of live work-stealing schedulers,
// guarded by a single mutex, matching random_chase_lev.cpp's static
// schedulers_ vector plus schedulers_mutex_: any scheduler running the
// work-stealing Policy must be discoverable by every other one, so a thief
// with an empty local queue has someone to steal from.
var (
	wsRegistryMu sync.Mutex
	wsRegistry   []*workStealingPolicy
)

// workStealingPolicy is the multi-thread Policy named in spec.md §4.4: a
// pinned-fiber FIFO (lqueue) plus a Chase-Lev deque (rqueue) that other
// schedulers' policies may steal from when their own queues run dry.
type workStealingPolicy struct {
	sched *Scheduler

	mu     sync.Mutex
	cond   *sync.Cond
	woken  bool
	lqueue *fiberList

	rqueue *chaseLevDeque
}

// NewWorkStealingPolicy returns the factory for the work-stealing policy.
// Every Scheduler built with it registers itself process-wide so idle peers
// can steal from it.
func NewWorkStealingPolicy() PolicyFactory {
	return func(sched *Scheduler) Policy {
		p := &workStealingPolicy{
			sched:  sched,
			lqueue: newFiberList(func(c *Context) *fiberNode { return &c.schedNode }),
			rqueue: newChaseLevDeque(32),
		}
		p.cond = sync.NewCond(&p.mu)
		wsRegistryMu.Lock()
		wsRegistry = append(wsRegistry, p)
		wsRegistryMu.Unlock()
		return p
	}
}

// close unregisters p, called once its Scheduler shuts down so it stops
// being offered as a steal target.
func (p *workStealingPolicy) close() {
	wsRegistryMu.Lock()
	defer wsRegistryMu.Unlock()
	for i, q := range wsRegistry {
		if q == p {
			wsRegistry = append(wsRegistry[:i], wsRegistry[i+1:]...)
			return
		}
	}
}

// Awakened enqueues c. A pinned context stays on lqueue and keeps its
// current owner throughout. An unpinned context is detached before it is
// pushed onto rqueue -- clearing its owner back-pointer is the act that
// makes it eligible for a thief (spec.md §4.4); whichever policy next pops
// it, locally or by stealing, re-attaches it in PickNext.
func (p *workStealingPolicy) Awakened(c *Context) {
	if c.pinned {
		p.mu.Lock()
		p.lqueue.PushBack(c)
		p.mu.Unlock()
	} else {
		c.detach()
		p.mu.Lock()
		p.rqueue.PushBottom(c)
		p.mu.Unlock()
	}
	p.Notify()
}

func (p *workStealingPolicy) PickNext() (*Context, bool) {
	p.mu.Lock()
	c, ok := p.rqueue.PopBottom()
	p.mu.Unlock()
	if ok {
		c.rebind(p.sched)
		return c, true
	}

	p.mu.Lock()
	c = p.lqueue.PopFront()
	p.mu.Unlock()
	if c != nil {
		return c, true
	}

	return p.stealFromPeer()
}

// stealFromPeer mirrors random_chase_lev::pick_next's fallback exactly: one
// random registered peer (other than self) is sampled, and steal is
// attempted against that peer alone -- a failure is reported to the caller
// immediately rather than trying the rest of the registry, matching
// random_chase_lev.cpp's single pick_next call per scheduling decision.
func (p *workStealingPolicy) stealFromPeer() (*Context, bool) {
	wsRegistryMu.Lock()
	peers := make([]*workStealingPolicy, 0, len(wsRegistry))
	for _, q := range wsRegistry {
		if q != p {
			peers = append(peers, q)
		}
	}
	wsRegistryMu.Unlock()

	if len(peers) == 0 {
		return nil, false
	}

	peer := peers[rand.IntN(len(peers))]
	c, ok := peer.rqueue.Steal()
	if !ok {
		return nil, false
	}
	c.rebind(p.sched)
	return c, true
}

func (p *workStealingPolicy) HasReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rqueue.Len() > 0 || !p.lqueue.Empty()
}

func (p *workStealingPolicy) SuspendUntil(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	if p.woken {
		p.woken = false
		p.mu.Unlock()
		return
	}
	timer := time.AfterFunc(d, p.Notify)
	p.cond.Wait()
	timer.Stop()
	p.woken = false
	p.mu.Unlock()
}

func (p *workStealingPolicy) Notify() {
	p.mu.Lock()
	p.woken = true
	p.cond.Broadcast()
	p.mu.Unlock()
}
