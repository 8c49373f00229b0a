package fiber

import (
	"container/heap"
	"time"
)

// sleepHeap is a container/heap.Interface implementation ordering contexts
// by wake time, mechanically identical to the teacher's eventloop.timerHeap
// (loop.go) -- both are a min-heap of "when something should next happen",
// just retargeted from (time.Time, Task) pairs to *Context values ordered
// by Context.wakeTime.
type sleepHeap struct {
	items []*Context
}

func (h *sleepHeap) Len() int { return len(h.items) }

func (h *sleepHeap) Less(i, j int) bool {
	return h.items[i].wakeTime.Before(h.items[j].wakeTime)
}

func (h *sleepHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].heapIndex = i
	h.items[j].heapIndex = j
}

func (h *sleepHeap) Push(x any) {
	c := x.(*Context)
	c.heapIndex = len(h.items)
	h.items = append(h.items, c)
}

func (h *sleepHeap) Pop() any {
	old := h.items
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	c.heapIndex = -1
	return c
}

// sleepSet is the ordered set, keyed by wake time, described in spec.md §3
// ("Scheduling linkage ... sleep (ordered by wake-time)"). It supports
// insertion, removal-by-identity (needed when set_ready fires before the
// deadline), and draining everything whose deadline has passed.
type sleepSet struct {
	h sleepHeap
}

func newSleepSet() *sleepSet {
	return &sleepSet{}
}

// Insert adds c to the set, keyed by its current wakeTime. c must not
// already be a member.
func (s *sleepSet) Insert(c *Context) {
	heap.Push(&s.h, c)
}

// Remove drops c from the set if present (idempotent). Used by set_ready to
// cancel a pending timeout when an external wake arrives first.
func (s *sleepSet) Remove(c *Context) {
	if c.heapIndex < 0 || c.heapIndex >= len(s.h.items) || s.h.items[c.heapIndex] != c {
		return
	}
	heap.Remove(&s.h, c.heapIndex)
}

// Empty reports whether the set has no members.
func (s *sleepSet) Empty() bool { return s.h.Len() == 0 }

// NearestDeadline returns the soonest wake time in the set, and whether the
// set is non-empty.
func (s *sleepSet) NearestDeadline() (time.Time, bool) {
	if s.h.Len() == 0 {
		return time.Time{}, false
	}
	return s.h.items[0].wakeTime, true
}

// DrainExpired removes and returns every context whose wakeTime is <= now,
// in deadline order. Step 1 of the scheduler main loop (spec.md §4.3).
func (s *sleepSet) DrainExpired(now time.Time) []*Context {
	var expired []*Context
	for s.h.Len() > 0 && !s.h.items[0].wakeTime.After(now) {
		c := heap.Pop(&s.h).(*Context)
		c.wokeByTimeout = true
		expired = append(expired, c)
	}
	return expired
}
