package fiber

// fiberNode is an intrusive doubly-linked-list membership token embedded in
// Context. spec.md §9 calls this out explicitly: "the source embeds
// per-queue linkage directly inside the control block so one object can
// belong to several queues without heap allocation" -- a faithful
// reimplementation replicates that with raw next/prev fields per queue
// rather than reaching for a heap-allocated container/list.Element per
// membership.
//
// Context carries one of these, schedNode, shared by the mutually-exclusive
// {ready, wait, terminated} memberships (remote-ready is the work-stealing
// deque, which holds *Context by value in a slice rather than via an
// intrusive node; sleep is a container/heap, tracked via heapIndex instead
// of a node -- see queues.go). The state machine already guarantees a
// context is never simultaneously ready, waiting, and terminated, so
// reusing one field for all of them is safe and matches the invariant in
// spec.md §3 ("linked into at most one of {ready, remote-ready, sleep,
// wait} at a time") extended the same way to the terminated queue. join()
// reuses the same field again for a context's membership on the waiters
// list of whichever other context it is blocked joining, which is just
// another flavor of "wait".
type fiberNode struct {
	next, prev *Context
}

// nodeAccessor selects one of a Context's intrusive node fields so a single
// fiberList implementation can serve all three queues.
type nodeAccessor func(*Context) *fiberNode

// fiberList is an intrusive FIFO queue over one of Context's node fields.
// It never allocates: pushing and popping only rewires next/prev pointers
// already embedded in the Context values being linked.
type fiberList struct {
	head, tail *Context
	size       int
	node       nodeAccessor
}

func newFiberList(node nodeAccessor) *fiberList {
	return &fiberList{node: node}
}

// PushBack links c at the tail of the list. c must not already be linked
// into this list.
func (l *fiberList) PushBack(c *Context) {
	n := l.node(c)
	n.next, n.prev = nil, l.tail
	if l.tail != nil {
		l.node(l.tail).next = c
	} else {
		l.head = c
	}
	l.tail = c
	l.size++
}

// PopFront unlinks and returns the head of the list, or nil if empty.
func (l *fiberList) PopFront() *Context {
	c := l.head
	if c == nil {
		return nil
	}
	l.Remove(c)
	return c
}

// Remove unlinks c from the list. c must currently be linked into it.
func (l *fiberList) Remove(c *Context) {
	n := l.node(c)
	if n.prev != nil {
		l.node(n.prev).next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		l.node(n.next).prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.next, n.prev = nil, nil
	l.size--
}

func (l *fiberList) Len() int { return l.size }

func (l *fiberList) Empty() bool { return l.size == 0 }

// drain unlinks every context currently in the list and returns them, in
// FIFO order, leaving the list empty. Used by Context.finish (spec.md §4.2),
// which must detach the entire wait list under lock before waking anyone.
func (l *fiberList) drain() []*Context {
	out := make([]*Context, 0, l.size)
	for c := l.PopFront(); c != nil; c = l.PopFront() {
		out = append(out, c)
	}
	return out
}
