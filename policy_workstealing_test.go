package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestWorkStealingPolicy(t *testing.T, sched *Scheduler) *workStealingPolicy {
	t.Helper()
	p := NewWorkStealingPolicy()(sched).(*workStealingPolicy)
	t.Cleanup(p.close)
	return p
}

func TestWorkStealingPolicy_StealFromPeerRebindsOwner(t *testing.T) {
	schedA, schedB := &Scheduler{}, &Scheduler{}
	pa := newTestWorkStealingPolicy(t, schedA)
	pb := newTestWorkStealingPolicy(t, schedB)

	c := &Context{id: 42}
	c.sched.Store(schedA)
	pa.Awakened(c)

	got, ok := pb.PickNext()
	require.True(t, ok)
	require.Same(t, c, got)
	require.Same(t, schedB, c.owner())

	_, ok = pa.PickNext()
	require.False(t, ok, "stolen context must not still be available locally")
}

func TestWorkStealingPolicy_PinnedFiberNeverStolen(t *testing.T) {
	schedA, schedB := &Scheduler{}, &Scheduler{}
	pa := newTestWorkStealingPolicy(t, schedA)
	pb := newTestWorkStealingPolicy(t, schedB)

	c := &Context{id: 7, pinned: true}
	c.sched.Store(schedA)
	pa.Awakened(c)

	_, ok := pb.PickNext()
	require.False(t, ok)

	got, ok := pa.PickNext()
	require.True(t, ok)
	require.Same(t, c, got)
}

func TestWorkStealingPolicy_LocalQueuePreferredOverSteal(t *testing.T) {
	schedA, schedB := &Scheduler{}, &Scheduler{}
	pa := newTestWorkStealingPolicy(t, schedA)
	pb := newTestWorkStealingPolicy(t, schedB)

	remote := &Context{id: 1}
	remote.sched.Store(schedA)
	pa.Awakened(remote)

	local := &Context{id: 2}
	local.sched.Store(schedB)
	pb.Awakened(local)

	got, ok := pb.PickNext()
	require.True(t, ok)
	require.Same(t, local, got)
}

func TestWorkStealingPolicy_CloseUnregisters(t *testing.T) {
	schedA, schedB := &Scheduler{}, &Scheduler{}
	pa := NewWorkStealingPolicy()(schedA).(*workStealingPolicy)
	pb := newTestWorkStealingPolicy(t, schedB)

	c := &Context{id: 99}
	c.sched.Store(schedA)
	pa.Awakened(c)

	pa.close()

	_, ok := pb.PickNext()
	require.False(t, ok, "a closed policy must not be offered as a steal target")
}
