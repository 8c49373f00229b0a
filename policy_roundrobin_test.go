package fiber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoundRobinPolicy_FIFOOrder(t *testing.T) {
	p := NewRoundRobinPolicy()(&Scheduler{}).(*roundRobinPolicy)
	a, b, c := &Context{id: 1}, &Context{id: 2}, &Context{id: 3}

	p.Awakened(a)
	p.Awakened(b)
	p.Awakened(c)

	for _, want := range []*Context{a, b, c} {
		got, ok := p.PickNext()
		require.True(t, ok)
		require.Same(t, want, got)
	}
	_, ok := p.PickNext()
	require.False(t, ok)
}

func TestRoundRobinPolicy_SuspendUntilWakesOnNotify(t *testing.T) {
	p := NewRoundRobinPolicy()(&Scheduler{}).(*roundRobinPolicy)

	woke := make(chan struct{})
	go func() {
		p.SuspendUntil(time.Second)
		close(woke)
	}()

	time.Sleep(5 * time.Millisecond)
	p.Notify()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("SuspendUntil did not wake on Notify")
	}
}

func TestRoundRobinPolicy_SuspendUntilTimesOut(t *testing.T) {
	p := NewRoundRobinPolicy()(&Scheduler{}).(*roundRobinPolicy)
	start := time.Now()
	p.SuspendUntil(10 * time.Millisecond)
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
