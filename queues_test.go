package fiber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestContext(wake time.Time) *Context {
	return &Context{heapIndex: -1, wakeTime: wake}
}

func TestSleepSet_DrainExpiredInOrder(t *testing.T) {
	s := newSleepSet()
	base := time.Unix(1000, 0)

	c3 := newTestContext(base.Add(3 * time.Second))
	c1 := newTestContext(base.Add(1 * time.Second))
	c2 := newTestContext(base.Add(2 * time.Second))

	s.Insert(c3)
	s.Insert(c1)
	s.Insert(c2)

	expired := s.DrainExpired(base.Add(2 * time.Second))
	require.Equal(t, []*Context{c1, c2}, expired)
	require.True(t, c1.wokeByTimeout)
	require.True(t, c2.wokeByTimeout)

	require.False(t, s.Empty())
	deadline, ok := s.NearestDeadline()
	require.True(t, ok)
	require.True(t, deadline.Equal(base.Add(3 * time.Second)))
}

func TestSleepSet_RemoveEarly(t *testing.T) {
	s := newSleepSet()
	base := time.Unix(2000, 0)

	c1 := newTestContext(base.Add(time.Second))
	c2 := newTestContext(base.Add(2 * time.Second))
	s.Insert(c1)
	s.Insert(c2)

	s.Remove(c1)
	require.Equal(t, -1, c1.heapIndex)

	expired := s.DrainExpired(base.Add(10 * time.Second))
	require.Equal(t, []*Context{c2}, expired)
	require.True(t, s.Empty())
}

func TestSleepSet_RemoveIsIdempotent(t *testing.T) {
	s := newSleepSet()
	c := newTestContext(time.Now())
	s.Insert(c)
	s.Remove(c)
	require.NotPanics(t, func() { s.Remove(c) })
}
