package fiber

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRuntime_SpawnAcrossSchedulersAllComplete(t *testing.T) {
	rt := NewRuntime(2)
	rt.Start()

	const n = 100
	var completed atomic.Int64
	fibers := make([]*Fiber, n)
	for i := 0; i < n; i++ {
		f, err := rt.Spawn(context.Background(), func(c *Context) {
			completed.Add(1)
		})
		require.NoError(t, err)
		fibers[i] = f
	}

	for _, f := range fibers {
		select {
		case <-f.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("fiber did not complete in time")
		}
	}

	require.EqualValues(t, n, completed.Load())
	require.NoError(t, rt.Close())
}

func TestRuntime_WithMaxFibersBoundsConcurrency(t *testing.T) {
	rt := NewRuntime(1, WithMaxFibers(1))
	rt.Start()
	defer func() { _ = rt.Close() }()

	release := make(chan struct{})
	started := make(chan struct{})
	_, err := rt.Spawn(context.Background(), func(c *Context) {
		close(started)
		<-release
	})
	require.NoError(t, err)
	<-started

	spawned := make(chan struct{})
	go func() {
		_, _ = rt.Spawn(context.Background(), func(c *Context) {})
		close(spawned)
	}()

	select {
	case <-spawned:
		t.Fatal("second Spawn should have blocked on the fiber cap")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	select {
	case <-spawned:
	case <-time.After(time.Second):
		t.Fatal("second Spawn should have proceeded once capacity freed up")
	}
}
