package fiber

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChaseLevDeque_PushPopLIFOFromOwner(t *testing.T) {
	d := newChaseLevDeque(4)
	a, b, c := &Context{id: 1}, &Context{id: 2}, &Context{id: 3}

	d.PushBottom(a)
	d.PushBottom(b)
	d.PushBottom(c)

	got, ok := d.PopBottom()
	require.True(t, ok)
	require.Same(t, c, got)

	got, ok = d.PopBottom()
	require.True(t, ok)
	require.Same(t, b, got)
}

func TestChaseLevDeque_StealFromTop(t *testing.T) {
	d := newChaseLevDeque(4)
	a, b := &Context{id: 1}, &Context{id: 2}
	d.PushBottom(a)
	d.PushBottom(b)

	got, ok := d.Steal()
	require.True(t, ok)
	require.Same(t, a, got)

	got, ok = d.PopBottom()
	require.True(t, ok)
	require.Same(t, b, got)

	_, ok = d.PopBottom()
	require.False(t, ok)
}

func TestChaseLevDeque_EmptyPopAndSteal(t *testing.T) {
	d := newChaseLevDeque(4)
	_, ok := d.PopBottom()
	require.False(t, ok)
	_, ok = d.Steal()
	require.False(t, ok)
}

func TestChaseLevDeque_GrowsPastInitialCapacity(t *testing.T) {
	d := newChaseLevDeque(2)
	const n = 64
	pushed := make([]*Context, n)
	for i := 0; i < n; i++ {
		c := &Context{id: ID(i)}
		pushed[i] = c
		d.PushBottom(c)
	}
	require.Equal(t, n, d.Len())

	for i := n - 1; i >= 0; i-- {
		got, ok := d.PopBottom()
		require.True(t, ok)
		require.Same(t, pushed[i], got)
	}
}

func TestChaseLevDeque_ConcurrentStealersDoNotDuplicate(t *testing.T) {
	d := newChaseLevDeque(4)
	const n = 500
	for i := 0; i < n; i++ {
		d.PushBottom(&Context{id: ID(i)})
	}

	var mu sync.Mutex
	seen := make(map[ID]bool)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				c, ok := d.Steal()
				if !ok {
					if d.Len() == 0 {
						return
					}
					continue
				}
				mu.Lock()
				require.False(t, seen[c.id], "stole the same context twice")
				seen[c.id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, n)
}
