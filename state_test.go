package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicState_LoadStore(t *testing.T) {
	s := newAtomicState(stateReady)
	require.Equal(t, stateReady, s.Load())

	s.Store(stateRunning)
	require.Equal(t, stateRunning, s.Load())
}

func TestAtomicState_CompareAndSwap(t *testing.T) {
	s := newAtomicState(stateWaiting)

	require.False(t, s.CompareAndSwap(stateReady, stateRunning), "CAS from wrong state must fail")
	require.Equal(t, stateWaiting, s.Load())

	require.True(t, s.CompareAndSwap(stateWaiting, stateReady))
	require.Equal(t, stateReady, s.Load())
}

func TestRunState_String(t *testing.T) {
	cases := map[runState]string{
		stateReady:      "ready",
		stateRunning:    "running",
		stateWaiting:    "waiting",
		stateTerminated: "terminated",
		runState(99):    "unknown",
	}
	for s, want := range cases {
		require.Equal(t, want, s.String())
	}
}
