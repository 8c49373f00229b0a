package fiber

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFatalError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	fe := &FatalError{FiberID: ID(3), Cause: cause}

	require.Contains(t, fe.Error(), "fiber-3")
	require.Contains(t, fe.Error(), "boom")
	require.Same(t, cause, fe.Unwrap())
	require.True(t, errors.Is(fe, cause))
}

func TestFatalError_UnwrapNilForNonError(t *testing.T) {
	fe := &FatalError{FiberID: ID(1), Cause: "not an error"}
	require.Nil(t, fe.Unwrap())
}

func TestErrForcedUnwind_NotExportedAsSentinel(t *testing.T) {
	// errForcedUnwind must never be reachable via a recognized exported
	// sentinel -- it is delivered only by direct panic/recover identity.
	require.False(t, errors.Is(ErrInterrupted, errForcedUnwind))
}
