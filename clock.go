package fiber

import "time"

// Clock is the monotonic steady clock contract from spec.md §6. It exists
// as an interface (rather than calling time.Now directly throughout) so
// tests can substitute a controllable clock for the sleep-ordering and
// wait-tick scenarios in spec.md §8.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by the monotonic reading
// embedded in time.Time by the Go runtime.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// DefaultClock is the Clock used when no WithClock option is supplied.
var DefaultClock Clock = systemClock{}

// neverTimePoint is the Go rendition of spec.md §3's "default max(): never"
// sentinel for Context.wakeTime. time.Time has no portable maximum value,
// so a concrete far-future instant is used instead of the zero value: the
// zero value sorts *before* every real deadline in the sleep heap, which
// would invert the intended "never" semantics, whereas a far-future instant
// sorts after every real deadline, exactly like the spec's max() sentinel.
var neverTimePoint = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)
