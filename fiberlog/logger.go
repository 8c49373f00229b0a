// Package fiberlog provides the fiber runtime's ambient structured-logging
// facade.
//
// The fiber runtime never calls a bare log.Printf: every Scheduler and
// Policy logs through a Logger, which defaults to a no-op and is wired to
// a real backend via WithLogger. This mirrors the teacher module's own
// logging.go: a small internal Logger interface, a package-level no-op
// default, and an adapter to an external structured-logging framework
// (github.com/joeycumines/logiface here, paired with
// github.com/rs/zerolog as the default concrete sink, the same pairing
// named by the teacher's own logiface-zerolog companion module).
package fiberlog

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Level mirrors the severity levels the fiber runtime actually emits.
// Keeping a small local enum (rather than exposing logiface.Level
// directly) means callers of fiberlog.New never need to import logiface
// themselves for the common case.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) logifaceLevel() logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// Logger is the interface the fiber runtime logs through. Field order on
// each call is: a message, then key/value pairs (always an even count).
type Logger interface {
	Log(level Level, msg string, kv ...any)
}

// noop is the default Logger, used until WithLogger overrides it.
type noop struct{}

func (noop) Log(Level, string, ...any) {}

// NoOp returns a Logger that discards everything.
func NoOp() Logger { return noop{} }

// logifaceLogger adapts a *logiface.Logger[logiface.Event] (the teacher's
// own wiring pattern, see eventloop's options_test.go /
// coverage_phase2_test.go) into the fiber runtime's Logger interface.
type logifaceLogger struct {
	l *logiface.Logger[logiface.Event]
}

// Wrap adapts an existing logiface logger.
func Wrap(l *logiface.Logger[logiface.Event]) Logger {
	return &logifaceLogger{l: l}
}

func (a *logifaceLogger) Log(level Level, msg string, kv ...any) {
	b := a.l.Build(level.logifaceLevel())
	if b == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		b = b.Field(key, kv[i+1])
	}
	b.Log(msg)
}

// New builds a Logger backed by zerolog, writing to w (os.Stderr if nil).
// This is the default sink described in SPEC_FULL.md §2.1.
func New(w *os.File) Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().Timestamp().Logger()

	writer := logiface.NewWriterFunc[logiface.Event](func(e logiface.Event) error {
		ev := zl.WithLevel(zerologLevel(e.Level()))
		e.(*event).writeFields(ev)
		ev.Msg(e.(*event).msg)
		return nil
	})

	factory := logiface.NewEventFactoryFunc[logiface.Event](func(level logiface.Level) logiface.Event {
		return &event{level: level, fields: make(map[string]any, 4)}
	})

	l := logiface.New[logiface.Event](
		logiface.WithEventFactory[logiface.Event](factory),
		logiface.WithWriter[logiface.Event](writer),
		logiface.WithLevel[logiface.Event](logiface.LevelTrace),
	)
	return Wrap(l)
}

func zerologLevel(l logiface.Level) zerolog.Level {
	switch l {
	case logiface.LevelEmergency, logiface.LevelAlert, logiface.LevelCritical:
		return zerolog.FatalLevel
	case logiface.LevelError:
		return zerolog.ErrorLevel
	case logiface.LevelWarning:
		return zerolog.WarnLevel
	case logiface.LevelNotice, logiface.LevelInformational:
		return zerolog.InfoLevel
	case logiface.LevelDebug:
		return zerolog.DebugLevel
	case logiface.LevelTrace:
		return zerolog.TraceLevel
	default:
		return zerolog.NoLevel
	}
}

// event is the minimal logiface.Event implementation feeding the zerolog
// sink above.
type event struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	fields map[string]any
}

func (e *event) Level() logiface.Level { return e.level }

func (e *event) AddField(key string, val any) { e.fields[key] = val }

func (e *event) AddMessage(msg string) bool { e.msg = msg; return true }

func (e *event) writeFields(ev *zerolog.Event) {
	for k, v := range e.fields {
		ev.Interface(k, v)
	}
}
