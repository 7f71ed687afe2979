// Package collab declares the core's collaborator contracts: logging,
// statistics and randomness. These are interfaces a host supplies, not
// implementations the core owns, core behaviour is identical whether a
// collaborator is attached or not, which is why every function
// accepting one must treat a nil value as "do nothing".
package collab

import (
	"github.com/quartzsim/core/event"
	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/vtime"
)

// Level is a log record's severity.
type Level int

const (
	LevelFatal Level = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
	LevelFunction
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelFatal:
		return "fatal"
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelFunction:
		return "function"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Record is one log event: a level, the simulated time it was emitted
// at, the UID of the component that emitted it, a human body, and an
// open-ended map of typed attributes.
type Record struct {
	Level     Level
	Time      vtime.Instant
	Component object.TypeID
	Body      string
	Fields    map[string]any
}

// Logger is the injected logging collaborator. Models call Log (or one
// of the level-named convenience wrappers) to emit a record. The
// level-named wrappers accept a nil Logger and then do nothing, so
// behaviour never depends on whether one is attached; calling Log on a
// nil Logger directly panics like any nil interface call.
type Logger interface {
	Log(Record)
}

// LogFunc adapts a plain function to Logger.
type LogFunc func(Record)

func (f LogFunc) Log(r Record) { f(r) }

func log(l Logger, level Level, at vtime.Instant, component object.TypeID, body string, fields map[string]any) {
	if l == nil {
		return
	}
	l.Log(Record{Level: level, Time: at, Component: component, Body: body, Fields: fields})
}

func Fatal(l Logger, at vtime.Instant, component object.TypeID, body string, fields map[string]any) {
	log(l, LevelFatal, at, component, body, fields)
}
func Error(l Logger, at vtime.Instant, component object.TypeID, body string, fields map[string]any) {
	log(l, LevelError, at, component, body, fields)
}
func Warning(l Logger, at vtime.Instant, component object.TypeID, body string, fields map[string]any) {
	log(l, LevelWarning, at, component, body, fields)
}
func Info(l Logger, at vtime.Instant, component object.TypeID, body string, fields map[string]any) {
	log(l, LevelInfo, at, component, body, fields)
}
func Debug(l Logger, at vtime.Instant, component object.TypeID, body string, fields map[string]any) {
	log(l, LevelDebug, at, component, body, fields)
}
func Function(l Logger, at vtime.Instant, component object.TypeID, body string, fields map[string]any) {
	log(l, LevelFunction, at, component, body, fields)
}
func Trace(l Logger, at vtime.Instant, component object.TypeID, body string, fields map[string]any) {
	log(l, LevelTrace, at, component, body, fields)
}

// Probe is a named statistics source emitting float64 samples. It is
// deliberately just an event.Source[func(float64) event.Void], probes
// reuse the same connection-pool fan-out every other event interface
// uses rather than inventing a parallel delivery mechanism. The sink has
// no meaningful result, hence the event.Void return.
type Probe = event.Source[func(float64) event.Void]

// NewProbe returns an unbounded probe, ready for sinks to Connect.
func NewProbe() *Probe { return event.NewSource[func(float64) event.Void](0) }

// Emit reports one sample on p.
func Emit(p *Probe, sample float64) { event.Fire1(p, sample) }

// Random is the injected randomness collaborator: models request
// samples from a catalogue of named distributions; the core does not
// define how generators are seeded or combined, so that is entirely the
// implementation's business.
type Random interface {
	// Sample draws one value from the named distribution, parameterised
	// by params (e.g. "uniform" with {"low": 0, "high": 1}, "exponential"
	// with {"rate": 2.5}). An unknown distribution name or missing
	// parameter is the implementation's error to define and return.
	Sample(distribution string, params map[string]float64) (float64, error)
}
