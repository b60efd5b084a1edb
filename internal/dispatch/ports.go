// Package dispatch contains the control-cycle core: it pulls raw commands from
// the one active controller, validates them, rate-limits accepted commands and
// forwards them to the actuation sink, degrading to a protective safe-stop
// when the source or sink misbehaves.
package dispatch

import (
	"errors"
	"time"

	"QuadPilot/internal/model"
)

// Controller is the capability contract every input-source variant satisfies.
// The dispatch loop owns the active controller exclusively and calls it from a
// single goroutine; implementations need not be safe for concurrent calls.
type Controller interface {
	// Start acquires the underlying source. Failure is fatal for the run.
	Start() error

	// NextRawCommand blocks up to timeout and returns the next raw command,
	// or (nil, nil) when none arrived in the window; absence of input is
	// expected for event-driven sources, not an error. A non-nil error means
	// the source itself has failed.
	NextRawCommand(timeout time.Duration) (*model.RawCommand, error)

	// IsAlive is a cheap liveness probe and must not block.
	IsAlive() bool

	// Stop releases the source. Idempotent; safe from the failure path.
	Stop()
}

// Sink is the actuation target the loop forwards canonical commands to.
type Sink interface {
	Send(model.Command) error
}

// Emitter receives observability events: every rejection and every state
// transition. One-way; implementations must not block the control cycle.
type Emitter interface {
	Emit(model.Event)
}

// NopEmitter discards events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(model.Event) {}

// ErrAcquisition reports that the chosen controller could not start; the loop
// never entered Active and no command was sent.
var ErrAcquisition = errors.New("controller acquisition failed")

// ErrDegradedTimeout reports that the input source stayed lost beyond the
// grace period and the loop shut down protectively.
var ErrDegradedTimeout = errors.New("input lost beyond grace period")

// State is the dispatch loop lifecycle. It is owned exclusively by the loop;
// no other component mutates it.
type State int

const (
	StateStarting State = iota
	StateActive
	StateDegraded
	StateStopped
)

var stateNames = map[State]string{
	StateStarting: "starting",
	StateActive:   "active",
	StateDegraded: "degraded",
	StateStopped:  "stopped",
}

// String returns the lowercase state name.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}
