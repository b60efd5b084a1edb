// Package model defines the shared command, event and configuration structures
// used across the QuadPilot system.
package model

import (
	"fmt"
	"time"
)

// Action is a discrete command verb carried alongside the motion axes.
type Action int

const (
	ActionNone Action = iota
	ActionStop
	ActionStand
	ActionSit
	ActionQuit
)

var actionNames = map[Action]string{
	ActionNone:  "none",
	ActionStop:  "stop",
	ActionStand: "stand",
	ActionSit:   "sit",
	ActionQuit:  "quit",
}

// String returns the wire name of the action.
func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction resolves a wire name back to an Action.
func ParseAction(s string) (Action, error) {
	for a, n := range actionNames {
		if n == s {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("unknown action %q", s)
}

// RawCommand is a source-supplied control instruction. It is untrusted: axes may
// be out of bounds or NaN, the action may be anything, the timestamp may be
// stale. Controllers produce one per poll/event and the validator consumes it
// immediately.
type RawCommand struct {
	AxisX     float64   `json:"axis_x"` // forward/backward, nominal [-1, 1]
	AxisY     float64   `json:"axis_y"` // lateral, nominal [-1, 1]
	Height    float64   `json:"height"` // body height scale, nominal [0.5, 1.5]
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"ts"`
}

// Command is the canonical, validated form of RawCommand. It is only ever
// constructed by the validator or from a configured safe-stop; every Command
// that reaches the actuation sink has passed validation.
type Command struct {
	AxisX     float64
	AxisY     float64
	Height    float64
	Action    Action
	Timestamp time.Time
}

// SafeStop is the neutral command that brings the robot to a halt in place.
func SafeStop() Command {
	return Command{Height: 1.0, Action: ActionStop, Timestamp: time.Now()}
}
