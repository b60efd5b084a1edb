// Package validate checks raw controller commands against the safety policy
// before they may reach the actuation sink. Validation is pure: the same input
// and policy always produce the same result, and nothing is ever silently
// dropped: every rejection carries a machine-readable reason.
package validate

import (
	"math"
	"time"

	"QuadPilot/internal/model"
)

// Reason enumerates why a command was rejected.
type Reason string

const (
	ReasonOutOfRange       Reason = "out-of-range"
	ReasonMalformed        Reason = "malformed"
	ReasonStale            Reason = "stale"
	ReasonDisallowedAction Reason = "disallowed-action"
)

// Result is the outcome of validating one RawCommand: either an accepted
// canonical command or a rejection reason.
type Result struct {
	Command  model.Command
	Reason   Reason
	accepted bool
}

// Accepted reports whether the command passed validation.
func (r Result) Accepted() bool { return r.accepted }

func accept(c model.Command) Result { return Result{Command: c, accepted: true} }

func reject(r Reason) Result { return Result{Reason: r} }

// Policy is the validator's slice of the dispatch configuration.
type Policy struct {
	MaxStaleness time.Duration
	ClampAxes    bool // false = reject out-of-range axes instead of clamping
	Allowed      map[model.Action]bool
}

// PolicyFrom derives a Policy from the dispatch configuration.
func PolicyFrom(d model.DispatchConfig) Policy {
	return Policy{
		MaxStaleness: d.MaxStaleness(),
		ClampAxes:    d.OutOfRange != model.OutOfRangeReject,
		Allowed:      d.AllowedActionSet(),
	}
}

// Axis and height bounds for canonical commands.
const (
	axisMin   = -1.0
	axisMax   = 1.0
	heightMin = 0.5
	heightMax = 1.5
)

// Validate checks raw against pol and returns either the canonical command or
// a rejection. Bounds are inclusive on the accepting side: an axis of exactly
// ±1.0 and a timestamp exactly at the staleness limit both pass.
func Validate(raw model.RawCommand, pol Policy) Result {
	return validateAt(raw, pol, time.Now())
}

// validateAt is Validate with an injectable clock for tests.
func validateAt(raw model.RawCommand, pol Policy, now time.Time) Result {
	if !finite(raw.AxisX) || !finite(raw.AxisY) || !finite(raw.Height) {
		return reject(ReasonMalformed)
	}
	if raw.Timestamp.IsZero() {
		return reject(ReasonMalformed)
	}
	if now.Sub(raw.Timestamp) > pol.MaxStaleness {
		return reject(ReasonStale)
	}
	if !pol.Allowed[raw.Action] {
		return reject(ReasonDisallowedAction)
	}

	cmd := model.Command{
		AxisX:     raw.AxisX,
		AxisY:     raw.AxisY,
		Height:    raw.Height,
		Action:    raw.Action,
		Timestamp: raw.Timestamp,
	}
	if outOfRange(raw) {
		if !pol.ClampAxes {
			return reject(ReasonOutOfRange)
		}
		cmd.AxisX = clamp(cmd.AxisX, axisMin, axisMax)
		cmd.AxisY = clamp(cmd.AxisY, axisMin, axisMax)
		cmd.Height = clamp(cmd.Height, heightMin, heightMax)
	}
	return accept(cmd)
}

func outOfRange(raw model.RawCommand) bool {
	return raw.AxisX < axisMin || raw.AxisX > axisMax ||
		raw.AxisY < axisMin || raw.AxisY > axisMax ||
		raw.Height < heightMin || raw.Height > heightMax
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
