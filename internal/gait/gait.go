package gait

import (
	"fmt"

	"QuadPilot/internal/kinematics"
	"QuadPilot/internal/servo"
)

// AngleSetter is the slice of the servo controller the gait needs.
type AngleSetter interface {
	SetAngle(m servo.Motor, degrees float64) error
}

// Trot applies trajectory points to the four legs in diagonal pairs: FR+BL
// walk the same phase while FL+BR walk half a cycle ahead.
type Trot struct {
	servos     AngleSetter
	solver     *kinematics.Solver
	resolution int
}

// NewTrot creates a trot sequencer.
func NewTrot(servos AngleSetter, solver *kinematics.Solver, resolution int) *Trot {
	return &Trot{servos: servos, solver: solver, resolution: resolution}
}

// leg binds the motors of one leg; hip < 0 means the leg has no hip servo.
type leg struct {
	shoulder, elbow servo.Motor
	hip             servo.Motor
	hasHip          bool
	right           bool
	// vertical trim keeps the body level: front legs ride 1cm lower, back
	// legs 2cm higher.
	yTrim float64
	// phase selects which of the two trajectory cursors this leg follows.
	phase int
	// mirrorZ flips the lateral coordinate for the left-front leg.
	mirrorZ bool
}

var trotLegs = []leg{
	{shoulder: servo.FRShoulder, elbow: servo.FRElbow, hip: servo.FRHip, hasHip: true, right: true, yTrim: -1, phase: 0},
	{shoulder: servo.BRShoulder, elbow: servo.BRElbow, right: true, yTrim: 2, phase: 1},
	{shoulder: servo.FLShoulder, elbow: servo.FLElbow, hip: servo.FLHip, hasHip: true, yTrim: -1, phase: 1, mirrorZ: true},
	{shoulder: servo.BLShoulder, elbow: servo.BLElbow, yTrim: 2, phase: 0},
}

// Step advances the trot by one tick: it reads the two phase cursors from the
// (already momentum-scaled) trajectory and drives all four legs.
func (t *Trot) Step(traj Trajectory, stepIndex int) error {
	n := traj.Len()
	if n == 0 {
		return fmt.Errorf("empty trajectory")
	}
	idx := [2]int{stepIndex % n, (stepIndex + t.resolution) % n}

	for _, l := range trotLegs {
		i := idx[l.phase]
		x, y, z := traj.X[i], traj.Y[i]+l.yTrim, traj.Z[i]
		if l.mirrorZ {
			z = -z
		}
		if err := t.applyLeg(l, x, -y, z); err != nil {
			return err
		}
	}
	return nil
}

// applyLeg solves the leg position and writes the joint angles. y here is the
// positive hip-to-foot drop handed to the solver.
func (t *Trot) applyLeg(l leg, x, y, z float64) error {
	a, err := t.solver.Calculate(x, y, z, l.right)
	if err != nil {
		return fmt.Errorf("leg %d/%d: %w", int(l.shoulder), int(l.elbow), err)
	}
	if err := t.servos.SetAngle(l.shoulder, a.Shoulder); err != nil {
		return err
	}
	if err := t.servos.SetAngle(l.elbow, a.Elbow); err != nil {
		return err
	}
	if l.hasHip {
		if err := t.servos.SetAngle(l.hip, a.Hip); err != nil {
			return err
		}
	}
	return nil
}
