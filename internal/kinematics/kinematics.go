// Package kinematics solves inverse kinematics for one quadruped leg: given a
// desired foot position it produces shoulder, elbow and hip angles in degrees.
package kinematics

import (
	"errors"
	"fmt"
	"math"

	"QuadPilot/internal/model"
)

// ErrUnreachable reports a foot position beyond the leg's reach.
var ErrUnreachable = errors.New("position unreachable")

// Angles is one leg's joint solution in degrees.
type Angles struct {
	Shoulder float64
	Elbow    float64
	Hip      float64
}

// Solver computes joint angles from foot positions for the configured geometry.
type Solver struct {
	upperLength    float64
	lowerLength    float64
	shoulderOffset float64
	elbowOffset    float64
	hipOffset      float64
}

// NewSolver builds a Solver from the robot configuration.
func NewSolver(cfg model.RobotConfig) *Solver {
	return &Solver{
		upperLength:    cfg.Legs.UpperLength,
		lowerLength:    cfg.Legs.LowerLength,
		shoulderOffset: cfg.Offsets.Shoulder,
		elbowOffset:    cfg.Offsets.Elbow,
		hipOffset:      cfg.Offsets.Hip,
	}
}

// Calculate solves for the foot position (x forward, y down, z lateral), all in
// cm. right selects the body side; left legs mirror z.
func (s *Solver) Calculate(x, y, z float64, right bool) (Angles, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsNaN(z) {
		return Angles{}, fmt.Errorf("non-finite coordinate (%v, %v, %v)", x, y, z)
	}
	if y < 0.1 {
		return Angles{}, fmt.Errorf("y coordinate %.3f too small, must be >= 0.1", y)
	}
	if !right {
		z = -z
	}

	distXY := math.Hypot(x, y)
	distXYZ := math.Hypot(distXY, z)

	maxReach := s.upperLength + s.lowerLength
	if distXYZ > maxReach {
		return Angles{}, fmt.Errorf("%w: distance %.2fcm exceeds reach %.2fcm",
			ErrUnreachable, distXYZ, maxReach)
	}

	// Law of cosines for the elbow, with acos input clamped against rounding.
	cosElbow := (s.upperLength*s.upperLength + s.lowerLength*s.lowerLength -
		distXYZ*distXYZ) / (2 * s.upperLength * s.lowerLength)
	elbowRad := math.Acos(clamp(cosElbow, -1, 1))

	cosShoulder := (s.upperLength*s.upperLength + distXYZ*distXYZ -
		s.lowerLength*s.lowerLength) / (2 * s.upperLength * distXYZ)
	shoulderRad := math.Acos(clamp(cosShoulder, -1, 1))

	hipRad := math.Atan2(z, distXY)

	return Angles{
		Shoulder: degrees(shoulderRad) + s.shoulderOffset,
		Elbow:    degrees(elbowRad) + s.elbowOffset,
		Hip:      degrees(hipRad) + s.hipOffset,
	}, nil
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
