package gait

import (
	"math"
	"testing"

	"QuadPilot/internal/kinematics"
	"QuadPilot/internal/model"
	"QuadPilot/internal/servo"
)

func TestGenerateLengthAndCache(t *testing.T) {
	g := NewGenerator(20)
	traj := g.Generate()
	if traj.Len() != 40 {
		t.Fatalf("len = %d, want 40 (swing + stance)", traj.Len())
	}
	again := g.Generate()
	if &traj.X[0] != &again.X[0] {
		t.Error("second Generate did not return the cached trajectory")
	}
}

func TestGenerateEndpoints(t *testing.T) {
	traj := NewGenerator(20).Generate()
	n := traj.Len() / 2

	// Swing starts at the back of the stride on the ground and lands at the front.
	if traj.X[0] != -1.0 || traj.Y[0] != -15.0 {
		t.Errorf("swing start = (%v, %v), want (-1, -15)", traj.X[0], traj.Y[0])
	}
	if traj.X[n-1] != 1.0 || traj.Y[n-1] != -15.0 {
		t.Errorf("swing end = (%v, %v), want (1, -15)", traj.X[n-1], traj.Y[n-1])
	}
	// The swing apex lifts the foot above the ground line.
	apex := -15.0
	for i := 0; i < n; i++ {
		apex = math.Max(apex, traj.Y[i])
	}
	if apex <= -15.0 {
		t.Error("swing never lifts the foot")
	}
	// Stance slides straight back along the ground.
	for i := n; i < traj.Len(); i++ {
		if traj.Y[i] != -15.0 {
			t.Fatalf("stance point %d at y=%v, want -15", i, traj.Y[i])
		}
	}
	if traj.X[n] != 1.0 || traj.X[traj.Len()-1] != -1.0 {
		t.Errorf("stance runs %v -> %v, want 1 -> -1", traj.X[n], traj.X[traj.Len()-1])
	}
}

func TestScaled(t *testing.T) {
	traj := NewGenerator(10).Generate()
	s := traj.Scaled(0.5, 0, 1.0)
	for i := range s.X {
		if s.X[i] != traj.X[i]*0.5 {
			t.Fatalf("X[%d] = %v, want %v", i, s.X[i], traj.X[i]*0.5)
		}
		if s.Z[i] != 0 {
			t.Fatalf("Z[%d] = %v, want 0", i, s.Z[i])
		}
	}
	// scaling must not touch the cached original
	if traj.X[0] != -1.0 {
		t.Error("Scaled mutated the cached trajectory")
	}
}

type angleRecorder struct {
	angles map[servo.Motor]float64
	calls  int
}

func (r *angleRecorder) SetAngle(m servo.Motor, deg float64) error {
	if r.angles == nil {
		r.angles = map[servo.Motor]float64{}
	}
	r.angles[m] = deg
	r.calls++
	return nil
}

func trotUnderTest(rec *angleRecorder) *Trot {
	solver := kinematics.NewSolver(model.RobotConfig{
		Legs:    model.LegConfig{UpperLength: 10.0, LowerLength: 10.5},
		Offsets: model.OffsetConfig{Shoulder: 10, Elbow: 20},
	})
	return NewTrot(rec, solver, 20)
}

func TestStepDrivesAllLegs(t *testing.T) {
	rec := &angleRecorder{}
	trot := trotUnderTest(rec)
	traj := NewGenerator(20).Generate().Scaled(0.5, 0, 1.0)

	if err := trot.Step(traj, 0); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// 4 shoulders + 4 elbows + 2 front hips
	if rec.calls != 10 {
		t.Errorf("SetAngle calls = %d, want 10", rec.calls)
	}
	for _, m := range []servo.Motor{
		servo.FRShoulder, servo.FRElbow, servo.FRHip,
		servo.FLShoulder, servo.FLElbow, servo.FLHip,
		servo.BRShoulder, servo.BRElbow,
		servo.BLShoulder, servo.BLElbow,
	} {
		if _, ok := rec.angles[m]; !ok {
			t.Errorf("motor %d never driven", int(m))
		}
	}
}

func TestStepIndexWraps(t *testing.T) {
	rec := &angleRecorder{}
	trot := trotUnderTest(rec)
	traj := NewGenerator(20).Generate().Scaled(0.2, 0, 1.0)

	for i := 0; i < 100; i++ {
		if err := trot.Step(traj, i); err != nil {
			t.Fatalf("Step(%d): %v", i, err)
		}
	}
}

func TestStepEmptyTrajectory(t *testing.T) {
	trot := trotUnderTest(&angleRecorder{})
	if err := trot.Step(Trajectory{}, 0); err == nil {
		t.Error("Step accepted an empty trajectory")
	}
}
