// Package robot implements the Quadruped actuation target: it owns the servo
// link, the gait sequencer and the walker loop, and accepts canonical commands
// from the dispatch loop.
package robot

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"QuadPilot/internal/device"
	"QuadPilot/internal/gait"
	"QuadPilot/internal/kinematics"
	"QuadPilot/internal/model"
	"QuadPilot/internal/servo"
)

// ErrStopped is returned by Send once the robot has shut down.
var ErrStopped = errors.New("robot stopped")

// Recorder receives robot telemetry; the monitor's metrics implement it.
type Recorder interface {
	RecordMotorAngle(motor int, degrees float64)
	RecordMovement(axisX, axisY, height float64)
	RecordPerformance(op string, d time.Duration)
	RecordError()
}

// momentum is the live steering state the walker reads every tick.
type momentum struct {
	x, z, height float64
}

// Quadruped coordinates servos, kinematics and gait. It implements the
// dispatch loop's Sink: Send replaces the walking momentum, the background
// walker turns that momentum into leg motion at a fixed cadence.
type Quadruped struct {
	cfg     model.RobotConfig
	servos  *servo.Controller
	trot    *gait.Trot
	gen     *gait.Generator
	metrics Recorder

	mu  sync.Mutex
	mom momentum

	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New builds a Quadruped on the given servo device. metrics may be nil.
func New(cfg model.RobotConfig, dev device.Device, metrics Recorder) *Quadruped {
	var rec servo.Recorder
	if metrics != nil {
		rec = servoRecorder{metrics}
	}
	servos := servo.New(dev, rec)
	solver := kinematics.NewSolver(cfg)
	return &Quadruped{
		cfg:     cfg,
		servos:  servos,
		trot:    gait.NewTrot(servos, solver, cfg.StepResolution),
		gen:     gait.NewGenerator(cfg.StepResolution),
		metrics: metrics,
		mom:     momentum{height: 1.0},
		stop:    make(chan struct{}),
	}
}

// servoRecorder adapts Recorder to the servo package's narrower interface.
type servoRecorder struct{ r Recorder }

func (s servoRecorder) RecordMotorAngle(motor int, degrees float64) {
	s.r.RecordMotorAngle(motor, degrees)
}

func (s servoRecorder) RecordPerformance(op string, d time.Duration) {
	s.r.RecordPerformance(op, d)
}

// Calibrate drives the configured stance; the default pose is used when the
// config carries no calibration block.
func (q *Quadruped) Calibrate() error {
	angles := servo.CalibrationFromNames(q.cfg.Calibration)
	if len(angles) == 0 {
		angles = servo.DefaultCalibration()
	}
	return q.servos.Calibrate(angles)
}

// Start launches the walker goroutine. The walker scales the cached trajectory
// by the current momentum each tick and applies one trot step.
func (q *Quadruped) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return nil
	}
	q.started = true

	interval := time.Duration(q.cfg.StepIntervalMs) * time.Millisecond
	base := q.gen.Generate()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		stepIndex := 0
		for {
			select {
			case <-q.stop:
				return
			case <-ticker.C:
				q.mu.Lock()
				mom := q.mom
				q.mu.Unlock()
				if mom.x == 0 && mom.z == 0 {
					// standing still; hold pose
					continue
				}
				start := time.Now()
				traj := base.Scaled(mom.x, mom.z, mom.height)
				if err := q.trot.Step(traj, stepIndex); err != nil {
					if q.metrics != nil {
						q.metrics.RecordError()
					}
					log.Warn().Err(err).Msg("gait step failed")
					continue
				}
				stepIndex++
				if q.metrics != nil {
					q.metrics.RecordPerformance("movement_cycle", time.Since(start))
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("walker started")
	return nil
}

// Send implements the dispatch sink: it atomically replaces the momentum the
// walker steers by. Only validated commands reach this point.
func (q *Quadruped) Send(cmd model.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return ErrStopped
	}

	switch cmd.Action {
	case model.ActionStop, model.ActionQuit:
		q.mom = momentum{height: 1.0}
	case model.ActionSit:
		q.mom = momentum{height: 0.6}
	case model.ActionStand:
		q.mom = momentum{height: 1.0}
	default:
		q.mom = momentum{x: cmd.AxisX, z: cmd.AxisY, height: cmd.Height}
	}
	if q.metrics != nil {
		q.metrics.RecordMovement(q.mom.x, q.mom.z, q.mom.height)
	}
	return nil
}

// Momentum returns the current steering state. Used by tests and the monitor.
func (q *Quadruped) Momentum() (x, z, height float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mom.x, q.mom.z, q.mom.height
}

// Stop halts the walker and re-centers the stance. Idempotent and safe to call
// from the failure path.
func (q *Quadruped) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.mom = momentum{height: 1.0}
	q.mu.Unlock()

	select {
	case <-q.stop:
	default:
		close(q.stop)
	}
	q.wg.Wait()

	if err := q.Calibrate(); err != nil {
		log.Warn().Err(err).Msg("re-center on stop failed")
	}
	log.Info().Msg("walker stopped")
}
