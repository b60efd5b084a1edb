// Package servo drives the quadruped's servo board over a line-oriented device.
// The board speaks a fire-and-forget protocol: one "S,<channel>,<angle>" line
// per angle update.
package servo

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"QuadPilot/internal/device"
)

// Motor identifies a servo channel on the board.
type Motor int

const (
	FRShoulder Motor = iota
	FRElbow
	FRHip
	FLShoulder
	FLElbow
	FLHip
	BRShoulder
	BRElbow
	BLShoulder
	BLElbow

	motorCount
)

var motorNames = map[string]Motor{
	"FR_SHOULDER": FRShoulder,
	"FR_ELBOW":    FRElbow,
	"FR_HIP":      FRHip,
	"FL_SHOULDER": FLShoulder,
	"FL_ELBOW":    FLElbow,
	"FL_HIP":      FLHip,
	"BR_SHOULDER": BRShoulder,
	"BR_ELBOW":    BRElbow,
	"BL_SHOULDER": BLShoulder,
	"BL_ELBOW":    BLElbow,
}

// MotorByName resolves a configuration motor name to its channel.
func MotorByName(name string) (Motor, bool) {
	m, ok := motorNames[name]
	return m, ok
}

// Angle limits in degrees.
const (
	angleMin = 0.0
	angleMax = 180.0
)

var (
	// ErrInvalidMotor reports a channel outside the board's range.
	ErrInvalidMotor = errors.New("invalid motor id")
	// ErrInvalidAngle reports an angle outside [0, 180] degrees.
	ErrInvalidAngle = errors.New("invalid angle")
)

// Recorder receives servo telemetry. The monitor's metrics implement it; a nil
// Recorder disables recording.
type Recorder interface {
	RecordMotorAngle(motor int, degrees float64)
	RecordPerformance(op string, d time.Duration)
}

// Controller writes validated angle commands to the servo board with bounded
// retry.
type Controller struct {
	dev     device.Device
	metrics Recorder
	retries int
}

// New creates a Controller on dev. metrics may be nil.
func New(dev device.Device, metrics Recorder) *Controller {
	return &Controller{dev: dev, metrics: metrics, retries: 3}
}

// SetAngle sets one motor to the given angle in degrees, retrying transient
// write failures up to the retry budget.
func (c *Controller) SetAngle(m Motor, degrees float64) error {
	if m < 0 || m >= motorCount {
		return fmt.Errorf("%w: %d", ErrInvalidMotor, m)
	}
	if degrees < angleMin || degrees > angleMax {
		return fmt.Errorf("%w: %.2f not in [%g, %g]", ErrInvalidAngle, degrees, angleMin, angleMax)
	}

	line := fmt.Sprintf("S,%d,%.1f", int(m), degrees)
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		start := time.Now()
		if err := c.dev.WriteLine(line); err != nil {
			lastErr = err
			log.Warn().Int("motor", int(m)).Int("attempt", attempt+1).Err(err).
				Msg("servo write failed")
			continue
		}
		if c.metrics != nil {
			c.metrics.RecordMotorAngle(int(m), degrees)
			c.metrics.RecordPerformance("set_angle", time.Since(start))
		}
		if attempt > 0 {
			log.Warn().Int("motor", int(m)).Int("attempt", attempt+1).
				Msg("servo write succeeded on retry")
		}
		return nil
	}
	return fmt.Errorf("motor %d failed after %d attempts: %w", int(m), c.retries, lastErr)
}

// Calibrate drives every listed motor to its calibration angle. All motors are
// attempted even when some fail; the first failure is returned.
func (c *Controller) Calibrate(angles map[Motor]float64) error {
	log.Info().Int("motors", len(angles)).Msg("servo calibration started")
	var firstErr error
	for m, deg := range angles {
		if err := c.SetAngle(m, deg); err != nil {
			log.Error().Int("motor", int(m)).Err(err).Msg("calibration failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr == nil {
		log.Info().Msg("servo calibration complete")
	}
	return firstErr
}

// CalibrationFromNames converts a name-keyed calibration map from the config
// into motor channels, skipping unknown names with a warning.
func CalibrationFromNames(named map[string]float64) map[Motor]float64 {
	out := make(map[Motor]float64, len(named))
	for name, deg := range named {
		m, ok := MotorByName(name)
		if !ok {
			log.Warn().Str("motor", name).Msg("unknown motor name in calibration")
			continue
		}
		out[m] = deg
	}
	return out
}

// DefaultCalibration is the stance used when the config carries none.
func DefaultCalibration() map[Motor]float64 {
	return map[Motor]float64{
		FRShoulder: 60,
		FRElbow:    90,
		FRHip:      90,
		FLShoulder: 120,
		FLElbow:    90,
		FLHip:      90,
		BRShoulder: 60,
		BRElbow:    90,
		BLShoulder: 120,
		BLElbow:    90,
	}
}
