package servo

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// scriptDevice records written lines and can fail the first n writes.
type scriptDevice struct {
	lines    []string
	failures int
}

func (d *scriptDevice) ReadLine(timeout time.Duration) (string, error) {
	return "", errors.New("no data")
}

func (d *scriptDevice) WriteLine(s string) error {
	if d.failures > 0 {
		d.failures--
		return errors.New("bus glitch")
	}
	d.lines = append(d.lines, s)
	return nil
}

func (d *scriptDevice) Close() error { return nil }

func TestSetAngleWritesProtocolLine(t *testing.T) {
	dev := &scriptDevice{}
	c := New(dev, nil)
	if err := c.SetAngle(FLElbow, 90.5); err != nil {
		t.Fatalf("SetAngle: %v", err)
	}
	if len(dev.lines) != 1 || dev.lines[0] != "S,4,90.5" {
		t.Errorf("lines = %v, want [S,4,90.5]", dev.lines)
	}
}

func TestSetAngleValidation(t *testing.T) {
	c := New(&scriptDevice{}, nil)
	if err := c.SetAngle(Motor(12), 90); !errors.Is(err, ErrInvalidMotor) {
		t.Errorf("motor 12: %v, want ErrInvalidMotor", err)
	}
	if err := c.SetAngle(FRShoulder, -5); !errors.Is(err, ErrInvalidAngle) {
		t.Errorf("angle -5: %v, want ErrInvalidAngle", err)
	}
	if err := c.SetAngle(FRShoulder, 180.5); !errors.Is(err, ErrInvalidAngle) {
		t.Errorf("angle 180.5: %v, want ErrInvalidAngle", err)
	}
	// boundary angles are valid
	if err := c.SetAngle(FRShoulder, 0); err != nil {
		t.Errorf("angle 0: %v", err)
	}
	if err := c.SetAngle(FRShoulder, 180); err != nil {
		t.Errorf("angle 180: %v", err)
	}
}

func TestSetAngleRetries(t *testing.T) {
	dev := &scriptDevice{failures: 2}
	c := New(dev, nil)
	if err := c.SetAngle(BRElbow, 45); err != nil {
		t.Fatalf("SetAngle should succeed within retry budget: %v", err)
	}
	if len(dev.lines) != 1 {
		t.Errorf("wrote %d lines, want 1", len(dev.lines))
	}

	dev = &scriptDevice{failures: 3}
	c = New(dev, nil)
	if err := c.SetAngle(BRElbow, 45); err == nil {
		t.Error("SetAngle should fail after exhausting retries")
	}
}

func TestCalibrateDrivesAllMotors(t *testing.T) {
	dev := &scriptDevice{}
	c := New(dev, nil)
	if err := c.Calibrate(DefaultCalibration()); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if len(dev.lines) != 10 {
		t.Errorf("wrote %d lines, want 10", len(dev.lines))
	}
	for _, line := range dev.lines {
		if !strings.HasPrefix(line, "S,") {
			t.Errorf("unexpected line %q", line)
		}
	}
}

func TestCalibrationFromNames(t *testing.T) {
	named := map[string]float64{
		"FR_SHOULDER": 60,
		"NO_SUCH":     12,
		"BL_ELBOW":    90,
	}
	got := CalibrationFromNames(named)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[FRShoulder] != 60 || got[BLElbow] != 90 {
		t.Errorf("calibration = %v", got)
	}
}
