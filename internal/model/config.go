package model

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root structure loaded from configs/quadpilot.yml.
type Config struct {
	Robot    RobotConfig    `yaml:"robot"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Keyboard KeyboardConfig `yaml:"keyboard"`
	Network  NetworkConfig  `yaml:"network"`
	Vision   VisionConfig   `yaml:"vision"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// RobotConfig defines the quadruped geometry, servo link and gait timing.
type RobotConfig struct {
	ServoDev       string             `yaml:"servo_device"` // serial device of the servo board; empty = log-only
	ServoBaud      int                `yaml:"servo_baud"`
	StepIntervalMs int                `yaml:"step_interval_ms"` // walker tick period
	StepResolution int                `yaml:"step_resolution"`  // points per trajectory phase
	Legs           LegConfig          `yaml:"legs"`
	Offsets        OffsetConfig       `yaml:"offsets"`
	HipOffset      float64            `yaml:"hip_offset"`
	Calibration    map[string]float64 `yaml:"calibration"` // motor name -> degrees
}

// LegConfig holds the leg segment lengths in cm.
type LegConfig struct {
	UpperLength float64 `yaml:"upper_length"`
	LowerLength float64 `yaml:"lower_length"`
}

// OffsetConfig holds servo mounting offsets in degrees.
type OffsetConfig struct {
	Shoulder float64 `yaml:"shoulder"`
	Elbow    float64 `yaml:"elbow"`
	Hip      float64 `yaml:"hip"`
}

// DispatchConfig is the immutable per-run configuration of the dispatch loop.
// It is created once at startup and shared read-only.
type DispatchConfig struct {
	Controller     string   `yaml:"controller"`       // keyboard | network | vision
	PollTimeoutMs  int      `yaml:"poll_timeout_ms"`  // bounded wait per cycle
	TimeoutCycles  int      `yaml:"timeout_cycles"`   // consecutive empty cycles before Degraded
	GracePeriodMs  int      `yaml:"grace_period_ms"`  // Degraded dwell before Stopped
	MinIntervalMs  int      `yaml:"min_interval_ms"`  // minimum spacing between forwards
	MaxStalenessMs int      `yaml:"max_staleness_ms"` // oldest accepted command timestamp
	OutOfRange     string   `yaml:"out_of_range"`     // clamp | reject
	AllowedActions []string `yaml:"allowed_actions"`  // wire names; empty = none/stop/quit
}

// KeyboardConfig tunes the local keyboard controller.
type KeyboardConfig struct {
	TTY   string  `yaml:"tty"`
	Accel float64 `yaml:"accel"` // per-keypress axis increment
	Bound float64 `yaml:"bound"` // axis magnitude cap, <= 1
}

// NetworkConfig defines the operator websocket link.
type NetworkConfig struct {
	Listen     string `yaml:"listen"`      // ws listen address, e.g. ":9000"
	WireFormat string `yaml:"wire_format"` // csv | json
	MaxErrors  int    `yaml:"max_errors"`  // consecutive decode errors before dead
}

// VisionConfig defines the tracker feed consumed by the vision controller.
type VisionConfig struct {
	TrackerURL   string  `yaml:"tracker_url"` // ws:// feed of JSON detections
	Gain         float64 `yaml:"gain"`        // steering gain on horizontal offset
	StandoffArea float64 `yaml:"standoff_area"`
	DialAttempts int     `yaml:"dial_attempts"`
}

// MonitorConfig defines the observability surface.
type MonitorConfig struct {
	Addr         string `yaml:"addr"` // HTTP listen address; empty disables the server
	DBPath       string `yaml:"db_path"`
	RetainEvents int    `yaml:"retain_events"`
}

// Load reads the YAML configuration at path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the shipped defaults.
func (c *Config) ApplyDefaults() {
	if c.Robot.ServoBaud == 0 {
		c.Robot.ServoBaud = 115200
	}
	if c.Robot.StepIntervalMs == 0 {
		c.Robot.StepIntervalMs = 20
	}
	if c.Robot.StepResolution == 0 {
		c.Robot.StepResolution = 20
	}
	if c.Robot.Legs.UpperLength == 0 {
		c.Robot.Legs.UpperLength = 10.0
	}
	if c.Robot.Legs.LowerLength == 0 {
		c.Robot.Legs.LowerLength = 10.5
	}
	if c.Robot.Offsets.Shoulder == 0 {
		c.Robot.Offsets.Shoulder = 10.0
	}
	if c.Robot.Offsets.Elbow == 0 {
		c.Robot.Offsets.Elbow = 20.0
	}
	if c.Robot.HipOffset == 0 {
		c.Robot.HipOffset = 2.0
	}

	if c.Dispatch.Controller == "" {
		c.Dispatch.Controller = "network"
	}
	if c.Dispatch.PollTimeoutMs == 0 {
		c.Dispatch.PollTimeoutMs = 50
	}
	if c.Dispatch.TimeoutCycles == 0 {
		c.Dispatch.TimeoutCycles = 40
	}
	if c.Dispatch.GracePeriodMs == 0 {
		c.Dispatch.GracePeriodMs = 2000
	}
	if c.Dispatch.MinIntervalMs == 0 {
		c.Dispatch.MinIntervalMs = 20
	}
	if c.Dispatch.MaxStalenessMs == 0 {
		c.Dispatch.MaxStalenessMs = 500
	}
	if c.Dispatch.OutOfRange == "" {
		c.Dispatch.OutOfRange = OutOfRangeClamp
	}
	if len(c.Dispatch.AllowedActions) == 0 {
		c.Dispatch.AllowedActions = []string{"none", "stop", "quit"}
	}

	if c.Keyboard.TTY == "" {
		c.Keyboard.TTY = "/dev/tty"
	}
	if c.Keyboard.Accel == 0 {
		c.Keyboard.Accel = 0.05
	}
	if c.Keyboard.Bound == 0 {
		c.Keyboard.Bound = 1.0
	}

	if c.Network.Listen == "" {
		c.Network.Listen = ":9000"
	}
	if c.Network.WireFormat == "" {
		c.Network.WireFormat = "csv"
	}
	if c.Network.MaxErrors == 0 {
		c.Network.MaxErrors = 10
	}

	if c.Vision.Gain == 0 {
		c.Vision.Gain = 1.2
	}
	if c.Vision.StandoffArea == 0 {
		c.Vision.StandoffArea = 0.15
	}
	if c.Vision.DialAttempts == 0 {
		c.Vision.DialAttempts = 3
	}

	if c.Monitor.DBPath == "" {
		c.Monitor.DBPath = "quadpilot.db"
	}
	if c.Monitor.RetainEvents == 0 {
		c.Monitor.RetainEvents = 1000
	}
}

// Out-of-range axis policies.
const (
	OutOfRangeClamp  = "clamp"
	OutOfRangeReject = "reject"
)

// Validate checks cross-field constraints. Invalid configuration fails startup.
func (c *Config) Validate() error {
	switch c.Dispatch.Controller {
	case "keyboard", "network", "vision":
	default:
		return fmt.Errorf("dispatch.controller: unknown variant %q", c.Dispatch.Controller)
	}
	switch c.Dispatch.OutOfRange {
	case OutOfRangeClamp, OutOfRangeReject:
	default:
		return fmt.Errorf("dispatch.out_of_range: must be %q or %q", OutOfRangeClamp, OutOfRangeReject)
	}
	if c.Dispatch.PollTimeoutMs <= 0 {
		return fmt.Errorf("dispatch.poll_timeout_ms: must be positive")
	}
	if c.Dispatch.TimeoutCycles <= 0 {
		return fmt.Errorf("dispatch.timeout_cycles: must be positive")
	}
	if c.Dispatch.GracePeriodMs <= 0 {
		return fmt.Errorf("dispatch.grace_period_ms: must be positive")
	}
	if c.Dispatch.MinIntervalMs < 0 {
		return fmt.Errorf("dispatch.min_interval_ms: must not be negative")
	}
	for _, name := range c.Dispatch.AllowedActions {
		if _, err := ParseAction(name); err != nil {
			return fmt.Errorf("dispatch.allowed_actions: %w", err)
		}
	}
	switch c.Network.WireFormat {
	case "csv", "json":
	default:
		return fmt.Errorf("network.wire_format: must be csv or json")
	}
	if c.Keyboard.Accel <= 0 || c.Keyboard.Accel > 1 {
		return fmt.Errorf("keyboard.accel: must be in (0, 1]")
	}
	if c.Keyboard.Bound <= 0 || c.Keyboard.Bound > 1 {
		return fmt.Errorf("keyboard.bound: must be in (0, 1]")
	}
	if c.Dispatch.Controller == "vision" && c.Vision.TrackerURL == "" {
		return fmt.Errorf("vision.tracker_url: required for the vision controller")
	}
	return nil
}

// PollTimeout is the bounded wait passed to NextRawCommand each cycle.
func (d DispatchConfig) PollTimeout() time.Duration {
	return time.Duration(d.PollTimeoutMs) * time.Millisecond
}

// GracePeriod is how long the loop dwells in Degraded before stopping.
func (d DispatchConfig) GracePeriod() time.Duration {
	return time.Duration(d.GracePeriodMs) * time.Millisecond
}

// MinInterval is the minimum spacing between forwarded commands.
func (d DispatchConfig) MinInterval() time.Duration {
	return time.Duration(d.MinIntervalMs) * time.Millisecond
}

// MaxStaleness is the oldest command timestamp the validator accepts.
func (d DispatchConfig) MaxStaleness() time.Duration {
	return time.Duration(d.MaxStalenessMs) * time.Millisecond
}

// AllowedActionSet expands the configured action names into a lookup set.
// Unknown names are skipped; Validate has already reported them.
func (d DispatchConfig) AllowedActionSet() map[Action]bool {
	set := make(map[Action]bool, len(d.AllowedActions))
	for _, name := range d.AllowedActions {
		if a, err := ParseAction(name); err == nil {
			set[a] = true
		}
	}
	return set
}
