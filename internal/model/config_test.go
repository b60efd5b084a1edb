package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quadpilot.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "dispatch:\n  controller: keyboard\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dispatch.Controller != "keyboard" {
		t.Errorf("controller = %q, want keyboard", cfg.Dispatch.Controller)
	}
	if cfg.Dispatch.OutOfRange != OutOfRangeClamp {
		t.Errorf("out_of_range default = %q, want clamp", cfg.Dispatch.OutOfRange)
	}
	if got := cfg.Dispatch.GracePeriod(); got != 2*time.Second {
		t.Errorf("grace period default = %v, want 2s", got)
	}
	if cfg.Robot.Legs.UpperLength != 10.0 || cfg.Robot.Legs.LowerLength != 10.5 {
		t.Errorf("leg defaults = %+v", cfg.Robot.Legs)
	}
	set := cfg.Dispatch.AllowedActionSet()
	if !set[ActionNone] || !set[ActionStop] || !set[ActionQuit] {
		t.Errorf("default allowed actions = %v", cfg.Dispatch.AllowedActions)
	}
	if set[ActionSit] {
		t.Error("sit should not be allowed by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
dispatch:
  controller: network
  min_interval_ms: 100
  timeout_cycles: 3
  allowed_actions: [none, stop, stand, quit]
network:
  listen: ":9100"
  wire_format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dispatch.MinInterval() != 100*time.Millisecond {
		t.Errorf("min interval = %v", cfg.Dispatch.MinInterval())
	}
	if cfg.Dispatch.TimeoutCycles != 3 {
		t.Errorf("timeout cycles = %d", cfg.Dispatch.TimeoutCycles)
	}
	if cfg.Network.WireFormat != "json" {
		t.Errorf("wire format = %q", cfg.Network.WireFormat)
	}
	if !cfg.Dispatch.AllowedActionSet()[ActionStand] {
		t.Error("stand should be allowed")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown controller", "dispatch:\n  controller: gamepad\n"},
		{"bad policy", "dispatch:\n  controller: keyboard\n  out_of_range: ignore\n"},
		{"bad action", "dispatch:\n  controller: keyboard\n  allowed_actions: [launch]\n"},
		{"bad wire format", "dispatch:\n  controller: network\nnetwork:\n  wire_format: xml\n"},
		{"vision without url", "dispatch:\n  controller: vision\n"},
		{"accel too large", "dispatch:\n  controller: keyboard\nkeyboard:\n  accel: 2.0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Error("Load accepted invalid config")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("Load accepted missing file")
	}
}

func TestActionRoundTrip(t *testing.T) {
	for _, a := range []Action{ActionNone, ActionStop, ActionStand, ActionSit, ActionQuit} {
		got, err := ParseAction(a.String())
		if err != nil {
			t.Fatalf("ParseAction(%q): %v", a.String(), err)
		}
		if got != a {
			t.Errorf("round trip %v -> %v", a, got)
		}
	}
	if _, err := ParseAction("warp"); err == nil {
		t.Error("ParseAction accepted unknown name")
	}
}
