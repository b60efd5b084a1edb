// Package controller implements the input-source variants that feed the
// dispatch loop: a local raw-mode keyboard, a websocket operator link and a
// websocket vision-tracker client. Exactly one variant is active per run; the
// set is closed and selected by name from the configuration.
package controller

import (
	"fmt"

	"QuadPilot/internal/dispatch"
	"QuadPilot/internal/model"
)

// New builds the controller variant selected by name. Unknown names fail; the
// caller treats this as a startup error.
func New(name string, cfg *model.Config) (dispatch.Controller, error) {
	switch name {
	case "keyboard":
		return NewKeyboard(cfg.Keyboard), nil
	case "network":
		return NewNetwork(cfg.Network)
	case "vision":
		return NewVision(cfg.Vision), nil
	default:
		return nil, fmt.Errorf("unknown controller variant %q", name)
	}
}

// push stages a raw command on a bounded channel, displacing the oldest entry
// when full. Sources never block on a slow consumer; the dispatch loop's own
// rate limiter coalesces further.
func push(ch chan model.RawCommand, raw model.RawCommand) {
	select {
	case ch <- raw:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- raw:
	default:
	}
}
