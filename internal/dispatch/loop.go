package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"QuadPilot/internal/model"
	"QuadPilot/internal/validate"
)

// Loop is the dispatch state machine. It exclusively owns the active
// controller and sink handles for the duration of one run; a Loop cannot be
// restarted once Stopped; construct a new one.
type Loop struct {
	cfg    model.DispatchConfig
	pol    validate.Policy
	ctrl   Controller
	sink   Sink
	events Emitter

	mu    sync.Mutex
	state State
}

// NewLoop builds a dispatch loop. A nil emitter discards events.
func NewLoop(cfg model.DispatchConfig, ctrl Controller, sink Sink, events Emitter) *Loop {
	if events == nil {
		events = NopEmitter{}
	}
	return &Loop{
		cfg:    cfg,
		pol:    validate.PolicyFrom(cfg),
		ctrl:   ctrl,
		sink:   sink,
		events: events,
		state:  StateStarting,
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(next State, reason string) {
	l.mu.Lock()
	prev := l.state
	l.state = next
	l.mu.Unlock()
	if prev == next {
		return
	}
	detail := fmt.Sprintf("%s->%s", prev, next)
	log.Info().Str("transition", detail).Str("reason", reason).Msg("dispatch state")
	l.events.Emit(model.NewEvent(model.EventState, reason, detail))
}

// Run drives the control cycle until shutdown. It returns nil on a clean
// shutdown (signal or quit command), ErrAcquisition when the controller cannot
// start, and ErrDegradedTimeout when the source stays lost past the grace
// period. The only blocking point is the bounded NextRawCommand wait, so
// shutdown latency is bounded by the poll timeout.
func (l *Loop) Run(ctx context.Context) error {
	if l.State() != StateStarting {
		return fmt.Errorf("dispatch loop cannot be restarted")
	}
	if ctx.Err() != nil {
		l.setState(StateStopped, "shutdown-before-start")
		return nil
	}

	if err := l.ctrl.Start(); err != nil {
		l.setState(StateStopped, "acquisition-failed")
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	l.setState(StateActive, "controller-started")

	lim := newLimiter(l.cfg.MinInterval())
	emptyCycles := 0
	var degradedAt time.Time

	for {
		select {
		case <-ctx.Done():
			return l.shutdown("shutdown-signal")
		default:
		}

		raw, srcErr := l.ctrl.NextRawCommand(l.cfg.PollTimeout())

		switch l.State() {
		case StateActive:
			if srcErr != nil {
				l.enterDegraded("source-error", lim)
				degradedAt = time.Now()
				emptyCycles = 0
				continue
			}
			if raw == nil {
				emptyCycles++
				if emptyCycles >= l.cfg.TimeoutCycles {
					l.enterDegraded("source-silent", lim)
					degradedAt = time.Now()
					emptyCycles = 0
					continue
				}
				if !l.ctrl.IsAlive() {
					l.enterDegraded("source-dead", lim)
					degradedAt = time.Now()
					emptyCycles = 0
					continue
				}
			} else {
				emptyCycles = 0
				if quit := l.handleRaw(*raw, lim); quit {
					return l.shutdown("quit-command")
				}
			}

			if cmd, ok := lim.take(time.Now()); ok {
				if err := l.sink.Send(cmd); err != nil {
					log.Warn().Err(err).Msg("sink refused command")
					l.enterDegraded("sink-error", lim)
					degradedAt = time.Now()
					emptyCycles = 0
					continue
				}
				l.events.Emit(model.NewEvent(model.EventForward, "", cmd.Action.String()))
			}

		case StateDegraded:
			// Recovery needs an actual command: arrival proves the source is
			// back, while a liveness probe alone cannot re-activate a silent
			// source.
			if raw != nil && srcErr == nil {
				l.setState(StateActive, "source-recovered")
				emptyCycles = 0
				if quit := l.handleRaw(*raw, lim); quit {
					return l.shutdown("quit-command")
				}
				continue
			}
			if time.Since(degradedAt) >= l.cfg.GracePeriod() {
				return l.terminate()
			}
		}
	}
}

// handleRaw validates one raw command. Accepted commands are staged on the
// limiter; rejections are reported and the cycle continues. The return value
// signals an accepted quit command.
func (l *Loop) handleRaw(raw model.RawCommand, lim *limiter) bool {
	res := validate.Validate(raw, l.pol)
	if !res.Accepted() {
		log.Debug().Str("reason", string(res.Reason)).
			Float64("axis_x", raw.AxisX).Float64("axis_y", raw.AxisY).
			Str("action", raw.Action.String()).Msg("command rejected")
		l.events.Emit(model.NewEvent(model.EventReject, string(res.Reason), raw.Action.String()))
		return false
	}
	if res.Command.Action == model.ActionQuit {
		return true
	}
	lim.offer(res.Command)
	return false
}

// enterDegraded transitions Active -> Degraded and immediately sends the
// safe-stop, exactly once per entry. The pending command is dropped so a stale
// value cannot fire after recovery.
func (l *Loop) enterDegraded(reason string, lim *limiter) {
	lim.clear()
	l.setState(StateDegraded, reason)
	l.sendSafeStop(reason)
}

// sendSafeStop bypasses the rate limiter: the protective stop must never wait
// out a minimum-interval window.
func (l *Loop) sendSafeStop(reason string) {
	if err := l.sink.Send(model.SafeStop()); err != nil {
		log.Error().Err(err).Msg("safe-stop delivery failed")
		l.events.Emit(model.NewEvent(model.EventSafeStop, reason, "delivery-failed"))
		return
	}
	l.events.Emit(model.NewEvent(model.EventSafeStop, reason, ""))
}

// terminate is the Degraded -> Stopped path: stop the controller, send one
// final safe-stop and report the run as failed.
func (l *Loop) terminate() error {
	l.ctrl.Stop()
	l.sendSafeStop("grace-period-elapsed")
	l.setState(StateStopped, "grace-period-elapsed")
	return ErrDegradedTimeout
}

// shutdown is the clean termination path: drain to a safe-stop, release the
// controller and report success.
func (l *Loop) shutdown(reason string) error {
	l.sendSafeStop(reason)
	l.ctrl.Stop()
	l.setState(StateStopped, reason)
	return nil
}
