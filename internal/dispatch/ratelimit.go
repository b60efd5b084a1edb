package dispatch

import (
	"time"

	"QuadPilot/internal/model"
)

// limiter bounds the forward rate to at most one command per interval and
// coalesces bursts: a newer accepted command replaces the pending one, so the
// sink always receives the most recent value, never a queue of stale ones.
type limiter struct {
	min     time.Duration
	last    time.Time
	pending *model.Command
}

func newLimiter(min time.Duration) *limiter {
	return &limiter{min: min}
}

// offer stages an accepted command, displacing any older pending command.
func (l *limiter) offer(c model.Command) {
	l.pending = &c
}

// take releases the pending command if the minimum interval has passed since
// the previous release. The first release is immediate.
func (l *limiter) take(now time.Time) (model.Command, bool) {
	if l.pending == nil {
		return model.Command{}, false
	}
	if !l.last.IsZero() && now.Sub(l.last) < l.min {
		return model.Command{}, false
	}
	c := *l.pending
	l.pending = nil
	l.last = now
	return c, true
}

// clear drops the pending command; used when the loop degrades so a stale
// command cannot fire on recovery.
func (l *limiter) clear() {
	l.pending = nil
}
