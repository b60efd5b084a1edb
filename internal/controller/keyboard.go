package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/term"
	"github.com/rs/zerolog/log"

	"QuadPilot/internal/model"
)

// Keyboard reads single keys from a raw-mode tty and turns them into raw
// commands. Axes accumulate per keypress up to the configured bound:
//
//	w/s  forward axis up/down
//	a/d  lateral axis left/right
//	z/x  crouch / stand tall
//	space  stop in place
//	q    quit
type Keyboard struct {
	cfg model.KeyboardConfig

	tty  *term.Term
	cmds chan model.RawCommand
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu    sync.Mutex
	alive bool
}

// NewKeyboard builds the keyboard controller; the tty is opened by Start.
func NewKeyboard(cfg model.KeyboardConfig) *Keyboard {
	return &Keyboard{
		cfg:  cfg,
		cmds: make(chan model.RawCommand, 8),
		stop: make(chan struct{}),
	}
}

// Start opens the tty in raw mode and launches the key reader.
func (k *Keyboard) Start() error {
	t, err := term.Open(k.cfg.TTY, term.RawMode)
	if err != nil {
		return fmt.Errorf("open tty %s: %w", k.cfg.TTY, err)
	}
	if err := t.SetReadTimeout(100 * time.Millisecond); err != nil {
		t.Restore()
		t.Close()
		return fmt.Errorf("tty read timeout: %w", err)
	}
	k.tty = t
	k.mu.Lock()
	k.alive = true
	k.mu.Unlock()

	k.wg.Add(1)
	go k.readKeys()
	log.Info().Str("tty", k.cfg.TTY).Msg("keyboard controller started")
	return nil
}

// readKeys is the single reader goroutine. Axis state lives here; every
// keypress snapshots it into a raw command.
func (k *Keyboard) readKeys() {
	defer k.wg.Done()

	var x, y float64
	height := 1.0
	buf := make([]byte, 1)
	errStreak := 0

	for {
		select {
		case <-k.stop:
			return
		default:
		}

		n, err := k.tty.Read(buf)
		if err != nil || n == 0 {
			if err != nil {
				errStreak++
				if errStreak >= 5 {
					log.Error().Err(err).Msg("tty read failed, keyboard dead")
					k.markDead()
					return
				}
			}
			continue
		}
		errStreak = 0

		action := model.ActionNone
		switch buf[0] {
		case 'w':
			x = clampAxis(x+k.cfg.Accel, k.cfg.Bound)
		case 's':
			x = clampAxis(x-k.cfg.Accel, k.cfg.Bound)
		case 'a':
			y = clampAxis(y-k.cfg.Accel, k.cfg.Bound)
		case 'd':
			y = clampAxis(y+k.cfg.Accel, k.cfg.Bound)
		case 'z':
			height = 0.6
			action = model.ActionSit
		case 'x':
			height = 1.0
			action = model.ActionStand
		case ' ':
			x, y = 0, 0
			action = model.ActionStop
		case 'q', 3: // q or ctrl-c
			action = model.ActionQuit
		default:
			continue
		}

		push(k.cmds, model.RawCommand{
			AxisX:     x,
			AxisY:     y,
			Height:    height,
			Action:    action,
			Timestamp: time.Now(),
		})
		if action == model.ActionQuit {
			return
		}
	}
}

// NextRawCommand returns the next staged keypress command, or nil after
// timeout.
func (k *Keyboard) NextRawCommand(timeout time.Duration) (*model.RawCommand, error) {
	select {
	case raw := <-k.cmds:
		return &raw, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

// IsAlive reports whether the key reader is still running.
func (k *Keyboard) IsAlive() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.alive
}

func (k *Keyboard) markDead() {
	k.mu.Lock()
	k.alive = false
	k.mu.Unlock()
}

// Stop restores the tty and joins the reader. Idempotent.
func (k *Keyboard) Stop() {
	k.once.Do(func() {
		close(k.stop)
		k.wg.Wait()
		if k.tty != nil {
			k.tty.Restore()
			k.tty.Close()
		}
		k.markDead()
		log.Info().Msg("keyboard controller stopped")
	})
}

func clampAxis(v, bound float64) float64 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}
