// teleop is the operator-side half of the network controller: it reads keys
// from the local terminal and streams wire frames to the robot's /control
// endpoint at a fixed cadence, so the robot always sees fresh timestamps while
// a key is held.
package main

import (
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/term"
	"github.com/rs/zerolog"

	"QuadPilot/internal/model"
	"QuadPilot/internal/parser"
	"QuadPilot/internal/util"
)

// pilot holds the operator's current steering state.
type pilot struct {
	mu     sync.Mutex
	x, y   float64
	height float64
	action model.Action
}

func (p *pilot) snapshot() model.RawCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw := model.RawCommand{
		AxisX:     p.x,
		AxisY:     p.y,
		Height:    p.height,
		Action:    p.action,
		Timestamp: time.Now(),
	}
	p.action = model.ActionNone // verbs fire once
	return raw
}

func main() {
	server := flag.String("server", "ws://127.0.0.1:9000/control", "robot control endpoint")
	format := flag.String("format", "csv", "wire format (csv or json)")
	tty := flag.String("tty", "/dev/tty", "input terminal")
	accel := flag.Float64("accel", 0.05, "axis increment per keypress")
	bound := flag.Float64("bound", 1.0, "axis magnitude cap")
	rateMs := flag.Int("rate", 100, "frame interval in ms")
	logLevel := flag.String("log-level", "info", "zerolog level")
	flag.Parse()

	logger := util.InitLogger("teleop", *logLevel)

	par, err := parser.New(*format)
	if err != nil {
		logger.Fatal().Err(err).Msg("wire format rejected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*server, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("server", *server).Msg("dial failed")
	}
	defer conn.Close()

	t, err := term.Open(*tty, term.RawMode)
	if err != nil {
		logger.Fatal().Err(err).Str("tty", *tty).Msg("terminal unavailable")
	}
	defer func() {
		t.Restore()
		t.Close()
	}()
	if err := t.SetReadTimeout(50 * time.Millisecond); err != nil {
		logger.Fatal().Err(err).Msg("terminal read timeout")
	}

	logger.Info().Str("server", *server).Str("format", *format).
		Msg("teleop connected; w/s/a/d steer, z sit, x stand, space stop, q quit")

	p := &pilot{height: 1.0}
	quit := make(chan struct{})
	go readKeys(t, p, *accel, *bound, quit)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(*rateMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			logger.Info().Msg("teleop interrupted")
			return
		case <-quit:
			raw := p.snapshot()
			raw.Action = model.ActionQuit
			sendFrame(conn, par, raw, logger)
			logger.Info().Msg("teleop quit")
			return
		case <-ticker.C:
			if !sendFrame(conn, par, p.snapshot(), logger) {
				return
			}
		}
	}
}

func sendFrame(conn *websocket.Conn, par parser.Parser, raw model.RawCommand, logger zerolog.Logger) bool {
	frame, err := par.EncodeCommand(raw)
	if err != nil {
		logger.Error().Err(err).Msg("encode failed")
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		logger.Error().Err(err).Msg("robot link lost")
		return false
	}
	return true
}

// readKeys accumulates axis state from single keypresses; q closes quit.
func readKeys(t *term.Term, p *pilot, accel, bound float64, quit chan struct{}) {
	buf := make([]byte, 1)
	for {
		n, err := t.Read(buf)
		if err != nil || n == 0 {
			continue
		}

		p.mu.Lock()
		switch buf[0] {
		case 'w':
			p.x = clamp(p.x+accel, bound)
		case 's':
			p.x = clamp(p.x-accel, bound)
		case 'a':
			p.y = clamp(p.y-accel, bound)
		case 'd':
			p.y = clamp(p.y+accel, bound)
		case 'z':
			p.height = 0.6
			p.action = model.ActionSit
		case 'x':
			p.height = 1.0
			p.action = model.ActionStand
		case ' ':
			p.x, p.y = 0, 0
			p.action = model.ActionStop
		case 'q', 3: // q or ctrl-c
			p.mu.Unlock()
			close(quit)
			return
		}
		p.mu.Unlock()
	}
}

func clamp(v, bound float64) float64 {
	if v > bound {
		return bound
	}
	if v < -bound {
		return -bound
	}
	return v
}
