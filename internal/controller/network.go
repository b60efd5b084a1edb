package controller

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"QuadPilot/internal/model"
	"QuadPilot/internal/parser"
)

// Network serves a websocket endpoint for a remote operator and decodes its
// frames with the configured wire parser. One session is allowed at a time; a
// second connection is refused so two operators cannot fight over the robot.
// The controller reports dead after max_errors consecutive undecodable frames.
type Network struct {
	cfg model.NetworkConfig
	par parser.Parser

	upgrader websocket.Upgrader
	srv      *http.Server
	addr     net.Addr
	cmds     chan model.RawCommand
	once     sync.Once

	mu        sync.Mutex
	session   bool
	errStreak int
	dead      bool
}

// NewNetwork builds the operator-link controller.
func NewNetwork(cfg model.NetworkConfig) (*Network, error) {
	par, err := parser.New(cfg.WireFormat)
	if err != nil {
		return nil, err
	}
	return &Network{
		cfg:  cfg,
		par:  par,
		cmds: make(chan model.RawCommand, 16),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}, nil
}

// Start binds the listen address and serves the control endpoint. A bind
// failure is reported synchronously so the caller can fail the run.
func (n *Network) Start() error {
	ln, err := net.Listen("tcp", n.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", n.cfg.Listen, err)
	}

	n.addr = ln.Addr()

	mux := http.NewServeMux()
	mux.HandleFunc("/control", n.handleControl)
	n.srv = &http.Server{Handler: mux}

	go func() {
		if err := n.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("control server failed")
			n.markDead()
		}
	}()
	log.Info().Str("listen", n.cfg.Listen).Str("format", n.cfg.WireFormat).
		Msg("network controller started")
	return nil
}

func (n *Network) handleControl(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	if n.session {
		n.mu.Unlock()
		http.Error(w, "operator session already active", http.StatusConflict)
		return
	}
	n.session = true
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		n.session = false
		n.mu.Unlock()
	}()

	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	log.Info().Str("remote", conn.RemoteAddr().String()).Msg("operator connected")

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Msg("operator disconnected")
			return
		}
		raw, err := n.par.DecodeCommand(string(frame))
		if err != nil {
			if n.recordDecodeError(err) {
				return
			}
			continue
		}
		n.resetErrStreak()
		push(n.cmds, raw)
	}
}

// recordDecodeError counts consecutive undecodable frames; crossing the
// configured limit kills the controller. Returns true when the session must
// close.
func (n *Network) recordDecodeError(err error) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errStreak++
	log.Warn().Err(err).Int("streak", n.errStreak).Msg("undecodable operator frame")
	if n.errStreak >= n.cfg.MaxErrors {
		n.dead = true
		return true
	}
	return false
}

func (n *Network) resetErrStreak() {
	n.mu.Lock()
	n.errStreak = 0
	n.mu.Unlock()
}

// Addr returns the bound listen address; valid after Start. Useful when the
// configuration asked for port 0.
func (n *Network) Addr() string {
	if n.addr == nil {
		return ""
	}
	return n.addr.String()
}

// NextRawCommand returns the next decoded operator command, or nil after
// timeout. No connected operator is silence, not an error.
func (n *Network) NextRawCommand(timeout time.Duration) (*model.RawCommand, error) {
	select {
	case raw := <-n.cmds:
		return &raw, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

// IsAlive reports whether the controller can still accept operator input.
func (n *Network) IsAlive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.dead
}

func (n *Network) markDead() {
	n.mu.Lock()
	n.dead = true
	n.mu.Unlock()
}

// Stop shuts the server down, dropping any active session. Idempotent.
func (n *Network) Stop() {
	n.once.Do(func() {
		if n.srv != nil {
			n.srv.Close()
		}
		n.markDead()
		log.Info().Msg("network controller stopped")
	})
}
