package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"QuadPilot/internal/model"
)

// Server exposes the dashboard API: metrics and history over HTTP, the live
// event stream over websocket.
type Server struct {
	cfg     model.MonitorConfig
	metrics *Metrics
	hub     *Hub
	store   *Store // may be nil

	srv  *http.Server
	addr net.Addr
}

// NewServer wires the monitor HTTP surface.
func NewServer(cfg model.MonitorConfig, metrics *Metrics, hub *Hub, store *Store) *Server {
	return &Server{cfg: cfg, metrics: metrics, hub: hub, store: store}
}

// Start binds the configured address and serves in the background. An empty
// address disables the server.
func (s *Server) Start() error {
	if s.cfg.Addr == "" {
		log.Info().Msg("monitor server disabled (empty address)")
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("monitor listen %s: %w", s.cfg.Addr, err)
	}
	s.addr = ln.Addr()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/ws", s.hub.handleWS)
	s.srv = &http.Server{Handler: mux}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("monitor server failed")
		}
	}()
	log.Info().Str("addr", s.addr.String()).Msg("monitor server listening")
	return nil
}

// Addr returns the bound address; valid after Start, empty when disabled.
func (s *Server) Addr() string {
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.metrics.Snapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "event store disabled", http.StatusNotFound)
		return
	}
	evs, err := s.store.RecentEvents(100)
	if err != nil {
		http.Error(w, "failed to read events", http.StatusInternalServerError)
		return
	}
	writeJSON(w, evs)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "alert store disabled", http.StatusNotFound)
		return
	}
	als, err := s.store.RecentAlerts(100)
	if err != nil {
		http.Error(w, "failed to read alerts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, als)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("monitor response write failed")
	}
}

// Stop drains the server and drops streaming clients.
func (s *Server) Stop() {
	if s.srv == nil {
		return
	}
	s.hub.CloseClients()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("monitor server shutdown")
	}
}
