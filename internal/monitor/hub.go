package monitor

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"QuadPilot/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Hub fans dispatch events out to the store and to every connected websocket
// client, and raises alerts for the transitions an operator must notice. It
// implements the dispatch loop's Emitter.
type Hub struct {
	store  *Store // may be nil
	alerts *Alerter

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub builds a hub. A nil store disables persistence but keeps streaming.
func NewHub(store *Store, alerts *Alerter) *Hub {
	if alerts == nil {
		alerts = NewAlerter()
	}
	return &Hub{
		store:   store,
		alerts:  alerts,
		clients: map[*websocket.Conn]bool{},
	}
}

// Emit records and broadcasts one event. It must stay fast: the dispatch loop
// calls it inline.
func (h *Hub) Emit(ev model.Event) {
	if h.store != nil {
		if err := h.store.AppendEvent(ev); err != nil {
			log.Warn().Err(err).Msg("event store write failed")
		}
	}
	if b, err := json.Marshal(ev); err == nil {
		h.broadcast(b)
	}
	h.checkAlert(ev)
}

// checkAlert turns safety-relevant events into alerts.
func (h *Hub) checkAlert(ev model.Event) {
	var al Alert
	var raised bool
	switch {
	case ev.Kind == model.EventSafeStop:
		al, raised = h.alerts.Raise(LevelWarn, "safe-stop", "protective stop sent: "+ev.Reason)
	case ev.Kind == model.EventState && strings.HasSuffix(ev.Detail, "->degraded"):
		al, raised = h.alerts.Raise(LevelWarn, "degraded", "input source degraded: "+ev.Reason)
	case ev.Kind == model.EventState && ev.Reason == "grace-period-elapsed":
		al, raised = h.alerts.Raise(LevelError, "grace-elapsed", "input lost beyond grace period")
	default:
		return
	}
	if !raised {
		return
	}

	log.Warn().Str("level", al.Level).Str("key", al.Key).Msg(al.Message)
	if h.store != nil {
		if err := h.store.AppendAlert(al); err != nil {
			log.Warn().Err(err).Msg("alert store write failed")
		}
	}
	alertEv := model.NewEvent(model.EventAlert, al.Key, al.Message)
	if b, err := json.Marshal(alertEv); err == nil {
		h.broadcast(b)
	}
}

// handleWS upgrades the request and registers the client for broadcasts.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast sends one message to all connected clients. Slow clients are
// dropped rather than allowed to stall the hub.
func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(time.Second))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			delete(h.clients, c)
			c.Close()
		}
	}
}

// CloseClients drops every websocket client; used on shutdown.
func (h *Hub) CloseClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}
