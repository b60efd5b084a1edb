package monitor

import (
	"sync"
	"time"
)

// Alert levels.
const (
	LevelWarn  = "warn"
	LevelError = "error"
)

// Alert is one operator-facing notification.
type Alert struct {
	Level     string    `json:"level"`
	Key       string    `json:"key"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"ts"`
}

// alertCooldown suppresses repeats of the same alert key; a flapping source
// should not flood the operator.
const alertCooldown = 30 * time.Second

// Alerter raises deduplicated alerts.
type Alerter struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewAlerter builds an empty alerter.
func NewAlerter() *Alerter {
	return &Alerter{last: make(map[string]time.Time)}
}

// Raise builds an alert for key unless one fired within the cooldown window.
func (a *Alerter) Raise(level, key, message string) (Alert, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if t, ok := a.last[key]; ok && now.Sub(t) < alertCooldown {
		return Alert{}, false
	}
	a.last[key] = now
	return Alert{Level: level, Key: key, Message: message, Timestamp: now}, true
}
