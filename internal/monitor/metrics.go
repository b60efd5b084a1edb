// Package monitor is the observability surface: run metrics, the event/alert
// store and the dashboard HTTP server with websocket streaming.
package monitor

import (
	"sync"
	"time"
)

// perfWindowSize bounds the per-operation timing ring.
const perfWindowSize = 100

// Metrics aggregates robot telemetry. It satisfies the robot's Recorder
// interface and is safe for concurrent use.
type Metrics struct {
	mu          sync.Mutex
	started     time.Time
	motorAngles map[int]float64
	movements   int64
	errors      int64
	lastMove    [3]float64
	perf        map[string]*perfRing
}

// perfRing is a fixed-size ring of duration samples.
type perfRing struct {
	samples []time.Duration
	next    int
	full    bool
}

func (r *perfRing) add(d time.Duration) {
	if len(r.samples) < perfWindowSize {
		r.samples = append(r.samples, d)
		return
	}
	r.samples[r.next] = d
	r.next = (r.next + 1) % perfWindowSize
	r.full = true
}

// NewMetrics starts a fresh metrics set; uptime counts from here.
func NewMetrics() *Metrics {
	return &Metrics{
		started:     time.Now(),
		motorAngles: make(map[int]float64),
		perf:        make(map[string]*perfRing),
	}
}

// RecordMotorAngle stores the last commanded angle per motor.
func (m *Metrics) RecordMotorAngle(motor int, degrees float64) {
	m.mu.Lock()
	m.motorAngles[motor] = degrees
	m.mu.Unlock()
}

// RecordMovement counts one momentum change and keeps the latest values.
func (m *Metrics) RecordMovement(axisX, axisY, height float64) {
	m.mu.Lock()
	m.movements++
	m.lastMove = [3]float64{axisX, axisY, height}
	m.mu.Unlock()
}

// RecordPerformance adds one timing sample for the named operation.
func (m *Metrics) RecordPerformance(op string, d time.Duration) {
	m.mu.Lock()
	r, ok := m.perf[op]
	if !ok {
		r = &perfRing{}
		m.perf[op] = r
	}
	r.add(d)
	m.mu.Unlock()
}

// RecordError counts one actuation failure.
func (m *Metrics) RecordError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

// PerfStats summarizes one operation's recent timing window.
type PerfStats struct {
	Count int     `json:"count"`
	AvgMs float64 `json:"avg_ms"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
}

// Snapshot is a point-in-time copy of all metrics, shaped for the JSON API.
type Snapshot struct {
	UptimeS     float64              `json:"uptime_s"`
	MotorAngles map[int]float64      `json:"motor_angles"`
	Movements   int64                `json:"movements"`
	Errors      int64                `json:"errors"`
	LastMove    [3]float64           `json:"last_move"`
	Perf        map[string]PerfStats `json:"perf"`
}

// Snapshot copies the current state.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeS:     time.Since(m.started).Seconds(),
		MotorAngles: make(map[int]float64, len(m.motorAngles)),
		Movements:   m.movements,
		Errors:      m.errors,
		LastMove:    m.lastMove,
		Perf:        make(map[string]PerfStats, len(m.perf)),
	}
	for k, v := range m.motorAngles {
		snap.MotorAngles[k] = v
	}
	for op, r := range m.perf {
		snap.Perf[op] = summarize(r.samples)
	}
	return snap
}

func summarize(samples []time.Duration) PerfStats {
	if len(samples) == 0 {
		return PerfStats{}
	}
	min, max := samples[0], samples[0]
	var sum time.Duration
	for _, d := range samples {
		sum += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	return PerfStats{
		Count: len(samples),
		AvgMs: ms(sum / time.Duration(len(samples))),
		MinMs: ms(min),
		MaxMs: ms(max),
	}
}
