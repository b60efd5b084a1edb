package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"QuadPilot/internal/model"
)

// detection is one tracker observation. Coordinates are normalised to the
// frame: cx/cy in [0, 1] with (0.5, 0.5) the centre, area the fraction of the
// frame the target covers.
type detection struct {
	Cx   float64 `json:"cx"`
	Cy   float64 `json:"cy"`
	Area float64 `json:"area"`
	TsMs int64   `json:"ts_ms"`
}

// Vision follows a target reported by an external tracker feed. Horizontal
// offset steers the lateral axis; the target's apparent area drives the
// forward axis toward the configured standoff distance.
type Vision struct {
	cfg model.VisionConfig

	conn *websocket.Conn
	cmds chan model.RawCommand
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu    sync.Mutex
	alive bool
}

// NewVision builds the tracker-follow controller; the feed is dialed by Start.
func NewVision(cfg model.VisionConfig) *Vision {
	return &Vision{
		cfg:  cfg,
		cmds: make(chan model.RawCommand, 16),
		stop: make(chan struct{}),
	}
}

// Start dials the tracker feed, retrying up to the configured attempt count,
// and launches the reader.
func (v *Vision) Start() error {
	var lastErr error
	for attempt := 1; attempt <= v.cfg.DialAttempts; attempt++ {
		conn, _, err := websocket.DefaultDialer.Dial(v.cfg.TrackerURL, nil)
		if err == nil {
			v.conn = conn
			break
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Str("url", v.cfg.TrackerURL).
			Msg("tracker dial failed")
		time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
	}
	if v.conn == nil {
		return fmt.Errorf("dial tracker %s: %w", v.cfg.TrackerURL, lastErr)
	}

	v.mu.Lock()
	v.alive = true
	v.mu.Unlock()

	v.wg.Add(1)
	go v.readDetections()
	log.Info().Str("url", v.cfg.TrackerURL).Msg("vision controller started")
	return nil
}

func (v *Vision) readDetections() {
	defer v.wg.Done()

	for {
		select {
		case <-v.stop:
			return
		default:
		}

		var det detection
		if err := v.conn.ReadJSON(&det); err != nil {
			select {
			case <-v.stop:
			default:
				log.Error().Err(err).Msg("tracker feed lost")
				v.markDead()
			}
			return
		}
		push(v.cmds, v.steer(det))
	}
}

// steer maps one detection onto the command axes. No target (zero area) stops
// in place rather than wandering.
func (v *Vision) steer(det detection) model.RawCommand {
	ts := time.UnixMilli(det.TsMs)
	if det.Area <= 0 {
		return model.RawCommand{Height: 1.0, Action: model.ActionStop, Timestamp: ts}
	}

	y := clampAxis(v.cfg.Gain*(det.Cx-0.5)*2, 1.0)
	x := clampAxis((v.cfg.StandoffArea-det.Area)/v.cfg.StandoffArea, 1.0)
	return model.RawCommand{
		AxisX:     x,
		AxisY:     y,
		Height:    1.0,
		Action:    model.ActionNone,
		Timestamp: ts,
	}
}

// NextRawCommand returns the next steering command, or nil after timeout.
func (v *Vision) NextRawCommand(timeout time.Duration) (*model.RawCommand, error) {
	select {
	case raw := <-v.cmds:
		return &raw, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

// IsAlive reports whether the tracker feed is still delivering.
func (v *Vision) IsAlive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.alive
}

func (v *Vision) markDead() {
	v.mu.Lock()
	v.alive = false
	v.mu.Unlock()
}

// Stop closes the feed and joins the reader. Idempotent.
func (v *Vision) Stop() {
	v.once.Do(func() {
		close(v.stop)
		if v.conn != nil {
			v.conn.Close()
		}
		v.wg.Wait()
		v.markDead()
		log.Info().Msg("vision controller stopped")
	})
}
