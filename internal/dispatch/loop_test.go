package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"QuadPilot/internal/model"
)

// step is one scripted NextRawCommand response.
type step struct {
	raw *model.RawCommand
	err error
}

// scriptController replays a fixed script, then reports silence. Silent cycles
// consume the poll timeout so grace-period tests advance wall-clock time the
// way a real source would.
type scriptController struct {
	mu       sync.Mutex
	steps    []step
	i        int
	startErr error
	dead     bool
	stops    int
}

func (c *scriptController) Start() error { return c.startErr }

func (c *scriptController) NextRawCommand(timeout time.Duration) (*model.RawCommand, error) {
	c.mu.Lock()
	if c.i < len(c.steps) {
		s := c.steps[c.i]
		c.i++
		c.mu.Unlock()
		return s.raw, s.err
	}
	c.mu.Unlock()
	time.Sleep(timeout)
	return nil, nil
}

func (c *scriptController) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead
}

func (c *scriptController) Stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
}

func (c *scriptController) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// recordSink captures forwarded commands. failMoves makes every non-stop
// command fail while still accepting the protective stop.
type recordSink struct {
	mu        sync.Mutex
	sent      []model.Command
	failMoves bool
}

func (s *recordSink) Send(c model.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMoves && c.Action != model.ActionStop {
		return errors.New("actuator refused")
	}
	s.sent = append(s.sent, c)
	return nil
}

// split partitions captured commands into safe-stops and ordinary forwards.
func (s *recordSink) split() (stops, moves []model.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.sent {
		if c.Action == model.ActionStop {
			stops = append(stops, c)
		} else {
			moves = append(moves, c)
		}
	}
	return stops, moves
}

type recordEmitter struct {
	mu     sync.Mutex
	events []model.Event
}

func (e *recordEmitter) Emit(ev model.Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *recordEmitter) has(kind, reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range e.events {
		if ev.Kind == kind && ev.Reason == reason {
			return true
		}
	}
	return false
}

func testConfig() model.DispatchConfig {
	return model.DispatchConfig{
		Controller:     "network",
		PollTimeoutMs:  1,
		TimeoutCycles:  3,
		GracePeriodMs:  40,
		MinIntervalMs:  0,
		MaxStalenessMs: 500,
		OutOfRange:     model.OutOfRangeClamp,
		AllowedActions: []string{"none", "stop", "quit"},
	}
}

func move(x float64) *model.RawCommand {
	return &model.RawCommand{AxisX: x, Height: 1.0, Action: model.ActionNone, Timestamp: time.Now()}
}

func action(a model.Action) *model.RawCommand {
	return &model.RawCommand{Height: 1.0, Action: a, Timestamp: time.Now()}
}

func TestAcquisitionFailureIsFatal(t *testing.T) {
	ctrl := &scriptController{startErr: errors.New("port busy")}
	sink := &recordSink{}
	loop := NewLoop(testConfig(), ctrl, sink, nil)

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrAcquisition) {
		t.Fatalf("Run = %v, want ErrAcquisition", err)
	}
	if loop.State() != StateStopped {
		t.Errorf("state = %v, want stopped", loop.State())
	}
	if stops, moves := sink.split(); len(stops) != 0 || len(moves) != 0 {
		t.Errorf("sink received %d stops, %d moves before Active", len(stops), len(moves))
	}
}

func TestSilentSourceDegradesThenStops(t *testing.T) {
	ctrl := &scriptController{} // never produces a command
	sink := &recordSink{}
	ev := &recordEmitter{}
	loop := NewLoop(testConfig(), ctrl, sink, ev)

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrDegradedTimeout) {
		t.Fatalf("Run = %v, want ErrDegradedTimeout", err)
	}
	stops, moves := sink.split()
	if len(stops) != 2 {
		t.Errorf("safe-stops sent = %d, want one on degrade and one on stop", len(stops))
	}
	if len(moves) != 0 {
		t.Errorf("unexpected forwards: %v", moves)
	}
	if ctrl.stopCount() == 0 {
		t.Error("controller was never stopped")
	}
	if !ev.has(model.EventState, "source-silent") {
		t.Error("missing degrade transition event")
	}
	if !ev.has(model.EventState, "grace-period-elapsed") {
		t.Error("missing stop transition event")
	}
}

func TestDeadSourceDegradesImmediately(t *testing.T) {
	ctrl := &scriptController{dead: true}
	sink := &recordSink{}
	ev := &recordEmitter{}
	loop := NewLoop(testConfig(), ctrl, sink, ev)

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrDegradedTimeout) {
		t.Fatalf("Run = %v, want ErrDegradedTimeout", err)
	}
	if !ev.has(model.EventState, "source-dead") {
		t.Error("liveness failure did not trigger the degrade transition")
	}
}

func TestSourceErrorDegrades(t *testing.T) {
	ctrl := &scriptController{steps: []step{{err: errors.New("read failed")}}}
	sink := &recordSink{}
	ev := &recordEmitter{}
	loop := NewLoop(testConfig(), ctrl, sink, ev)

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrDegradedTimeout) {
		t.Fatalf("Run = %v, want ErrDegradedTimeout", err)
	}
	if !ev.has(model.EventState, "source-error") {
		t.Error("source error did not trigger the degrade transition")
	}
}

func TestCommandArrivalRecoversFromDegraded(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriodMs = 500
	ctrl := &scriptController{steps: []step{
		{}, {}, {}, // three empty cycles trip the threshold
		{raw: move(0.4)}, // recovery
		{},
		{raw: action(model.ActionQuit)},
	}}
	sink := &recordSink{}
	ev := &recordEmitter{}
	loop := NewLoop(cfg, ctrl, sink, ev)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v, want clean shutdown after recovery", err)
	}
	if !ev.has(model.EventState, "source-recovered") {
		t.Error("missing recovery transition event")
	}
	stops, moves := sink.split()
	if len(moves) != 1 || moves[0].AxisX != 0.4 {
		t.Errorf("forwards = %v, want the post-recovery command", moves)
	}
	// one safe-stop entering Degraded, one on the quit shutdown
	if len(stops) != 2 {
		t.Errorf("safe-stops sent = %d, want 2", len(stops))
	}
}

func TestDisallowedActionIsRejectedNotForwarded(t *testing.T) {
	ctrl := &scriptController{steps: []step{
		{raw: action(model.ActionSit)},
		{raw: action(model.ActionQuit)},
	}}
	sink := &recordSink{}
	ev := &recordEmitter{}
	loop := NewLoop(testConfig(), ctrl, sink, ev)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if _, moves := sink.split(); len(moves) != 0 {
		t.Errorf("rejected command reached the sink: %v", moves)
	}
	if !ev.has(model.EventReject, "disallowed-action") {
		t.Error("missing rejection event")
	}
}

func TestSinkErrorDegrades(t *testing.T) {
	ctrl := &scriptController{steps: []step{{raw: move(0.5)}}}
	sink := &recordSink{failMoves: true}
	ev := &recordEmitter{}
	loop := NewLoop(testConfig(), ctrl, sink, ev)

	err := loop.Run(context.Background())
	if !errors.Is(err, ErrDegradedTimeout) {
		t.Fatalf("Run = %v, want ErrDegradedTimeout", err)
	}
	if !ev.has(model.EventState, "sink-error") {
		t.Error("sink failure did not trigger the degrade transition")
	}
	if stops, _ := sink.split(); len(stops) != 2 {
		t.Errorf("safe-stops sent = %d, want 2", len(stops))
	}
}

func TestBurstCoalescesToMostRecent(t *testing.T) {
	cfg := testConfig()
	cfg.MinIntervalMs = 30
	cfg.TimeoutCycles = 1000
	cfg.GracePeriodMs = 5000
	ctrl := &scriptController{steps: []step{
		{raw: move(0.1)},
		{raw: move(0.2)},
		{raw: move(0.3)},
	}}
	sink := &recordSink{}
	loop := NewLoop(cfg, ctrl, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}

	_, moves := sink.split()
	if len(moves) != 2 {
		t.Fatalf("forwards = %d, want first immediate and one coalesced", len(moves))
	}
	if moves[0].AxisX != 0.1 {
		t.Errorf("first forward = %v, want 0.1", moves[0].AxisX)
	}
	if moves[1].AxisX != 0.3 {
		t.Errorf("coalesced forward = %v, want the most recent 0.3", moves[1].AxisX)
	}
}

func TestShutdownSignalSendsFinalSafeStop(t *testing.T) {
	cfg := testConfig()
	cfg.TimeoutCycles = 1000
	ctrl := &scriptController{}
	sink := &recordSink{}
	loop := NewLoop(cfg, ctrl, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil on signal shutdown", err)
	}
	if loop.State() != StateStopped {
		t.Errorf("state = %v, want stopped", loop.State())
	}
	if stops, _ := sink.split(); len(stops) != 1 {
		t.Errorf("safe-stops sent = %d, want exactly one", len(stops))
	}
	if ctrl.stopCount() != 1 {
		t.Errorf("controller stops = %d, want 1", ctrl.stopCount())
	}
}

func TestQuitCommandShutsDownCleanly(t *testing.T) {
	ctrl := &scriptController{steps: []step{{raw: action(model.ActionQuit)}}}
	sink := &recordSink{}
	loop := NewLoop(testConfig(), ctrl, sink, nil)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v, want nil on quit", err)
	}
	if stops, moves := sink.split(); len(stops) != 1 || len(moves) != 0 {
		t.Errorf("sink saw %d stops, %d moves, want one final safe-stop only", len(stops), len(moves))
	}
}

func TestLoopCannotRestart(t *testing.T) {
	ctrl := &scriptController{steps: []step{{raw: action(model.ActionQuit)}}}
	loop := NewLoop(testConfig(), ctrl, &recordSink{}, nil)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := loop.Run(context.Background()); err == nil {
		t.Error("second Run succeeded, want an error")
	}
}
