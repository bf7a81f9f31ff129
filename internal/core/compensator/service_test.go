package compensator

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type application struct {
	dx, dy int32
	scroll int32
}

type recordingPointer struct {
	mu      sync.Mutex
	moves   []application
	scrolls []int32
	moveErr error
	closed  bool
}

func (r *recordingPointer) MoveRelative(dx, dy int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.moveErr != nil {
		return r.moveErr
	}
	r.moves = append(r.moves, application{dx: dx, dy: dy})
	return nil
}

func (r *recordingPointer) Scroll(steps int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrolls = append(r.scrolls, steps)
	return nil
}

func (r *recordingPointer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingPointer) moveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.moves)
}

func (r *recordingPointer) snapshotMoves() []application {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]application, len(r.moves))
	copy(out, r.moves)
	return out
}

func (r *recordingPointer) snapshotScrolls() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int32, len(r.scrolls))
	copy(out, r.scrolls)
	return out
}

func (r *recordingPointer) setMoveErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moveErr = err
}

func (r *recordingPointer) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type countingLogger struct {
	mu    sync.Mutex
	warns int
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Info(string, ...any)  {}
func (l *countingLogger) Error(string, ...any) {}

func (l *countingLogger) Warn(string, ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns++
}

func (l *countingLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warns
}

func testConfig() Config {
	return Config{
		Offsets:      Offsets{X: 2, Y: -3},
		Interval:     10 * time.Millisecond,
		CrouchScale:  0.5,
		StartEnabled: true,
	}
}

func newTestService(t *testing.T, cfg Config, pointer *recordingPointer) *Service {
	t.Helper()
	service, err := NewService(cfg, pointer, &countingLogger{})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return service
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	logger := &countingLogger{}

	if _, err := NewService(testConfig(), nil, logger); err == nil {
		t.Fatalf("expected error for nil pointer")
	}
	if _, err := NewService(testConfig(), &recordingPointer{}, nil); err == nil {
		t.Fatalf("expected error for nil logger")
	}

	cfg := testConfig()
	cfg.CrouchScale = 1.5
	if _, err := NewService(cfg, &recordingPointer{}, logger); err == nil {
		t.Fatalf("expected error for crouch scale out of range")
	}
}

func TestSetIntervalClampsOutOfRangeValues(t *testing.T) {
	service := newTestService(t, testConfig(), &recordingPointer{})

	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{in: 0, want: MinInterval},
		{in: -5 * time.Millisecond, want: MinInterval},
		{in: 101 * time.Millisecond, want: MaxInterval},
		{in: 50 * time.Millisecond, want: 50 * time.Millisecond},
	}
	for _, tc := range tests {
		service.SetInterval(tc.in)
		if got := service.Interval(); got != tc.want {
			t.Fatalf("SetInterval(%v): Interval() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetOffsetsRejectsNonFinite(t *testing.T) {
	service := newTestService(t, testConfig(), &recordingPointer{})

	if err := service.SetOffsets(Offsets{X: inf()}); err == nil {
		t.Fatalf("expected error for non-finite offsets")
	}
	if err := service.SetOffsets(Offsets{X: 1, Y: -0.7, Z: 0}); err != nil {
		t.Fatalf("SetOffsets() error = %v", err)
	}
	if got := service.Offsets(); got != (Offsets{X: 1, Y: -0.7, Z: 0}) {
		t.Fatalf("Offsets() = %#v", got)
	}
}

func inf() float64 {
	f := 1.0
	for i := 0; i < 2000; i++ {
		f *= 2
	}
	return f
}

func TestStartIsIdempotent(t *testing.T) {
	pointer := &recordingPointer{}
	service := newTestService(t, testConfig(), pointer)
	defer service.Stop()

	service.Start()
	firstStop := service.stopCh
	service.Start()
	if service.stopCh != firstStop {
		t.Fatalf("second Start() replaced the running worker")
	}
}

func TestStopIsIdempotentAndBlocksFurtherApplications(t *testing.T) {
	pointer := &recordingPointer{}
	service := newTestService(t, testConfig(), pointer)

	service.Start()
	service.SetTriggerHeld(true)
	waitFor(t, time.Second, func() bool { return pointer.moveCount() >= 1 })

	service.Stop()
	service.Stop()

	count := pointer.moveCount()
	time.Sleep(50 * time.Millisecond)
	if got := pointer.moveCount(); got != count {
		t.Fatalf("applications continued after Stop(): %d -> %d", count, got)
	}
}

func TestStopThenStartResumesFromCleanState(t *testing.T) {
	pointer := &recordingPointer{}
	cfg := testConfig()
	cfg.Offsets = Offsets{X: 0.4} // needs three ticks per whole pixel
	service := newTestService(t, cfg, pointer)

	service.Start()
	service.SetTriggerHeld(true)
	time.Sleep(25 * time.Millisecond)
	service.Stop()
	service.SetTriggerHeld(false)

	pointer.mu.Lock()
	pointer.moves = nil
	pointer.mu.Unlock()

	service.Start()
	defer service.Stop()
	service.SetTriggerHeld(true)

	// First whole pixel requires ceil(1/0.4) = 3 ticks; a leaked remainder
	// from the previous burst would flush it after 2.
	waitFor(t, time.Second, func() bool { return pointer.moveCount() >= 1 })
	elapsedTicks := pointer.moveCount()
	if elapsedTicks > 1 {
		t.Fatalf("expected a single flush, got %d", elapsedTicks)
	}
	if first := pointer.snapshotMoves()[0]; first.dx != 1 || first.dy != 0 {
		t.Fatalf("unexpected first application %+v", first)
	}
}

func TestHeldTicksAtConfiguredCadence(t *testing.T) {
	pointer := &recordingPointer{}
	service := newTestService(t, testConfig(), pointer)

	service.Start()
	defer service.Stop()

	service.SetTriggerHeld(true)
	time.Sleep(100 * time.Millisecond)
	service.SetTriggerHeld(false)

	// 100ms / 10ms interval: about 10 applications, generous scheduling slack.
	count := pointer.moveCount()
	if count < 5 || count > 15 {
		t.Fatalf("expected roughly 10 applications over 100ms, got %d", count)
	}
	for _, move := range pointer.snapshotMoves() {
		if move.dx != 2 || move.dy != -3 {
			t.Fatalf("unexpected application %+v", move)
		}
	}

	// No further applications while released.
	time.Sleep(50 * time.Millisecond)
	if got := pointer.moveCount(); got != count {
		t.Fatalf("applications continued after release: %d -> %d", count, got)
	}
}

func TestRapidToggleWithinIntervalAppliesAtMostOnce(t *testing.T) {
	pointer := &recordingPointer{}
	service := newTestService(t, testConfig(), pointer)

	service.Start()
	defer service.Stop()

	service.SetTriggerHeld(true)
	waitFor(t, time.Second, func() bool { return pointer.moveCount() >= 1 })

	// Release and re-press while the worker is still in its in-flight
	// interval sleep; the extra press must not produce a second application.
	service.SetTriggerHeld(false)
	service.SetTriggerHeld(true)
	service.SetTriggerHeld(false)

	time.Sleep(50 * time.Millisecond)
	if got := pointer.moveCount(); got != 1 {
		t.Fatalf("expected at most one application for a rapid press/release pair, got %d", got)
	}
}

func TestDisabledServiceDoesNotApply(t *testing.T) {
	pointer := &recordingPointer{}
	cfg := testConfig()
	cfg.StartEnabled = false
	service := newTestService(t, cfg, pointer)

	service.Start()
	defer service.Stop()

	service.SetTriggerHeld(true)
	time.Sleep(50 * time.Millisecond)
	if got := pointer.moveCount(); got != 0 {
		t.Fatalf("expected no applications while disabled, got %d", got)
	}

	service.SetEnabled(true)
	waitFor(t, time.Second, func() bool { return pointer.moveCount() >= 1 })
}

func TestCrouchScalesApplications(t *testing.T) {
	pointer := &recordingPointer{}
	cfg := testConfig()
	cfg.Offsets = Offsets{Y: -4}
	cfg.CrouchScale = 0.5
	service := newTestService(t, cfg, pointer)

	service.Start()
	defer service.Stop()

	service.SetCrouchHeld(true)
	service.SetTriggerHeld(true)
	waitFor(t, time.Second, func() bool { return pointer.moveCount() >= 3 })
	service.SetTriggerHeld(false)

	for _, move := range pointer.snapshotMoves()[:3] {
		if move.dy != -2 {
			t.Fatalf("expected crouch-scaled dy=-2, got %+v", move)
		}
	}
}

func TestZOffsetEmitsScroll(t *testing.T) {
	pointer := &recordingPointer{}
	cfg := testConfig()
	cfg.Offsets = Offsets{Z: 1}
	service := newTestService(t, cfg, pointer)

	service.Start()
	defer service.Stop()

	service.SetTriggerHeld(true)
	waitFor(t, time.Second, func() bool { return len(pointer.snapshotScrolls()) >= 2 })
	service.SetTriggerHeld(false)

	if got := pointer.moveCount(); got != 0 {
		t.Fatalf("pure Z offsets should not move the pointer, got %d moves", got)
	}
	for _, steps := range pointer.snapshotScrolls()[:2] {
		if steps != 1 {
			t.Fatalf("expected scroll step 1, got %d", steps)
		}
	}
}

func TestFractionalOffsetsAccumulate(t *testing.T) {
	pointer := &recordingPointer{}
	cfg := testConfig()
	cfg.Offsets = Offsets{Y: -0.5}
	cfg.Interval = MinInterval
	service := newTestService(t, cfg, pointer)

	service.Start()
	defer service.Stop()

	service.SetTriggerHeld(true)
	waitFor(t, time.Second, func() bool { return pointer.moveCount() >= 4 })
	service.SetTriggerHeld(false)

	for _, move := range pointer.snapshotMoves()[:4] {
		if move.dy != -1 || move.dx != 0 {
			t.Fatalf("expected whole-pixel flushes of dy=-1, got %+v", move)
		}
	}
}

func TestTriggerPressWakesIdleWorker(t *testing.T) {
	pointer := &recordingPointer{}
	service := newTestService(t, testConfig(), pointer)

	service.Start()
	defer service.Stop()

	// Let the worker settle into an idle wait.
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	service.SetTriggerHeld(true)
	waitFor(t, time.Second, func() bool { return pointer.moveCount() >= 1 })
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first application took %v after press", elapsed)
	}
}

func TestWaitWithWakeReturnsOnSignal(t *testing.T) {
	service := newTestService(t, testConfig(), &recordingPointer{})

	done := make(chan time.Duration, 1)
	go func() {
		start := time.Now()
		if !service.waitWithWake(nil, 5*time.Second) {
			done <- -1
			return
		}
		done <- time.Since(start)
	}()

	time.Sleep(20 * time.Millisecond)
	service.signalWake()

	select {
	case elapsed := <-done:
		if elapsed < 0 {
			t.Fatalf("waitWithWake returned false")
		}
		if elapsed > 150*time.Millisecond {
			t.Fatalf("waitWithWake did not wake promptly: %v", elapsed)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("timeout waiting for wake")
	}
}

func TestPointerFailureReportedOncePerEnablement(t *testing.T) {
	pointer := &recordingPointer{}
	pointer.setMoveErr(errors.New("no display"))
	logger := &countingLogger{}
	service, err := NewService(testConfig(), pointer, logger)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	service.Start()
	defer service.Stop()

	service.SetTriggerHeld(true)
	waitFor(t, time.Second, func() bool { return logger.warnCount() >= 1 })
	time.Sleep(50 * time.Millisecond)
	if got := logger.warnCount(); got != 1 {
		t.Fatalf("expected a single warning per enablement, got %d", got)
	}

	// Re-enabling re-arms the report latch.
	service.SetEnabled(false)
	service.SetEnabled(true)
	waitFor(t, time.Second, func() bool { return logger.warnCount() >= 2 })
}

func TestCloseStopsWorkerAndClosesPointer(t *testing.T) {
	pointer := &recordingPointer{}
	service := newTestService(t, testConfig(), pointer)

	service.Start()
	service.Close()
	if !pointer.isClosed() {
		t.Fatalf("expected pointer backend to be closed")
	}

	service.Close()
}
