package compensator

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Service runs the compensation loop: while enabled and the trigger is held,
// it applies the configured offsets once per interval tick. Exactly one
// background worker exists while the service is running; all mutators are
// safe to call from any goroutine and never block on the worker.
type Service struct {
	pointer Pointer
	logger  Logger

	enabled     atomic.Bool
	triggerHeld atomic.Bool
	crouchHeld  atomic.Bool

	// moveFailed latches the first pointer failure so it is reported once
	// per enablement instead of once per tick.
	moveFailed atomic.Bool

	// resetAccum tells the worker to zero its accumulators before the next
	// application. Set on trigger press so every burst starts from a clean
	// remainder.
	resetAccum atomic.Bool

	mu          sync.Mutex // guards offsets, interval, crouchScale
	offsets     Offsets
	interval    time.Duration
	crouchScale float64

	// accumulators carry sub-unit offset remainders between ticks.
	// Worker-owned; no lock needed.
	accumX float64
	accumY float64
	accumZ float64

	wakeCh chan struct{}

	runMu     sync.Mutex
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

func NewService(cfg Config, pointer Pointer, logger Logger) (*Service, error) {
	if pointer == nil {
		return nil, fmt.Errorf("pointer is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if !offsetsFinite(cfg.Offsets) {
		return nil, fmt.Errorf("offsets must be finite, got (%v, %v, %v)", cfg.Offsets.X, cfg.Offsets.Y, cfg.Offsets.Z)
	}
	if err := validateCrouchScale(cfg.CrouchScale); err != nil {
		return nil, err
	}

	s := &Service{
		pointer:     pointer,
		logger:      logger,
		offsets:     cfg.Offsets,
		interval:    clampInterval(cfg.Interval),
		crouchScale: cfg.CrouchScale,
		wakeCh:      make(chan struct{}, 1),
	}
	s.enabled.Store(cfg.StartEnabled)
	return s, nil
}

// Start launches the background worker. No-op if already running.
func (s *Service) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopCh != nil {
		return
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	s.stopCh = stopCh
	s.doneCh = doneCh
	s.moveFailed.Store(false)
	go s.run(stopCh, doneCh)
}

// Stop signals the worker and blocks until it has exited. After Stop returns
// no further pointer-delta application occurs. No-op if already stopped; the
// service can be started again afterwards.
func (s *Service) Stop() {
	s.runMu.Lock()
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.stopCh = nil
	s.doneCh = nil
	s.runMu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

// Close stops the worker and releases the pointer backend. The service is
// unusable afterwards.
func (s *Service) Close() {
	s.Stop()
	s.closeOnce.Do(func() {
		if err := s.pointer.Close(); err != nil {
			s.logger.Warn("Failed to close pointer backend", "err", err)
		}
	})
}

func (s *Service) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
	if enabled {
		s.moveFailed.Store(false)
		if s.triggerHeld.Load() {
			s.signalWake()
		}
	}
}

func (s *Service) IsEnabled() bool {
	return s.enabled.Load()
}

// SetTriggerHeld records the trigger button state. A press wakes the worker
// so the first application happens immediately rather than up to one idle
// poll later, and resets the accumulators so the burst starts clean.
func (s *Service) SetTriggerHeld(held bool) {
	if !held {
		s.triggerHeld.Store(false)
		return
	}
	if !s.triggerHeld.Swap(true) {
		s.resetAccum.Store(true)
		s.signalWake()
	}
}

func (s *Service) SetCrouchHeld(held bool) {
	s.crouchHeld.Store(held)
}

// TriggerActive reports whether compensation ticks are currently being
// applied (enabled and trigger held).
func (s *Service) TriggerActive() bool {
	return s.enabled.Load() && s.triggerHeld.Load()
}

// SetInterval updates the tick cadence, clamping to [MinInterval,
// MaxInterval]. Takes effect from the next tick; an in-flight sleep finishes
// with the old value.
func (s *Service) SetInterval(d time.Duration) {
	d = clampInterval(d)
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

func (s *Service) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetOffsets updates the per-tick delta. All three components are stored
// under one lock so a tick never observes a half-updated triple.
func (s *Service) SetOffsets(off Offsets) error {
	if !offsetsFinite(off) {
		return fmt.Errorf("offsets must be finite, got (%v, %v, %v)", off.X, off.Y, off.Z)
	}
	s.mu.Lock()
	s.offsets = off
	s.mu.Unlock()
	return nil
}

func (s *Service) Offsets() Offsets {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsets
}

func (s *Service) SetCrouchScale(scale float64) error {
	if err := validateCrouchScale(scale); err != nil {
		return err
	}
	s.mu.Lock()
	s.crouchScale = scale
	s.mu.Unlock()
	return nil
}

func (s *Service) CrouchScale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crouchScale
}

func (s *Service) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	s.logger.Debug("Compensation worker started")
	defer s.logger.Debug("Compensation worker stopped")

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if s.enabled.Load() && s.triggerHeld.Load() {
			interval := s.applyOnce()
			if !s.sleep(stopCh, interval) {
				return
			}
			continue
		}

		if !s.waitWithWake(stopCh, idlePollInterval) {
			return
		}
	}
}

// applyOnce performs a single compensation tick and returns the interval to
// sleep before the next one. The offset snapshot is taken under the lock so
// the triple is always consistent.
func (s *Service) applyOnce() time.Duration {
	s.mu.Lock()
	off := s.offsets
	interval := s.interval
	scale := s.crouchScale
	s.mu.Unlock()

	factor := 1.0
	if s.crouchHeld.Load() {
		factor = scale
	}

	if s.resetAccum.CompareAndSwap(true, false) {
		s.accumX, s.accumY, s.accumZ = 0, 0, 0
	}

	s.accumX += off.X * factor
	s.accumY += off.Y * factor
	s.accumZ += off.Z * factor

	// Flush whole units, keep the fractional remainder for later ticks.
	dx := int32(s.accumX)
	dy := int32(s.accumY)
	dz := int32(s.accumZ)
	s.accumX -= float64(dx)
	s.accumY -= float64(dy)
	s.accumZ -= float64(dz)

	if dx != 0 || dy != 0 {
		if err := s.pointer.MoveRelative(dx, dy); err != nil {
			s.reportPointerError("move", err)
		}
	}
	if dz != 0 {
		if err := s.pointer.Scroll(dz); err != nil {
			s.reportPointerError("scroll", err)
		}
	}
	return interval
}

func (s *Service) reportPointerError(op string, err error) {
	if s.moveFailed.CompareAndSwap(false, true) {
		s.logger.Warn("Pointer application failed; compensation continues", "op", op, "err", err)
	}
}

func (s *Service) signalWake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// waitWithWake sleeps for at most d, returning early when the wake channel
// is signalled. Returns false when the stop channel closes.
func (s *Service) waitWithWake(stopCh <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stopCh:
		return false
	case <-s.wakeCh:
		return true
	case <-timer.C:
		return true
	}
}

func (s *Service) sleep(stopCh <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stopCh:
		return false
	case <-timer.C:
		return true
	}
}

func clampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}

func offsetsFinite(off Offsets) bool {
	for _, v := range [...]float64{off.X, off.Y, off.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validateCrouchScale(scale float64) error {
	if math.IsNaN(scale) || scale < 0 || scale > 1 {
		return fmt.Errorf("crouch scale must be within [0, 1], got %v", scale)
	}
	return nil
}
