package portinput

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ezhoncho/fallen-recoil/internal/core/compensator"

	"github.com/go-vgo/robotgo"
	hook "github.com/robotn/gohook"
)

type RuntimeConfig struct {
	TriggerCode  uint16
	CrouchCode   uint16
	Offsets      compensator.Offsets
	Interval     time.Duration
	CrouchScale  float64
	StartEnabled bool
}

type DeviceInfo struct {
	Path      string
	Name      string
	IsVirtual bool
	IsPointer bool
}

// Runtime is the portable backend: gohook's global event stream supplies the
// held state and robotgo moves the pointer. Only one Runtime can own the
// hook at a time.
type Runtime struct {
	service *compensator.Service
	logger  compensator.Logger

	triggerCode atomic.Uint32
	crouchCode  atomic.Uint32

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	captureMu sync.Mutex
	captureCh chan uint16
}

type robotgoPointer struct{}

func (p *robotgoPointer) MoveRelative(dx, dy int32) error {
	robotgo.MoveRelative(int(dx), int(dy))
	return nil
}

func (p *robotgoPointer) Scroll(steps int32) error {
	if steps == 0 {
		return nil
	}
	robotgo.Scroll(0, int(steps))
	return nil
}

func (p *robotgoPointer) Close() error {
	return nil
}

func NewRuntime(cfg RuntimeConfig, logger compensator.Logger) (*Runtime, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if !codeObservable(cfg.TriggerCode) {
		return nil, fmt.Errorf("trigger %s is not observable on this backend", FormatCodeName(cfg.TriggerCode))
	}
	if !codeObservable(cfg.CrouchCode) {
		return nil, fmt.Errorf("crouch key %s is not observable on this backend", FormatCodeName(cfg.CrouchCode))
	}

	service, err := compensator.NewService(
		compensator.Config{
			Offsets:      cfg.Offsets,
			Interval:     cfg.Interval,
			CrouchScale:  cfg.CrouchScale,
			StartEnabled: cfg.StartEnabled,
		},
		&robotgoPointer{},
		logger,
	)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		service: service,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	r.triggerCode.Store(uint32(cfg.TriggerCode))
	r.crouchCode.Store(uint32(cfg.CrouchCode))
	return r, nil
}

func (r *Runtime) Start() error {
	r.service.Start()
	events := hook.Start()
	go r.eventLoop(events)
	return nil
}

func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		hook.End()
		<-r.doneCh
		r.service.Close()
	})
}

func (r *Runtime) SetEnabled(enabled bool) {
	r.service.SetEnabled(enabled)
}

func (r *Runtime) IsEnabled() bool {
	return r.service.IsEnabled()
}

func (r *Runtime) TriggerActive() bool {
	return r.service.TriggerActive()
}

func (r *Runtime) SetOffsets(off compensator.Offsets) error {
	return r.service.SetOffsets(off)
}

func (r *Runtime) SetInterval(d time.Duration) {
	r.service.SetInterval(d)
}

func (r *Runtime) SetCrouchScale(scale float64) error {
	return r.service.SetCrouchScale(scale)
}

func (r *Runtime) SetTriggerCode(code uint16) {
	r.triggerCode.Store(uint32(code))
	r.service.SetTriggerHeld(false)
}

func (r *Runtime) SetCrouchCode(code uint16) {
	r.crouchCode.Store(uint32(code))
	r.service.SetCrouchHeld(false)
}

func (r *Runtime) CaptureNextKeyCode(timeout time.Duration) (uint16, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	waitCh := make(chan uint16, 1)

	r.captureMu.Lock()
	if r.captureCh != nil {
		r.captureMu.Unlock()
		return 0, fmt.Errorf("key capture already in progress")
	}
	r.captureCh = waitCh
	r.captureMu.Unlock()

	defer func() {
		r.captureMu.Lock()
		if r.captureCh == waitCh {
			r.captureCh = nil
		}
		r.captureMu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-waitCh:
		return code, nil
	case <-r.stopCh:
		return 0, fmt.Errorf("runtime stopped")
	case <-timer.C:
		return 0, fmt.Errorf("timed out waiting for key/button input")
	}
}

func (r *Runtime) eventLoop(events chan hook.Event) {
	defer close(r.doneCh)

	for {
		select {
		case <-r.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handleEvent(ev)
		}
	}
}

func (r *Runtime) handleEvent(ev hook.Event) {
	switch ev.Kind {
	case hook.MouseDown:
		if code, ok := buttonToCode(ev.Button); ok {
			r.publishCapturedCode(code)
			r.dispatchHeld(code, true)
		}
	case hook.MouseUp:
		if code, ok := buttonToCode(ev.Button); ok {
			r.dispatchHeld(code, false)
		}
	case hook.KeyDown, hook.KeyHold:
		if code, ok := rawcodeToCode(ev.Rawcode); ok {
			if ev.Kind == hook.KeyDown {
				r.publishCapturedCode(code)
			}
			r.dispatchHeld(code, true)
		}
	case hook.KeyUp:
		if code, ok := rawcodeToCode(ev.Rawcode); ok {
			r.dispatchHeld(code, false)
		}
	}
}

func (r *Runtime) dispatchHeld(code uint16, held bool) {
	if uint32(code) == r.triggerCode.Load() {
		r.service.SetTriggerHeld(held)
	}
	if uint32(code) == r.crouchCode.Load() {
		r.service.SetCrouchHeld(held)
	}
}

func (r *Runtime) publishCapturedCode(code uint16) {
	r.captureMu.Lock()
	ch := r.captureCh
	r.captureMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- code:
	default:
	}
}

func ListInputDevices() ([]DeviceInfo, error) {
	return []DeviceInfo{
		{
			Path:      "global",
			Name:      "Global Input (robotgo)",
			IsVirtual: false,
			IsPointer: true,
		},
	}, nil
}

// CaptureNextKeyCode runs a standalone hook session and returns the first
// pressed key or button. Must not be called while a Runtime is started; the
// hook is process-global.
func CaptureNextKeyCode(timeout time.Duration) (uint16, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	events := hook.Start()
	defer hook.End()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return 0, fmt.Errorf("timed out waiting for key/button input")
		case ev, ok := <-events:
			if !ok {
				return 0, fmt.Errorf("input hook closed")
			}
			switch ev.Kind {
			case hook.MouseDown:
				if code, ok := buttonToCode(ev.Button); ok {
					return code, nil
				}
			case hook.KeyDown:
				if code, ok := rawcodeToCode(ev.Rawcode); ok {
					return code, nil
				}
			}
		}
	}
}
