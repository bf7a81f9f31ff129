//go:build linux

package linuxinput

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ezhoncho/fallen-recoil/internal/core/compensator"

	evdev "github.com/holoplot/go-evdev"
)

type RuntimeConfig struct {
	TriggerCode  uint16
	CrouchCode   uint16
	Offsets      compensator.Offsets
	Interval     time.Duration
	CrouchScale  float64
	StartEnabled bool
}

// Runtime wires evdev source devices to the compensation service: reader
// goroutines track the trigger button and crouch key, and a uinput virtual
// pointer carries the injected motion.
type Runtime struct {
	sourceDevices []*evdev.InputDevice
	triggerPaths  map[string]struct{}
	crouchPaths   map[string]struct{}
	triggerCode   atomic.Uint32
	crouchCode    atomic.Uint32
	service       *compensator.Service
	logger        compensator.Logger

	stopCh    chan struct{}
	stopOnce  sync.Once
	readersWG sync.WaitGroup

	captureMu sync.Mutex
	captureCh chan uint16
}

// uinputPointer is the EV_REL injection device. Writes are batched per call
// and flushed with a single SYN_REPORT so compositors see one atomic motion.
type uinputPointer struct {
	dev *evdev.InputDevice
}

func (p *uinputPointer) MoveRelative(dx, dy int32) error {
	events := make([]evdev.InputEvent, 0, 3)
	if dx != 0 {
		events = append(events, evdev.InputEvent{Type: evdev.EV_REL, Code: evdev.REL_X, Value: dx})
	}
	if dy != 0 {
		events = append(events, evdev.InputEvent{Type: evdev.EV_REL, Code: evdev.REL_Y, Value: dy})
	}
	if len(events) == 0 {
		return nil
	}
	events = append(events, evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT, Value: 0})
	return p.writeAll(events)
}

func (p *uinputPointer) Scroll(steps int32) error {
	if steps == 0 {
		return nil
	}
	return p.writeAll([]evdev.InputEvent{
		{Type: evdev.EV_REL, Code: evdev.REL_WHEEL, Value: steps},
		{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT, Value: 0},
	})
}

func (p *uinputPointer) writeAll(events []evdev.InputEvent) error {
	for i := range events {
		if err := p.dev.WriteOne(&events[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *uinputPointer) Close() error {
	if p.dev == nil {
		return nil
	}
	return p.dev.Close()
}

func NewRuntime(selection *SourceSelection, cfg RuntimeConfig, logger compensator.Logger) (*Runtime, error) {
	if selection == nil {
		return nil, fmt.Errorf("source selection is nil")
	}
	if len(selection.Devices) == 0 {
		return nil, fmt.Errorf("source selection has no devices")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	id := evdev.InputID{
		BusType: uint16(evdev.BUS_VIRTUAL),
		Vendor:  0x1,
		Product: 0x1,
		Version: 1,
	}
	if sourceID, err := selection.Devices[0].InputID(); err == nil {
		id = sourceID
		id.BusType = uint16(evdev.BUS_VIRTUAL)
	}

	// BTN_LEFT in the capability set makes the kernel classify the virtual
	// device as a pointer, which X and Wayland require before honoring its
	// relative motion.
	pointerDev, err := evdev.CreateDevice("fallen-recoil", id, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_LEFT},
		evdev.EV_REL: {evdev.REL_X, evdev.REL_Y, evdev.REL_WHEEL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create uinput pointer: %w", err)
	}
	pointer := &uinputPointer{dev: pointerDev}

	service, err := compensator.NewService(
		compensator.Config{
			Offsets:      cfg.Offsets,
			Interval:     cfg.Interval,
			CrouchScale:  cfg.CrouchScale,
			StartEnabled: cfg.StartEnabled,
		},
		pointer,
		logger,
	)
	if err != nil {
		_ = pointer.Close()
		return nil, err
	}

	r := &Runtime{
		sourceDevices: selection.Devices,
		triggerPaths:  selection.TriggerPaths,
		crouchPaths:   selection.CrouchPaths,
		service:       service,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
	r.triggerCode.Store(uint32(cfg.TriggerCode))
	r.crouchCode.Store(uint32(cfg.CrouchCode))
	return r, nil
}

func (r *Runtime) Start() error {
	for _, dev := range r.sourceDevices {
		if err := dev.NonBlock(); err != nil {
			return fmt.Errorf("failed to set nonblocking mode for %s: %w", dev.Path(), err)
		}
	}

	r.service.Start()
	for _, dev := range r.sourceDevices {
		r.readersWG.Add(1)
		go r.readLoop(dev)
	}
	return nil
}

func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		for _, dev := range r.sourceDevices {
			_ = dev.Close()
		}
		r.readersWG.Wait()
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

// SetTriggerCode rebinds the trigger to another code on the already-watched
// devices. Picking a code only a different device carries needs a runtime
// restart with a fresh source selection.
func (r *Runtime) SetTriggerCode(code uint16) {
	r.triggerCode.Store(uint32(code))
	r.service.SetTriggerHeld(false)
}

func (r *Runtime) SetCrouchCode(code uint16) {
	r.crouchCode.Store(uint32(code))
	r.service.SetCrouchHeld(false)
}

// CaptureNextKeyCode returns the next pressed code seen on the watched
// devices. Capture from devices outside the selection is handled by the
// package-level variant.
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

func (r *Runtime) readLoop(dev *evdev.InputDevice) {
	defer r.readersWG.Done()

	path := dev.Path()
	_, watchTrigger := r.triggerPaths[path]
	_, watchCrouch := r.crouchPaths[path]

	for {
		events, err := dev.ReadSlice(64)
		if err != nil {
			if r.stopped() || isDeviceClosedError(err) {
				return
			}
			if isWouldBlockError(err) {
				if !r.sleepWithStop(10 * time.Millisecond) {
					return
				}
				continue
			}
			r.logger.Warn("Read failed", "path", path, "err", err)
			if !r.sleepWithStop(100 * time.Millisecond) {
				return
			}
			continue
		}

		for _, event := range events {
			if event.Type != evdev.EV_KEY {
				continue
			}
			// Value 2 is key autorepeat: still held.
			held := event.Value != 0
			code := uint16(event.Code)
			if event.Value == 1 {
				r.publishCapturedCode(code)
			}
			if watchTrigger && uint32(code) == r.triggerCode.Load() {
				r.service.SetTriggerHeld(held)
			}
			if watchCrouch && uint32(code) == r.crouchCode.Load() {
				r.service.SetCrouchHeld(held)
			}
		}
	}
}

func (r *Runtime) stopped() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

func (r *Runtime) sleepWithStop(duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-r.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

func isDeviceClosedError(err error) bool {
	return errors.Is(err, syscall.EBADF) || errors.Is(err, syscall.ENODEV)
}

func isWouldBlockError(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}
