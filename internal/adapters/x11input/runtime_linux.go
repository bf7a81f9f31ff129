//go:build linux

package x11input

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ezhoncho/fallen-recoil/internal/adapters/linuxinput"
	"github.com/ezhoncho/fallen-recoil/internal/core/compensator"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
)

// statePollInterval is how often the trigger/crouch state is sampled from the
// server. The compensation cadence itself is owned by the service; this only
// bounds press/release detection latency.
const statePollInterval = 5 * time.Millisecond

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

// codeBinding is an evdev code resolved to X11 terms: a core-pointer button
// mask, or the keycodes a keysym maps to. Exactly one of the two is set.
type codeBinding struct {
	code       uint16
	buttonMask uint16
	keycodes   []xproto.Keycode
}

// Runtime drives the compensation service from X11 state polls. Neither the
// trigger button nor the crouch key is grabbed: the game keeps receiving the
// real input, and held state is read from QueryPointer/QueryKeymap instead.
type Runtime struct {
	xu      *xgbutil.XUtil
	conn    *xgb.Conn
	rootWin xproto.Window

	service *compensator.Service
	logger  compensator.Logger

	mu             sync.RWMutex
	triggerBinding codeBinding
	crouchBinding  codeBinding

	injectMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// x11Pointer injects relative motion and wheel clicks through XTEST. Detail 1
// on a fake MotionNotify means the coordinates are relative.
type x11Pointer struct {
	r *Runtime
}

func (p *x11Pointer) MoveRelative(dx, dy int32) error {
	p.r.injectMu.Lock()
	defer p.r.injectMu.Unlock()

	if err := xtest.FakeInputChecked(
		p.r.conn,
		xproto.MotionNotify,
		1,
		xproto.TimeCurrentTime,
		p.r.rootWin,
		clampInt32ToInt16(dx),
		clampInt32ToInt16(dy),
		0,
	).Check(); err != nil {
		return err
	}
	p.r.conn.Sync()
	return nil
}

func (p *x11Pointer) Scroll(steps int32) error {
	if steps == 0 {
		return nil
	}

	// Wheel is buttons 4 (up) and 5 (down) on the core protocol, one
	// press/release pair per step.
	button := byte(4)
	if steps < 0 {
		button = 5
		steps = -steps
	}

	p.r.injectMu.Lock()
	defer p.r.injectMu.Unlock()

	for i := int32(0); i < steps; i++ {
		for _, eventType := range [...]byte{xproto.ButtonPress, xproto.ButtonRelease} {
			if err := xtest.FakeInputChecked(
				p.r.conn,
				eventType,
				button,
				xproto.TimeCurrentTime,
				p.r.rootWin,
				0,
				0,
				0,
			).Check(); err != nil {
				return err
			}
		}
	}
	p.r.conn.Sync()
	return nil
}

func (p *x11Pointer) Close() error {
	return nil
}

func NewRuntime(cfg RuntimeConfig, logger compensator.Logger) (*Runtime, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}
	conn := xu.Conn()
	if conn == nil {
		return nil, fmt.Errorf("failed to open X11 connection")
	}

	if err := xtest.Init(conn); err != nil {
		conn.Close()
		return nil, err
	}
	keybind.Initialize(xu)

	r := &Runtime{
		xu:      xu,
		conn:    conn,
		rootWin: xu.RootWin(),
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	service, err := compensator.NewService(
		compensator.Config{
			Offsets:      cfg.Offsets,
			Interval:     cfg.Interval,
			CrouchScale:  cfg.CrouchScale,
			StartEnabled: cfg.StartEnabled,
		},
		&x11Pointer{r: r},
		logger,
	)
	if err != nil {
		conn.Close()
		return nil, err
	}
	r.service = service

	if err := r.applyBindings(cfg.TriggerCode, cfg.CrouchCode); err != nil {
		conn.Close()
		return nil, err
	}

	return r, nil
}

func (r *Runtime) Start() error {
	r.service.Start()
	go r.pollLoop()
	return nil
}

func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
		r.service.Close()
		r.conn.Close()
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
	r.mu.RLock()
	crouch := r.crouchBinding.code
	r.mu.RUnlock()
	if err := r.applyBindings(code, crouch); err != nil {
		r.logger.Warn("Failed to update trigger binding", "err", err)
	}
}

func (r *Runtime) SetCrouchCode(code uint16) {
	r.mu.RLock()
	trigger := r.triggerBinding.code
	r.mu.RUnlock()
	if err := r.applyBindings(trigger, code); err != nil {
		r.logger.Warn("Failed to update crouch binding", "err", err)
	}
}

// CaptureNextKeyCode on a running poll-based runtime would race the grab the
// standalone capture needs, so it always defers to the package-level variant.
func (r *Runtime) CaptureNextKeyCode(timeout time.Duration) (uint16, error) {
	return 0, fmt.Errorf("live capture unavailable on x11 runtime")
}

// pollLoop samples the server's pointer-button and keymap state and feeds the
// held flags into the service. Both requests are cheap round trips; at 5ms
// they are invisible next to the input the game itself generates.
func (r *Runtime) pollLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()

	var warned bool
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
		}

		r.mu.RLock()
		trigger := r.triggerBinding
		crouch := r.crouchBinding
		r.mu.RUnlock()

		var keymap *xproto.QueryKeymapReply
		if len(trigger.keycodes) > 0 || len(crouch.keycodes) > 0 {
			reply, err := xproto.QueryKeymap(r.conn).Reply()
			if err != nil {
				if r.pollFailed(&warned, err) {
					return
				}
				continue
			}
			keymap = reply
		}

		var pointerMask uint16
		if trigger.buttonMask != 0 || crouch.buttonMask != 0 {
			reply, err := xproto.QueryPointer(r.conn, r.rootWin).Reply()
			if err != nil {
				if r.pollFailed(&warned, err) {
					return
				}
				continue
			}
			pointerMask = reply.Mask
		}

		r.service.SetTriggerHeld(bindingHeld(trigger, keymap, pointerMask))
		r.service.SetCrouchHeld(bindingHeld(crouch, keymap, pointerMask))
		warned = false
	}
}

func (r *Runtime) pollFailed(warned *bool, err error) (stopped bool) {
	select {
	case <-r.stopCh:
		return true
	default:
	}
	if !*warned {
		r.logger.Warn("X11 state poll failed", "err", err)
		*warned = true
	}
	return false
}

// bindingHeld reads a binding's held state from whichever sample carries it:
// the pointer-button mask for core buttons, the keymap bitmap for keys.
func bindingHeld(binding codeBinding, keymap *xproto.QueryKeymapReply, pointerMask uint16) bool {
	if binding.buttonMask != 0 {
		return pointerMask&binding.buttonMask != 0
	}
	return keymapAny(keymap, binding.keycodes)
}

func keymapAny(keymap *xproto.QueryKeymapReply, keycodes []xproto.Keycode) bool {
	if keymap == nil {
		return false
	}
	for _, keycode := range keycodes {
		if keymap.Keys[keycode/8]&(1<<(keycode%8)) != 0 {
			return true
		}
	}
	return false
}

func (r *Runtime) applyBindings(triggerCode, crouchCode uint16) error {
	triggerBinding, err := r.resolveBinding(triggerCode)
	if err != nil {
		return fmt.Errorf("trigger binding: %w", err)
	}
	crouchBinding, err := r.resolveBinding(crouchCode)
	if err != nil {
		return fmt.Errorf("crouch binding: %w", err)
	}

	r.mu.Lock()
	r.triggerBinding = triggerBinding
	r.crouchBinding = crouchBinding
	r.mu.Unlock()
	return nil
}

func (r *Runtime) resolveBinding(code uint16) (codeBinding, error) {
	if mask, ok := codeToXButtonMask(code); ok {
		return codeBinding{code: code, buttonMask: mask}, nil
	}
	if _, isButton := codeToXButton(code); isButton {
		// Buttons past 5 carry no bit in the core pointer mask, so their
		// held state cannot be polled.
		return codeBinding{}, fmt.Errorf(
			"%s cannot be observed over core X11; use the evdev backend for side buttons",
			linuxinput.FormatCodeName(code),
		)
	}

	keyName, ok := linuxCodeToXKeyString(code)
	if !ok {
		return codeBinding{}, fmt.Errorf("unsupported X11 key code %s", linuxinput.FormatCodeName(code))
	}

	keycodes := keybind.StrToKeycodes(r.xu, keyName)
	if len(keycodes) == 0 {
		return codeBinding{}, fmt.Errorf("failed to resolve X11 key %q", keyName)
	}
	sort.Slice(keycodes, func(i, j int) bool { return keycodes[i] < keycodes[j] })
	uniq := keycodes[:0]
	for i, kc := range keycodes {
		if i == 0 || kc != keycodes[i-1] {
			uniq = append(uniq, kc)
		}
	}
	return codeBinding{code: code, keycodes: uniq}, nil
}

func ListInputDevices() ([]DeviceInfo, error) {
	global := DeviceInfo{Path: "x11-global", Name: "X11 Global Input", IsPointer: true}
	return []DeviceInfo{global}, nil
}

// CaptureNextKeyCode briefly grabs the keyboard and pointer and returns the
// first pressed key or button as an evdev code. Used for rebinding only; the
// running poll loop never grabs.
func CaptureNextKeyCode(timeout time.Duration) (uint16, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	xu, err := xgbutil.NewConn()
	if err != nil {
		return 0, err
	}
	conn := xu.Conn()
	keybind.Initialize(xu)

	defer conn.Close()
	defer xproto.UngrabPointer(conn, xproto.TimeCurrentTime)
	defer xproto.UngrabKeyboard(conn, xproto.TimeCurrentTime)

	if err := grabCaptureInputs(conn, xu.RootWin()); err != nil {
		return 0, err
	}
	return waitForCapturePress(xu, time.Now().Add(timeout))
}

func grabCaptureInputs(conn *xgb.Conn, root xproto.Window) error {
	keyboard, err := xproto.GrabKeyboard(conn, false, root, xproto.TimeCurrentTime,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
	if err != nil {
		return err
	}
	if keyboard.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("failed to grab keyboard (status=%d)", keyboard.Status)
	}

	pointer, err := xproto.GrabPointer(conn, false, root,
		xproto.EventMaskButtonPress|xproto.EventMaskButtonRelease,
		xproto.GrabModeAsync, xproto.GrabModeAsync,
		xproto.WindowNone, xproto.CursorNone, xproto.TimeCurrentTime).Reply()
	if err != nil {
		return err
	}
	if pointer.Status != xproto.GrabStatusSuccess {
		return fmt.Errorf("failed to grab pointer (status=%d)", pointer.Status)
	}
	return nil
}

func waitForCapturePress(xu *xgbutil.XUtil, deadline time.Time) (uint16, error) {
	conn := xu.Conn()
	for {
		event, xerr := conn.PollForEvent()
		if xerr != nil {
			return 0, xerr
		}
		if event == nil {
			if time.Now().After(deadline) {
				return 0, fmt.Errorf("timed out waiting for key/button input")
			}
			time.Sleep(2 * time.Millisecond)
			continue
		}

		switch ev := event.(type) {
		case xproto.ButtonPressEvent:
			if code, ok := xButtonToCode(ev.Detail); ok {
				return code, nil
			}
		case xproto.KeyPressEvent:
			if code, ok := xLookupStringToLinuxCode(keybind.LookupString(xu, ev.State, ev.Detail)); ok {
				return code, nil
			}
		}
	}
}

func clampInt32ToInt16(value int32) int16 {
	if value < -32768 {
		return -32768
	}
	if value > 32767 {
		return 32767
	}
	return int16(value)
}
