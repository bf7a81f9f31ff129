//go:build windows

package wininput

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/ezhoncho/fallen-recoil/internal/core/compensator"
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit = 0x0012

	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105

	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C

	xButton1 = 0x0001
	xButton2 = 0x0002

	llmhfInjected        = 0x00000001
	llkhfInjected        = 0x00000010
	llkhfLowerILInjected = 0x00000002

	inputMouse       = 0
	mouseeventfMove  = 0x0001
	mouseeventfWheel = 0x0800

	// wheelDelta is one detent of the wheel in MOUSEEVENTF_WHEEL units.
	wheelDelta = 120

	globalSourceIdentity = "windows-global"
)

var (
	user32   = syscall.NewLazyDLL("user32.dll")
	kernel32 = syscall.NewLazyDLL("kernel32.dll")

	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessageW    = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
	procSendInput           = user32.NewProc("SendInput")
	procGetAsyncKeyState    = user32.NewProc("GetAsyncKeyState")
	procGetCurrentThreadID  = kernel32.NewProc("GetCurrentThreadId")

	mouseHookCallback = syscall.NewCallback(mouseHookProc)
	keyHookCallback   = syscall.NewCallback(keyHookProc)

	activeRuntime atomic.Pointer[Runtime]
)

type winPoint struct {
	X int32
	Y int32
}

// lowLevelMouseEvent mirrors MSLLHOOKSTRUCT.
type lowLevelMouseEvent struct {
	Pt          winPoint
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// lowLevelKeyEvent mirrors KBDLLHOOKSTRUCT.
type lowLevelKeyEvent struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type winMsg struct {
	Hwnd     uintptr
	Message  uint32
	WParam   uintptr
	LParam   uintptr
	Time     uint32
	Pt       winPoint
	LPrivate uint32
}

type mouseInputData struct {
	Dx          int32
	Dy          int32
	MouseData   uint32
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type winInput struct {
	Type uint32
	Mi   mouseInputData
}

// windowsPointer injects relative motion and wheel clicks through SendInput.
// The hooks ignore anything flagged injected, so the runtime's own output
// never feeds back into the held state.
type windowsPointer struct{}

func (p *windowsPointer) MoveRelative(dx, dy int32) error {
	return sendInput(winInput{
		Type: inputMouse,
		Mi:   mouseInputData{Dx: dx, Dy: dy, DwFlags: mouseeventfMove},
	})
}

func (p *windowsPointer) Scroll(steps int32) error {
	if steps == 0 {
		return nil
	}
	return sendInput(winInput{
		Type: inputMouse,
		Mi:   mouseInputData{MouseData: uint32(steps * wheelDelta), DwFlags: mouseeventfWheel},
	})
}

func (p *windowsPointer) Close() error {
	return nil
}

func sendInput(in winInput) error {
	sent, _, callErr := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if sent == 1 {
		return nil
	}
	if callErr != nil && callErr != syscall.Errno(0) {
		return callErr
	}
	return fmt.Errorf("SendInput dropped the event")
}

// Runtime drives the compensation service from low-level mouse and keyboard
// hooks. Only one Runtime can hold the hooks at a time.
type Runtime struct {
	service *compensator.Service
	logger  compensator.Logger

	triggerCode atomic.Uint32
	crouchCode  atomic.Uint32

	stopOnce sync.Once
	stopCh   chan struct{}

	threadID atomic.Uint32
	loopMu   sync.Mutex
	loopDone chan struct{}

	captureMu sync.Mutex
	captureCh chan uint16
}

func NewRuntime(cfg RuntimeConfig, logger compensator.Logger) (*Runtime, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	service, err := compensator.NewService(
		compensator.Config{
			Offsets:      cfg.Offsets,
			Interval:     cfg.Interval,
			CrouchScale:  cfg.CrouchScale,
			StartEnabled: cfg.StartEnabled,
		},
		&windowsPointer{},
		logger,
	)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		service:  service,
		logger:   logger,
		stopCh:   make(chan struct{}),
		loopDone: closedSignalChan(),
	}
	r.triggerCode.Store(uint32(cfg.TriggerCode))
	r.crouchCode.Store(uint32(cfg.CrouchCode))
	return r, nil
}

func (r *Runtime) Start() error {
	if !activeRuntime.CompareAndSwap(nil, r) {
		return fmt.Errorf("windows runtime is already active")
	}

	done := make(chan struct{})
	r.loopMu.Lock()
	r.loopDone = done
	r.loopMu.Unlock()

	r.service.Start()

	ready := make(chan error, 1)
	go r.hookLoop(ready)
	if err := <-ready; err != nil {
		r.Stop()
		return err
	}
	return nil
}

func (r *Runtime) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if threadID := r.threadID.Load(); threadID != 0 {
			_, _, _ = procPostThreadMessageW.Call(uintptr(threadID), uintptr(wmQuit), 0, 0)
		}

		r.loopMu.Lock()
		done := r.loopDone
		r.loopMu.Unlock()
		if done != nil {
			<-done
		}

		r.service.Close()
		activeRuntime.CompareAndSwap(r, nil)
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

	waitCh, err := r.armCapture()
	if err != nil {
		return 0, err
	}
	defer r.disarmCapture(waitCh)

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

func (r *Runtime) armCapture() (chan uint16, error) {
	r.captureMu.Lock()
	defer r.captureMu.Unlock()
	if r.captureCh != nil {
		return nil, fmt.Errorf("key capture already in progress")
	}
	ch := make(chan uint16, 1)
	r.captureCh = ch
	return ch, nil
}

func (r *Runtime) disarmCapture(ch chan uint16) {
	r.captureMu.Lock()
	if r.captureCh == ch {
		r.captureCh = nil
	}
	r.captureMu.Unlock()
}

func installHook(hookID int, callback uintptr) (uintptr, error) {
	hook, _, err := procSetWindowsHookExW.Call(uintptr(hookID), callback, 0, 0)
	if hook == 0 {
		return 0, err
	}
	return hook, nil
}

func (r *Runtime) hookLoop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		r.loopMu.Lock()
		done := r.loopDone
		r.loopMu.Unlock()
		if done != nil {
			close(done)
		}
	}()
	defer activeRuntime.CompareAndSwap(r, nil)

	threadID, _, _ := procGetCurrentThreadID.Call()
	r.threadID.Store(uint32(threadID))

	mouseHook, err := installHook(whMouseLL, mouseHookCallback)
	if err != nil {
		ready <- fmt.Errorf("failed to install mouse hook: %w", err)
		return
	}
	defer procUnhookWindowsHookEx.Call(mouseHook)

	keyHook, err := installHook(whKeyboardLL, keyHookCallback)
	if err != nil {
		ready <- fmt.Errorf("failed to install keyboard hook: %w", err)
		return
	}
	defer procUnhookWindowsHookEx.Call(keyHook)

	ready <- nil

	var msg winMsg
	for {
		ret, _, callErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		switch int32(ret) {
		case -1:
			r.logger.Warn("Windows message loop failed", "err", callErr)
			return
		case 0:
			return
		default:
			_, _, _ = procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			_, _, _ = procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
		}
	}
}

func mouseHookProc(code int, wParam uintptr, lParam uintptr) uintptr {
	if code >= 0 {
		if r := activeRuntime.Load(); r != nil {
			r.handleMouseEvent(wParam, lParam)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(code), wParam, lParam)
	return ret
}

func keyHookProc(code int, wParam uintptr, lParam uintptr) uintptr {
	if code >= 0 {
		if r := activeRuntime.Load(); r != nil {
			r.handleKeyEvent(wParam, lParam)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(code), wParam, lParam)
	return ret
}

// mouseButtonMessages maps the fixed-button hook messages. X buttons carry
// the button identity in MouseData instead and are decoded separately.
var mouseButtonMessages = map[uint32]struct {
	code uint16
	held bool
}{
	wmLButtonDown: {CodeBTNLeft, true},
	wmLButtonUp:   {CodeBTNLeft, false},
	wmRButtonDown: {CodeBTNRight, true},
	wmRButtonUp:   {CodeBTNRight, false},
	wmMButtonDown: {CodeBTNMiddle, true},
	wmMButtonUp:   {CodeBTNMiddle, false},
}

func (r *Runtime) handleMouseEvent(wParam uintptr, lParam uintptr) {
	if lParam == 0 {
		return
	}

	event := (*lowLevelMouseEvent)(unsafe.Pointer(lParam))
	if event.Flags&llmhfInjected != 0 {
		return
	}

	var (
		code uint16
		held bool
	)
	switch msg := uint32(wParam); msg {
	case wmXButtonDown, wmXButtonUp:
		code = xButtonCode(event.MouseData)
		held = msg == wmXButtonDown
	default:
		button, ok := mouseButtonMessages[msg]
		if !ok {
			return
		}
		code, held = button.code, button.held
	}
	if code == 0 {
		return
	}

	if held {
		r.publishCapturedCode(code)
	}
	r.dispatchHeld(code, held)
}

func (r *Runtime) handleKeyEvent(wParam uintptr, lParam uintptr) {
	if lParam == 0 {
		return
	}

	event := (*lowLevelKeyEvent)(unsafe.Pointer(lParam))
	if event.Flags&(llkhfInjected|llkhfLowerILInjected) != 0 {
		return
	}

	code, ok := CodeFromVK(event.VkCode)
	if !ok {
		return
	}

	var held bool
	switch uint32(wParam) {
	case wmKeyDown, wmSysKeyDown:
		held = true
	case wmKeyUp, wmSysKeyUp:
		held = false
	default:
		return
	}

	if held {
		r.publishCapturedCode(code)
	}
	r.dispatchHeld(code, held)
}

func (r *Runtime) dispatchHeld(code uint16, held bool) {
	if uint32(code) == r.triggerCode.Load() {
		r.service.SetTriggerHeld(held)
	}
	if uint32(code) == r.crouchCode.Load() {
		r.service.SetCrouchHeld(held)
	}
}

func xButtonCode(mouseData uint32) uint16 {
	switch uint16(mouseData >> 16) {
	case xButton1:
		return CodeBTNSide
	case xButton2:
		return CodeBTNExtra
	default:
		return 0
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
	global := DeviceInfo{Path: globalSourceIdentity, Name: "Windows Global Input", IsPointer: true}
	return []DeviceInfo{global}, nil
}

// CaptureNextKeyCode polls the async key state for the first fresh press
// among the known codes. It is the capture path when no Runtime holds the
// hooks.
func CaptureNextKeyCode(timeout time.Duration) (uint16, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	codes := CaptureCandidateCodes()
	if len(codes) == 0 {
		return 0, fmt.Errorf("no capturable key/button codes configured")
	}

	wasDown := make([]bool, len(codes))
	for i, code := range codes {
		wasDown[i] = isCodeDown(code)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		for i, code := range codes {
			down := isCodeDown(code)
			if down && !wasDown[i] {
				return code, nil
			}
			wasDown[i] = down
		}
		<-ticker.C
	}
	return 0, fmt.Errorf("timed out waiting for key/button input")
}

func isCodeDown(code uint16) bool {
	vk, ok := CodeToVK(code)
	if !ok {
		return false
	}
	state, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return uint16(state)&0x8000 != 0
}

func closedSignalChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
