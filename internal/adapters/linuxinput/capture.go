//go:build linux

package linuxinput

import (
	"fmt"
	"time"

	evdev "github.com/holoplot/go-evdev"
)

// CaptureNextKeyCode blocks until a key or button is pressed on one of the
// watched devices and returns its EV_KEY code. With an empty devicePath every
// physical key-capable device is watched; virtual nodes are excluded so the
// injected output can never be captured as a binding.
func CaptureNextKeyCode(devicePath string, timeout time.Duration) (uint16, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	devices, err := openWatchSet(devicePath)
	if err != nil {
		return 0, err
	}
	defer func() {
		for _, dev := range devices {
			_ = dev.Close()
		}
	}()

	quit := make(chan struct{})
	defer close(quit)

	presses := make(chan uint16, 1)
	for _, dev := range devices {
		go watchPresses(dev, quit, presses)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-presses:
		return code, nil
	case <-timer.C:
		return 0, fmt.Errorf("timed out waiting for key/button input")
	}
}

func watchPresses(dev *evdev.InputDevice, quit <-chan struct{}, presses chan<- uint16) {
	for {
		events, err := dev.ReadSlice(8)
		if err != nil {
			switch {
			case isDeviceClosedError(err):
				return
			case isWouldBlockError(err):
				if !waitOrQuit(quit, 5*time.Millisecond) {
					return
				}
			default:
				if !waitOrQuit(quit, 50*time.Millisecond) {
					return
				}
			}
			continue
		}

		for _, event := range events {
			if event.Type == evdev.EV_KEY && event.Value == 1 {
				select {
				case presses <- uint16(event.Code):
				default:
				}
				return
			}
		}
	}
}

func waitOrQuit(quit <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-quit:
		return false
	case <-timer.C:
		return true
	}
}

func openWatchSet(devicePath string) ([]*evdev.InputDevice, error) {
	if devicePath != "" {
		dev, err := openInputDevice(devicePath)
		if err != nil {
			return nil, err
		}
		if len(dev.CapableEvents(evdev.EV_KEY)) == 0 {
			_ = dev.Close()
			return nil, fmt.Errorf("%s does not expose key/button events", devicePath)
		}
		if err := dev.NonBlock(); err != nil {
			_ = dev.Close()
			return nil, fmt.Errorf("failed to set nonblocking mode for %s: %w", devicePath, err)
		}
		return []*evdev.InputDevice{dev}, nil
	}

	scanned, err := scanInputDevices()
	if err != nil {
		return nil, err
	}

	var devices []*evdev.InputDevice
	for _, cand := range scanned {
		if cand.IsVirtual || len(cand.keyCodes) == 0 {
			continue
		}
		dev, err := openInputDevice(cand.Path)
		if err != nil {
			continue
		}
		if err := dev.NonBlock(); err != nil {
			_ = dev.Close()
			continue
		}
		devices = append(devices, dev)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no readable input devices with key/button events found")
	}
	return devices, nil
}
