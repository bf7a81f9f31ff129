//go:build linux

package linuxinput

import (
	"fmt"
	"os"
	"sort"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

type DeviceInfo struct {
	Path      string
	Name      string
	IsVirtual bool
	IsPointer bool
}

// SourceSelection is the set of opened devices to watch, with the paths that
// carry the trigger button and the crouch key. A single device may appear in
// both sets.
type SourceSelection struct {
	Devices      []*evdev.InputDevice
	TriggerPaths map[string]struct{}
	CrouchPaths  map[string]struct{}
}

// scannedDevice is one /dev/input entry with the facts the selection logic
// needs, collected in a single open/close pass.
type scannedDevice struct {
	DeviceInfo
	keyCodes map[evdev.EvCode]struct{}
}

func (d scannedDevice) hasKey(code uint16) bool {
	_, ok := d.keyCodes[evdev.EvCode(code)]
	return ok
}

// scanInputDevices opens every enumerable input device just long enough to
// record its identity and EV_KEY capability set.
func scanInputDevices() ([]scannedDevice, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Path < paths[j].Path })

	scanned := make([]scannedDevice, 0, len(paths))
	for _, entry := range paths {
		dev, err := openInputDevice(entry.Path)
		if err != nil {
			continue
		}

		name := entry.Name
		if actual, nameErr := dev.Name(); nameErr == nil && actual != "" {
			name = actual
		}

		keyCodes := make(map[evdev.EvCode]struct{})
		for _, code := range dev.CapableEvents(evdev.EV_KEY) {
			keyCodes[code] = struct{}{}
		}

		scanned = append(scanned, scannedDevice{
			DeviceInfo: DeviceInfo{
				Path:      entry.Path,
				Name:      name,
				IsVirtual: deviceIsVirtual(dev, name),
				IsPointer: deviceIsPointer(dev),
			},
			keyCodes: keyCodes,
		})
		_ = dev.Close()
	}
	return scanned, nil
}

func ListInputDevices() ([]DeviceInfo, error) {
	scanned, err := scanInputDevices()
	if err != nil {
		return nil, err
	}

	infos := make([]DeviceInfo, 0, len(scanned))
	for _, dev := range scanned {
		infos = append(infos, dev.DeviceInfo)
	}
	return infos, nil
}

// OpenSourceSelection opens the devices to watch for the trigger and crouch
// bindings. With an explicit devicePath only that device must expose the
// trigger; without one, all matching physical devices are opened.
func OpenSourceSelection(devicePath string, triggerCode, crouchCode uint16) (*SourceSelection, error) {
	if devicePath != "" {
		return openExplicitSelection(devicePath, triggerCode, crouchCode)
	}

	scanned, err := scanInputDevices()
	if err != nil {
		return nil, err
	}

	triggerPool := pickBindingDevices(scanned, triggerCode)
	if len(triggerPool) == 0 {
		return nil, fmt.Errorf("no input device exposes trigger %s; use --list-devices and then pass --device", FormatCodeName(triggerCode))
	}
	crouchPool := pickBindingDevices(scanned, crouchCode)
	if len(crouchPool) == 0 {
		return nil, fmt.Errorf("no input device exposes crouch key %s; use --list-devices and choose another --crouch-key", FormatCodeName(crouchCode))
	}

	selection := &SourceSelection{
		TriggerPaths: map[string]struct{}{},
		CrouchPaths:  map[string]struct{}{},
	}
	closeAll := func() {
		for _, dev := range selection.Devices {
			_ = dev.Close()
		}
	}

	opened := make(map[string]struct{})
	openPool := func(pool []scannedDevice, bindingPaths map[string]struct{}) {
		for _, cand := range pool {
			if _, ok := opened[cand.Path]; !ok {
				dev, err := openInputDevice(cand.Path)
				if err != nil {
					continue
				}
				opened[cand.Path] = struct{}{}
				selection.Devices = append(selection.Devices, dev)
			}
			bindingPaths[cand.Path] = struct{}{}
		}
	}
	openPool(triggerPool, selection.TriggerPaths)
	openPool(crouchPool, selection.CrouchPaths)

	if len(selection.TriggerPaths) == 0 {
		closeAll()
		return nil, fmt.Errorf("failed to open any trigger-capable input devices")
	}
	if len(selection.CrouchPaths) == 0 {
		closeAll()
		return nil, fmt.Errorf("failed to open any crouch-capable input devices")
	}
	return selection, nil
}

func openExplicitSelection(devicePath string, triggerCode, crouchCode uint16) (*SourceSelection, error) {
	dev, err := openInputDevice(devicePath)
	if err != nil {
		return nil, err
	}
	if !deviceSupportsCode(dev, triggerCode) {
		_ = dev.Close()
		return nil, fmt.Errorf("%s does not expose trigger %s", devicePath, FormatCodeName(triggerCode))
	}

	path := dev.Path()
	selection := &SourceSelection{
		Devices:      []*evdev.InputDevice{dev},
		TriggerPaths: map[string]struct{}{path: {}},
		CrouchPaths:  map[string]struct{}{},
	}
	if deviceSupportsCode(dev, crouchCode) {
		selection.CrouchPaths[path] = struct{}{}
		return selection, nil
	}

	// A mouse passed via --device rarely carries the crouch key; watch it on
	// whichever other devices expose it.
	scanned, err := scanInputDevices()
	if err != nil {
		return selection, nil
	}
	for _, cand := range pickBindingDevices(scanned, crouchCode) {
		if cand.Path == path {
			continue
		}
		crouchDev, err := openInputDevice(cand.Path)
		if err != nil {
			continue
		}
		selection.Devices = append(selection.Devices, crouchDev)
		selection.CrouchPaths[crouchDev.Path()] = struct{}{}
	}
	return selection, nil
}

// pickBindingDevices filters the scan down to devices worth watching for a
// binding: real hardware over virtual nodes, and pointer devices over
// keyboards when the binding is a mouse button.
func pickBindingDevices(scanned []scannedDevice, code uint16) []scannedDevice {
	matches := make([]scannedDevice, 0, len(scanned))
	for _, dev := range scanned {
		if dev.hasKey(code) {
			matches = append(matches, dev)
		}
	}

	physical := make([]scannedDevice, 0, len(matches))
	for _, dev := range matches {
		if !dev.IsVirtual {
			physical = append(physical, dev)
		}
	}
	if len(physical) > 0 {
		matches = physical
	}

	if codeIsMouseButton(code) {
		pointers := make([]scannedDevice, 0, len(matches))
		for _, dev := range matches {
			if dev.IsPointer {
				pointers = append(pointers, dev)
			}
		}
		if len(pointers) > 0 {
			matches = pointers
		}
	}
	return matches
}

func openInputDevice(path string) (*evdev.InputDevice, error) {
	return evdev.OpenWithFlags(path, os.O_RDONLY)
}

func deviceSupportsCode(device *evdev.InputDevice, code uint16) bool {
	needle := evdev.EvCode(code)
	for _, c := range device.CapableEvents(evdev.EV_KEY) {
		if c == needle {
			return true
		}
	}
	return false
}

func deviceIsVirtual(device *evdev.InputDevice, name string) bool {
	id, err := device.InputID()
	if err == nil && id.BusType == uint16(evdev.BUS_VIRTUAL) {
		return true
	}
	lower := strings.ToLower(name)
	for _, token := range []string{"virtual", "uinput", "ydotool", "fallen-recoil"} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func deviceIsPointer(device *evdev.InputDevice) bool {
	var hasRelX, hasRelY bool
	for _, code := range device.CapableEvents(evdev.EV_REL) {
		if code == evdev.REL_X {
			hasRelX = true
		}
		if code == evdev.REL_Y {
			hasRelY = true
		}
	}
	if hasRelX && hasRelY {
		return true
	}
	return len(device.CapableEvents(evdev.EV_ABS)) > 0
}

func codeIsMouseButton(code uint16) bool {
	c := evdev.EvCode(code)
	return c >= evdev.BTN_MOUSE && c <= evdev.BTN_TASK
}
