package portinput

import (
	"fmt"
	"strconv"
	"strings"
)

// The portable backend keeps the evdev-style names and code values the other
// adapters use, paired with the macOS virtual keycodes gohook reports in
// Event.Rawcode. Mouse buttons map to gohook's 1/2/3 numbering instead.
const (
	CodeBTNLeft   uint16 = 0x110
	CodeBTNRight  uint16 = 0x111
	CodeBTNMiddle uint16 = 0x112

	CodeKeyLeftCtrl uint16 = 29
)

type keyDef struct {
	name string
	code uint16
	vk   uint16
}

var keyDefs = []keyDef{
	{name: "KEY_ESC", code: 1, vk: 0x35},
	{name: "KEY_TAB", code: 15, vk: 0x30},
	{name: "KEY_LEFTCTRL", code: CodeKeyLeftCtrl, vk: 0x3B},
	{name: "KEY_LEFTSHIFT", code: 42, vk: 0x38},
	{name: "KEY_RIGHTSHIFT", code: 54, vk: 0x3C},
	{name: "KEY_LEFTALT", code: 56, vk: 0x3A},
	{name: "KEY_SPACE", code: 57, vk: 0x31},
	{name: "KEY_CAPSLOCK", code: 58, vk: 0x39},
	{name: "KEY_RIGHTCTRL", code: 97, vk: 0x3E},
	{name: "KEY_RIGHTALT", code: 100, vk: 0x3D},
	{name: "KEY_LEFTMETA", code: 125, vk: 0x37},

	{name: "KEY_A", code: 30, vk: 0x00},
	{name: "KEY_S", code: 31, vk: 0x01},
	{name: "KEY_D", code: 32, vk: 0x02},
	{name: "KEY_F", code: 33, vk: 0x03},
	{name: "KEY_H", code: 35, vk: 0x04},
	{name: "KEY_G", code: 34, vk: 0x05},
	{name: "KEY_Z", code: 44, vk: 0x06},
	{name: "KEY_X", code: 45, vk: 0x07},
	{name: "KEY_C", code: 46, vk: 0x08},
	{name: "KEY_V", code: 47, vk: 0x09},
	{name: "KEY_B", code: 48, vk: 0x0B},
	{name: "KEY_Q", code: 16, vk: 0x0C},
	{name: "KEY_W", code: 17, vk: 0x0D},
	{name: "KEY_E", code: 18, vk: 0x0E},
	{name: "KEY_R", code: 19, vk: 0x0F},
	{name: "KEY_Y", code: 21, vk: 0x10},
	{name: "KEY_T", code: 20, vk: 0x11},
	{name: "KEY_O", code: 24, vk: 0x1F},
	{name: "KEY_U", code: 22, vk: 0x20},
	{name: "KEY_I", code: 23, vk: 0x22},
	{name: "KEY_P", code: 25, vk: 0x23},
	{name: "KEY_L", code: 38, vk: 0x25},
	{name: "KEY_J", code: 36, vk: 0x26},
	{name: "KEY_K", code: 37, vk: 0x28},
	{name: "KEY_N", code: 49, vk: 0x2D},
	{name: "KEY_M", code: 50, vk: 0x2E},

	{name: "KEY_1", code: 2, vk: 0x12},
	{name: "KEY_2", code: 3, vk: 0x13},
	{name: "KEY_3", code: 4, vk: 0x14},
	{name: "KEY_4", code: 5, vk: 0x15},
	{name: "KEY_5", code: 6, vk: 0x17},
	{name: "KEY_6", code: 7, vk: 0x16},
	{name: "KEY_7", code: 8, vk: 0x1A},
	{name: "KEY_8", code: 9, vk: 0x1C},
	{name: "KEY_9", code: 10, vk: 0x19},
	{name: "KEY_0", code: 11, vk: 0x1D},

	{name: "KEY_F1", code: 59, vk: 0x7A},
	{name: "KEY_F2", code: 60, vk: 0x78},
	{name: "KEY_F3", code: 61, vk: 0x63},
	{name: "KEY_F4", code: 62, vk: 0x76},
	{name: "KEY_F5", code: 63, vk: 0x60},
	{name: "KEY_F6", code: 64, vk: 0x61},
	{name: "KEY_F7", code: 65, vk: 0x62},
	{name: "KEY_F8", code: 66, vk: 0x64},
	{name: "KEY_F9", code: 67, vk: 0x65},
	{name: "KEY_F10", code: 68, vk: 0x6D},
	{name: "KEY_F11", code: 87, vk: 0x67},
	{name: "KEY_F12", code: 88, vk: 0x6F},
}

var mouseDefs = []struct {
	name   string
	code   uint16
	button uint16
}{
	{name: "BTN_LEFT", code: CodeBTNLeft, button: 1},
	{name: "BTN_MIDDLE", code: CodeBTNMiddle, button: 2},
	{name: "BTN_RIGHT", code: CodeBTNRight, button: 3},
}

var (
	nameToCode = func() map[string]uint16 {
		m := make(map[string]uint16, len(keyDefs)+len(mouseDefs))
		for _, def := range keyDefs {
			m[def.name] = def.code
		}
		for _, def := range mouseDefs {
			m[def.name] = def.code
		}
		return m
	}()

	codeToName = func() map[uint16]string {
		m := make(map[uint16]string, len(keyDefs)+len(mouseDefs))
		for _, def := range keyDefs {
			m[def.code] = def.name
		}
		for _, def := range mouseDefs {
			m[def.code] = def.name
		}
		return m
	}()

	vkToCode = func() map[uint16]uint16 {
		m := make(map[uint16]uint16, len(keyDefs))
		for _, def := range keyDefs {
			m[def.vk] = def.code
		}
		return m
	}()

	codeToVK = func() map[uint16]uint16 {
		m := make(map[uint16]uint16, len(keyDefs))
		for _, def := range keyDefs {
			m[def.code] = def.vk
		}
		return m
	}()

	buttonToCodeMap = func() map[uint16]uint16 {
		m := make(map[uint16]uint16, len(mouseDefs))
		for _, def := range mouseDefs {
			m[def.button] = def.code
		}
		return m
	}()

	codeToButtonMap = func() map[uint16]uint16 {
		m := make(map[uint16]uint16, len(mouseDefs))
		for _, def := range mouseDefs {
			m[def.code] = def.button
		}
		return m
	}()
)

func ParseCode(value string) (uint16, error) {
	raw := strings.ToUpper(strings.TrimSpace(value))
	if raw == "" {
		return 0, fmt.Errorf("binding code is empty")
	}
	if code, ok := nameToCode[raw]; ok {
		return code, nil
	}

	parsed, err := strconv.ParseInt(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown binding %q: use names like KEY_LEFTCTRL/BTN_LEFT or numeric code", value)
	}
	if parsed < 0 || parsed > 0xFFFF {
		return 0, fmt.Errorf("binding code out of range: %d", parsed)
	}
	return uint16(parsed), nil
}

func FormatCodeName(code uint16) string {
	if name, ok := codeToName[code]; ok {
		return name
	}
	return strconv.Itoa(int(code))
}

func codeToButton(code uint16) (uint16, bool) {
	button, ok := codeToButtonMap[code]
	return button, ok
}

func buttonToCode(button uint16) (uint16, bool) {
	code, ok := buttonToCodeMap[button]
	return code, ok
}

func rawcodeToCode(vk uint16) (uint16, bool) {
	code, ok := vkToCode[vk]
	return code, ok
}

func codeObservable(code uint16) bool {
	if _, ok := codeToButtonMap[code]; ok {
		return true
	}
	_, ok := codeToVK[code]
	return ok
}
