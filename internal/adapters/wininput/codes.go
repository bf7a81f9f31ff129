package wininput

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Evdev-style codes are the portable binding currency across the adapters;
// this table carries the subset a trigger or crouch binding can plausibly
// use (mouse buttons, modifiers, letters, digits, F-keys and a few specials)
// together with their virtual-key values. Anything else still round-trips as
// a numeric code, it just cannot be observed by the hooks.
const (
	CodeBTNLeft   uint16 = 0x110
	CodeBTNRight  uint16 = 0x111
	CodeBTNMiddle uint16 = 0x112
	CodeBTNSide   uint16 = 0x113
	CodeBTNExtra  uint16 = 0x114

	CodeKeyLeftCtrl uint16 = 29
)

const (
	vkLBUTTON  uint32 = 0x01
	vkRBUTTON  uint32 = 0x02
	vkMBUTTON  uint32 = 0x04
	vkXBUTTON1 uint32 = 0x05
	vkXBUTTON2 uint32 = 0x06

	vkBACK    uint32 = 0x08
	vkTAB     uint32 = 0x09
	vkRETURN  uint32 = 0x0D
	vkSHIFT   uint32 = 0x10
	vkCONTROL uint32 = 0x11
	vkMENU    uint32 = 0x12
	vkCAPITAL uint32 = 0x14
	vkESCAPE  uint32 = 0x1B
	vkSPACE   uint32 = 0x20

	vkLWIN uint32 = 0x5B
	vkRWIN uint32 = 0x5C

	vkLSHIFT   uint32 = 0xA0
	vkRSHIFT   uint32 = 0xA1
	vkLCONTROL uint32 = 0xA2
	vkRCONTROL uint32 = 0xA3
	vkLMENU    uint32 = 0xA4
	vkRMENU    uint32 = 0xA5

	vk0  uint32 = 0x30
	vkA  uint32 = 0x41
	vkF1 uint32 = 0x70

	vkF8 = vkF1 + 7
)

type keyDef struct {
	name string
	code uint16
	vk   uint32
}

// letterCodes is the evdev EV_KEY code per letter; the values follow the
// physical QWERTY rows, not the alphabet.
var letterCodes = map[byte]uint16{
	'Q': 16, 'W': 17, 'E': 18, 'R': 19, 'T': 20, 'Y': 21, 'U': 22, 'I': 23, 'O': 24, 'P': 25,
	'A': 30, 'S': 31, 'D': 32, 'F': 33, 'G': 34, 'H': 35, 'J': 36, 'K': 37, 'L': 38,
	'Z': 44, 'X': 45, 'C': 46, 'V': 47, 'B': 48, 'N': 49, 'M': 50,
}

// digitCodes: evdev KEY_1..KEY_9 are 2..10 and KEY_0 is 11.
var digitCodes = map[byte]uint16{
	'1': 2, '2': 3, '3': 4, '4': 5, '5': 6, '6': 7, '7': 8, '8': 9, '9': 10, '0': 11,
}

// fkeyCodes: F1-F10 are contiguous, F11/F12 are not.
var fkeyCodes = [12]uint16{59, 60, 61, 62, 63, 64, 65, 66, 67, 68, 87, 88}

var keyDefs = buildKeyDefs()

func buildKeyDefs() []keyDef {
	defs := []keyDef{
		{name: "BTN_LEFT", code: CodeBTNLeft, vk: vkLBUTTON},
		{name: "BTN_RIGHT", code: CodeBTNRight, vk: vkRBUTTON},
		{name: "BTN_MIDDLE", code: CodeBTNMiddle, vk: vkMBUTTON},
		{name: "BTN_SIDE", code: CodeBTNSide, vk: vkXBUTTON1},
		{name: "BTN_EXTRA", code: CodeBTNExtra, vk: vkXBUTTON2},

		{name: "KEY_ESC", code: 1, vk: vkESCAPE},
		{name: "KEY_BACKSPACE", code: 14, vk: vkBACK},
		{name: "KEY_TAB", code: 15, vk: vkTAB},
		{name: "KEY_ENTER", code: 28, vk: vkRETURN},
		{name: "KEY_LEFTCTRL", code: CodeKeyLeftCtrl, vk: vkLCONTROL},
		{name: "KEY_LEFTSHIFT", code: 42, vk: vkLSHIFT},
		{name: "KEY_RIGHTSHIFT", code: 54, vk: vkRSHIFT},
		{name: "KEY_LEFTALT", code: 56, vk: vkLMENU},
		{name: "KEY_SPACE", code: 57, vk: vkSPACE},
		{name: "KEY_CAPSLOCK", code: 58, vk: vkCAPITAL},
		{name: "KEY_RIGHTCTRL", code: 97, vk: vkRCONTROL},
		{name: "KEY_RIGHTALT", code: 100, vk: vkRMENU},
		{name: "KEY_LEFTMETA", code: 125, vk: vkLWIN},
		{name: "KEY_RIGHTMETA", code: 126, vk: vkRWIN},
	}

	for letter, code := range letterCodes {
		defs = append(defs, keyDef{
			name: "KEY_" + string(letter),
			code: code,
			vk:   vkA + uint32(letter-'A'),
		})
	}
	for digit, code := range digitCodes {
		defs = append(defs, keyDef{
			name: "KEY_" + string(digit),
			code: code,
			vk:   vk0 + uint32(digit-'0'),
		})
	}
	for i, code := range fkeyCodes {
		defs = append(defs, keyDef{
			name: "KEY_F" + strconv.Itoa(i+1),
			code: code,
			vk:   vkF1 + uint32(i),
		})
	}
	return defs
}

var (
	nameToCode = func() map[string]uint16 {
		m := make(map[string]uint16, len(keyDefs))
		for _, def := range keyDefs {
			m[def.name] = def.code
		}
		return m
	}()

	codeToName = func() map[uint16]string {
		m := make(map[uint16]string, len(keyDefs))
		for _, def := range keyDefs {
			m[def.code] = def.name
		}
		return m
	}()

	codeToVK = func() map[uint16]uint32 {
		m := make(map[uint16]uint32, len(keyDefs))
		for _, def := range keyDefs {
			m[def.code] = def.vk
		}
		return m
	}()

	vkToCode = func() map[uint32]uint16 {
		m := make(map[uint32]uint16, len(keyDefs)+3)
		for _, def := range keyDefs {
			m[def.vk] = def.code
		}
		// Side-neutral virtual keys some sources report.
		m[vkSHIFT] = nameToCode["KEY_LEFTSHIFT"]
		m[vkCONTROL] = CodeKeyLeftCtrl
		m[vkMENU] = nameToCode["KEY_LEFTALT"]
		return m
	}()
)

func ParseCode(value string) (uint16, error) {
	raw := strings.ToUpper(strings.TrimSpace(value))
	if raw == "" {
		return 0, fmt.Errorf("binding code is empty")
	}
	switch raw {
	case "BTN_BACK":
		raw = "BTN_SIDE"
	case "BTN_FORWARD":
		raw = "BTN_EXTRA"
	}
	if code, ok := nameToCode[raw]; ok {
		return code, nil
	}

	parsed, err := strconv.ParseInt(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown binding %q: use names like KEY_LEFTCTRL/BTN_SIDE or numeric code", value)
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

// CodeFromVK translates a hook's virtual-key value into the portable code.
func CodeFromVK(vk uint32) (uint16, bool) {
	code, ok := vkToCode[vk]
	return code, ok
}

func CodeToVK(code uint16) (uint32, bool) {
	vk, ok := codeToVK[code]
	return vk, ok
}

// CaptureCandidateCodes lists every code the capture poll can observe, in
// stable order.
func CaptureCandidateCodes() []uint16 {
	codes := make([]uint16, 0, len(keyDefs))
	for _, def := range keyDefs {
		codes = append(codes, def.code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
