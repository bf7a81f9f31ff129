//go:build linux

package x11input

import (
	"strings"

	"github.com/ezhoncho/fallen-recoil/internal/adapters/linuxinput"

	"github.com/BurntSushi/xgb/xproto"
)

// keyNameToKeysym maps the evdev KEY_* token (prefix stripped) to the X
// keysym string keybind understands. Letters, digits, F-keys and the keypad
// are handled programmatically in linuxCodeToXKeyString.
var keyNameToKeysym = map[string]string{
	"ESC":        "Escape",
	"ENTER":      "Return",
	"TAB":        "Tab",
	"SPACE":      "space",
	"BACKSPACE":  "BackSpace",
	"LEFTSHIFT":  "Shift_L",
	"RIGHTSHIFT": "Shift_R",
	"LEFTCTRL":   "Control_L",
	"RIGHTCTRL":  "Control_R",
	"LEFTALT":    "Alt_L",
	"RIGHTALT":   "Alt_R",
	"LEFTMETA":   "Super_L",
	"RIGHTMETA":  "Super_R",
	"CAPSLOCK":   "Caps_Lock",
	"NUMLOCK":    "Num_Lock",
	"SCROLLLOCK": "Scroll_Lock",
	"PAGEUP":     "Page_Up",
	"PAGEDOWN":   "Page_Down",
	"INSERT":     "Insert",
	"DELETE":     "Delete",
	"HOME":       "Home",
	"END":        "End",
	"UP":         "Up",
	"DOWN":       "Down",
	"LEFT":       "Left",
	"RIGHT":      "Right",
	"MENU":       "Menu",
	"PAUSE":      "Pause",
	"MINUS":      "minus",
	"EQUAL":      "equal",
	"LEFTBRACE":  "bracketleft",
	"RIGHTBRACE": "bracketright",
	"SEMICOLON":  "semicolon",
	"APOSTROPHE": "apostrophe",
	"GRAVE":      "grave",
	"BACKSLASH":  "backslash",
	"COMMA":      "comma",
	"DOT":        "period",
	"SLASH":      "slash",
	"KPPLUS":     "KP_Add",
	"KPMINUS":    "KP_Subtract",
	"KPASTERISK": "KP_Multiply",
	"KPSLASH":    "KP_Divide",
	"KPDOT":      "KP_Decimal",
	"KPENTER":    "KP_Enter",
}

var keysymToKeyName = func() map[string]string {
	inverse := make(map[string]string, len(keyNameToKeysym))
	for name, keysym := range keyNameToKeysym {
		inverse[strings.ToLower(keysym)] = name
	}
	return inverse
}()

func linuxCodeToXKeyString(code uint16) (string, bool) {
	name := linuxinput.FormatCodeName(code)
	if !strings.HasPrefix(name, "KEY_") {
		return "", false
	}
	token := strings.TrimPrefix(name, "KEY_")

	if keysym, ok := keyNameToKeysym[token]; ok {
		return keysym, true
	}
	if len(token) == 1 && token[0] >= 'A' && token[0] <= 'Z' {
		return strings.ToLower(token), true
	}
	if len(token) == 1 && token[0] >= '0' && token[0] <= '9' {
		return token, true
	}
	if strings.HasPrefix(token, "F") && len(token) > 1 && isDigits(token[1:]) {
		return token, true
	}
	if strings.HasPrefix(token, "KP") {
		suffix := strings.TrimPrefix(token, "KP")
		if len(suffix) == 1 && suffix[0] >= '0' && suffix[0] <= '9' {
			return "KP_" + suffix, true
		}
	}
	return "", false
}

func xLookupStringToLinuxCode(value string) (uint16, bool) {
	raw := strings.ToLower(strings.TrimSpace(value))
	if raw == "" {
		return 0, false
	}

	keyName := ""
	switch {
	case len(raw) == 1 && (raw[0] >= 'a' && raw[0] <= 'z' || raw[0] >= '0' && raw[0] <= '9'):
		keyName = "KEY_" + strings.ToUpper(raw)
	case strings.HasPrefix(raw, "f") && len(raw) > 1 && isDigits(raw[1:]):
		keyName = "KEY_" + strings.ToUpper(raw)
	case strings.HasPrefix(raw, "kp_") && len(raw) == 4 && raw[3] >= '0' && raw[3] <= '9':
		keyName = "KEY_KP" + raw[3:]
	default:
		if name, ok := keysymToKeyName[raw]; ok {
			keyName = "KEY_" + name
		}
	}

	if keyName == "" {
		return 0, false
	}
	return parseLinuxCode(keyName)
}

// codeToXButtonMask resolves a mouse-button code to its bit in the
// QueryPointer state mask. Only the core buttons 1-3 have mask bits.
func codeToXButtonMask(code uint16) (uint16, bool) {
	switch linuxinput.FormatCodeName(code) {
	case "BTN_LEFT":
		return xproto.KeyButMaskButton1, true
	case "BTN_MIDDLE":
		return xproto.KeyButMaskButton2, true
	case "BTN_RIGHT":
		return xproto.KeyButMaskButton3, true
	default:
		return 0, false
	}
}

func codeToXButton(code uint16) (xproto.Button, bool) {
	switch linuxinput.FormatCodeName(code) {
	case "BTN_LEFT":
		return xproto.Button(xproto.ButtonIndex1), true
	case "BTN_MIDDLE":
		return xproto.Button(xproto.ButtonIndex2), true
	case "BTN_RIGHT":
		return xproto.Button(xproto.ButtonIndex3), true
	case "BTN_SIDE", "BTN_BACK":
		return xproto.Button(8), true
	case "BTN_EXTRA", "BTN_FORWARD":
		return xproto.Button(9), true
	default:
		return 0, false
	}
}

func xButtonToCode(button xproto.Button) (uint16, bool) {
	switch byte(button) {
	case xproto.ButtonIndex1:
		return parseLinuxCode("BTN_LEFT")
	case xproto.ButtonIndex2:
		return parseLinuxCode("BTN_MIDDLE")
	case xproto.ButtonIndex3:
		return parseLinuxCode("BTN_RIGHT")
	case 8:
		return parseLinuxCode("BTN_SIDE")
	case 9:
		return parseLinuxCode("BTN_EXTRA")
	default:
		return 0, false
	}
}

func parseLinuxCode(name string) (uint16, bool) {
	code, err := linuxinput.ParseCode(name)
	if err != nil {
		return 0, false
	}
	return code, true
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
