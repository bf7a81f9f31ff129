//go:build linux

package linuxinput

import (
	"fmt"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

const (
	CodeBTNLeft     uint16 = uint16(evdev.BTN_LEFT)
	CodeKeyLeftCtrl uint16 = uint16(evdev.KEY_LEFTCTRL)
)

// ParseCode resolves an evdev key/button name (KEY_LEFTCTRL, BTN_SIDE) or a
// numeric code into its EV_KEY code.
func ParseCode(value string) (uint16, error) {
	raw := strings.ToUpper(strings.TrimSpace(value))
	if raw == "" {
		return 0, fmt.Errorf("binding code is empty")
	}
	if code, ok := evdev.KEYFromString[raw]; ok {
		return uint16(code), nil
	}
	if parsed, err := strconv.ParseUint(raw, 0, 16); err == nil {
		return uint16(parsed), nil
	}
	return 0, fmt.Errorf("unknown binding %q: use names like KEY_LEFTCTRL/BTN_SIDE or numeric code", value)
}

func FormatCodeName(code uint16) string {
	if name := evdev.CodeName(evdev.EV_KEY, evdev.EvCode(code)); name != "" {
		return name
	}
	return strconv.Itoa(int(code))
}
