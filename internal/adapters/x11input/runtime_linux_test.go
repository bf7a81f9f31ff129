package x11input

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
)

func TestBindingHeldForCoreButton(t *testing.T) {
	binding := codeBinding{code: 0x112, buttonMask: xproto.KeyButMaskButton2}

	if !bindingHeld(binding, nil, xproto.KeyButMaskButton1|xproto.KeyButMaskButton2) {
		t.Fatalf("button binding should report held while its mask bit is set")
	}
	if bindingHeld(binding, nil, xproto.KeyButMaskButton1) {
		t.Fatalf("button binding should not report held without its mask bit")
	}
}

func TestBindingHeldForKey(t *testing.T) {
	keycode := xproto.Keycode(38)
	keymap := &xproto.QueryKeymapReply{Keys: make([]byte, 32)}
	keymap.Keys[keycode/8] |= 1 << (keycode % 8)

	binding := codeBinding{code: 29, keycodes: []xproto.Keycode{keycode}}
	if !bindingHeld(binding, keymap, 0) {
		t.Fatalf("key binding should report held while its keycode bit is set")
	}
	// A key binding never consults the pointer mask.
	if bindingHeld(binding, nil, xproto.KeyButMaskButton1|xproto.KeyButMaskButton3) {
		t.Fatalf("key binding without a keymap sample should report released")
	}
}
