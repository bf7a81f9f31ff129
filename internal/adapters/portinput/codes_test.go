package portinput

import "testing"

func TestParseCodeNamesAndNumbers(t *testing.T) {
	tests := []struct {
		raw      string
		expected uint16
	}{
		{raw: "BTN_LEFT", expected: CodeBTNLeft},
		{raw: "btn_right", expected: CodeBTNRight},
		{raw: "KEY_LEFTCTRL", expected: CodeKeyLeftCtrl},
		{raw: "0x110", expected: CodeBTNLeft},
	}
	for _, tc := range tests {
		got, err := ParseCode(tc.raw)
		if err != nil {
			t.Fatalf("ParseCode(%q) returned error: %v", tc.raw, err)
		}
		if got != tc.expected {
			t.Fatalf("ParseCode(%q)=%d, want %d", tc.raw, got, tc.expected)
		}
	}

	if _, err := ParseCode("BTN_SIDE"); err == nil {
		t.Fatalf("ParseCode(BTN_SIDE) should fail; side buttons are not observable here")
	}
}

func TestObservableRoundTrips(t *testing.T) {
	for _, def := range keyDefs {
		if !codeObservable(def.code) {
			t.Fatalf("%s not observable", def.name)
		}
		code, ok := rawcodeToCode(def.vk)
		if !ok || code != def.code {
			t.Fatalf("rawcodeToCode(%#x)=%d,%v, want %d", def.vk, code, ok, def.code)
		}
	}
	for _, def := range mouseDefs {
		code, ok := buttonToCode(def.button)
		if !ok || code != def.code {
			t.Fatalf("buttonToCode(%d)=%d,%v, want %d", def.button, code, ok, def.code)
		}
		button, ok := codeToButton(def.code)
		if !ok || button != def.button {
			t.Fatalf("codeToButton(%s)=%d,%v", def.name, button, ok)
		}
	}
}
