//go:build linux

package linuxinput

import "testing"

func TestParseCodeNamesAndNumbers(t *testing.T) {
	tests := []struct {
		raw      string
		expected uint16
	}{
		{raw: "BTN_LEFT", expected: CodeBTNLeft},
		{raw: "key_leftctrl", expected: CodeKeyLeftCtrl},
		{raw: "29", expected: CodeKeyLeftCtrl},
		{raw: "0x110", expected: CodeBTNLeft},
	}
	for _, tc := range tests {
		got, err := ParseCode(tc.raw)
		if err != nil {
			t.Fatalf("ParseCode(%q): %v", tc.raw, err)
		}
		if got != tc.expected {
			t.Fatalf("ParseCode(%q) = %d, want %d", tc.raw, got, tc.expected)
		}
	}

	for _, raw := range []string{"", "KEY_NOPE", "-5", "70000"} {
		if _, err := ParseCode(raw); err == nil {
			t.Fatalf("ParseCode(%q) should fail", raw)
		}
	}
}

func TestFormatCodeNameRoundTrip(t *testing.T) {
	if name := FormatCodeName(CodeBTNLeft); name != "BTN_LEFT" {
		t.Fatalf("FormatCodeName(BTN_LEFT) = %q", name)
	}
	code, err := ParseCode(FormatCodeName(CodeKeyLeftCtrl))
	if err != nil || code != CodeKeyLeftCtrl {
		t.Fatalf("round trip KEY_LEFTCTRL = %d, %v", code, err)
	}
}
