package wininput

import "testing"

func TestParseAndFormatMouseCodes(t *testing.T) {
	tests := []struct {
		raw      string
		expected uint16
	}{
		{raw: "BTN_LEFT", expected: CodeBTNLeft},
		{raw: "btn_extra", expected: CodeBTNExtra},
		{raw: "BTN_BACK", expected: CodeBTNSide},
		{raw: "BTN_FORWARD", expected: CodeBTNExtra},
		{raw: "KEY_LEFTCTRL", expected: CodeKeyLeftCtrl},
		{raw: "0x113", expected: CodeBTNSide},
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

	if _, err := ParseCode("KEY_NOPE"); err == nil {
		t.Fatalf("ParseCode(KEY_NOPE) should fail")
	}
	if name := FormatCodeName(CodeBTNExtra); name != "BTN_EXTRA" {
		t.Fatalf("FormatCodeName(CodeBTNExtra)=%q, want BTN_EXTRA", name)
	}
}

func TestCodeFromVKMappings(t *testing.T) {
	keyA, err := ParseCode("KEY_A")
	if err != nil {
		t.Fatalf("ParseCode(KEY_A): %v", err)
	}
	if code, ok := CodeFromVK(vkA); !ok || code != keyA {
		t.Fatalf("CodeFromVK(vkA)=%d,%v, want %d,true", code, ok, keyA)
	}

	// Side-neutral control maps to the left variant.
	if code, ok := CodeFromVK(vkCONTROL); !ok || code != CodeKeyLeftCtrl {
		t.Fatalf("CodeFromVK(vkCONTROL)=%d,%v, want %d,true", code, ok, CodeKeyLeftCtrl)
	}
}

func TestCodeToVKMappings(t *testing.T) {
	keyF8, err := ParseCode("KEY_F8")
	if err != nil {
		t.Fatalf("ParseCode(KEY_F8): %v", err)
	}
	if vk, ok := CodeToVK(keyF8); !ok || vk != vkF8 {
		t.Fatalf("CodeToVK(KEY_F8)=%d,%v, want %d,true", vk, ok, vkF8)
	}
	if vk, ok := CodeToVK(CodeBTNSide); !ok || vk != vkXBUTTON1 {
		t.Fatalf("CodeToVK(BTN_SIDE)=%d,%v, want %d,true", vk, ok, vkXBUTTON1)
	}
}

func TestVKRoundTripForAllDefs(t *testing.T) {
	for _, code := range CaptureCandidateCodes() {
		vk, ok := CodeToVK(code)
		if !ok {
			t.Fatalf("CodeToVK(%s) missing", FormatCodeName(code))
		}
		back, ok := CodeFromVK(vk)
		if !ok || back != code {
			t.Fatalf("CodeFromVK(CodeToVK(%s))=%d,%v", FormatCodeName(code), back, ok)
		}
	}
}
