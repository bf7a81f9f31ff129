package main

import (
	"strings"
	"testing"
)

func TestParseBackendChoiceAcceptsAllBackends(t *testing.T) {
	for _, raw := range []string{"", "auto", "Wayland", "x11", "evdev"} {
		if _, err := parseBackendChoice(raw); err != nil {
			t.Fatalf("parseBackendChoice(%q): %v", raw, err)
		}
	}

	_, err := parseBackendChoice("cocoa")
	if err == nil {
		t.Fatalf("parseBackendChoice(cocoa) should fail")
	}
	// The message must list every accepted choice, aliases included.
	for _, backend := range []string{"auto", "wayland", "x11", "evdev"} {
		if !strings.Contains(err.Error(), backend) {
			t.Fatalf("error %q does not mention %q", err, backend)
		}
	}
}

func TestResolveLinuxBackendTreatsEvdevAsWayland(t *testing.T) {
	if got := resolveLinuxBackend("evdev"); got != "wayland" {
		t.Fatalf("resolveLinuxBackend(evdev) = %q, want wayland", got)
	}
	if got := resolveLinuxBackend("x11"); got != "x11" {
		t.Fatalf("resolveLinuxBackend(x11) = %q, want x11", got)
	}
}
