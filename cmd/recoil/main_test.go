package main

import (
	"log/slog"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig(nil)
	if err != nil {
		t.Fatalf("parseConfig(nil): %v", err)
	}
	if !cfg.ui || !cfg.startEnabled {
		t.Fatalf("defaults: ui=%v startEnabled=%v, want both true", cfg.ui, cfg.startEnabled)
	}
	if cfg.interval != 10*time.Millisecond {
		t.Fatalf("default interval = %v, want 10ms", cfg.interval)
	}
	if cfg.crouchScale != 0.5 {
		t.Fatalf("default crouch scale = %v, want 0.5", cfg.crouchScale)
	}
	if cfg.triggerRaw != "BTN_LEFT" || cfg.crouchRaw != "KEY_LEFTCTRL" {
		t.Fatalf("default bindings = %q/%q", cfg.triggerRaw, cfg.crouchRaw)
	}
	if cfg.backend != "auto" {
		t.Fatalf("default backend = %q, want auto", cfg.backend)
	}
	if cfg.logLevel != slog.LevelInfo {
		t.Fatalf("default log level = %v, want info", cfg.logLevel)
	}
}

func TestParseConfigCLIModeDisablesUI(t *testing.T) {
	cfg, err := parseConfig([]string{"-cli"})
	if err != nil {
		t.Fatalf("parseConfig(-cli): %v", err)
	}
	if cfg.ui {
		t.Fatalf("-cli should disable the UI")
	}
}

func TestParseConfigRejectsBadValues(t *testing.T) {
	cases := [][]string{
		{"-interval", "0"},
		{"-interval", "101"},
		{"-crouch-scale", "1.5"},
		{"-crouch-scale", "-0.1"},
		{"-x", "NaN"},
		{"-y", "+Inf"},
		{"-trigger", "BTN_LEFT", "-crouch-key", "BTN_LEFT"},
		{"-trigger", "KEY_NOPE"},
		{"-log-level", "noisy"},
		{"-backend", "plan9"},
		{"stray-arg"},
	}
	for _, args := range cases {
		if _, err := parseConfig(args); err == nil {
			t.Fatalf("parseConfig(%v) should fail", args)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	if level, err := parseLogLevel("WARNING"); err != nil || level != slog.LevelWarn {
		t.Fatalf("parseLogLevel(WARNING) = %v, %v", level, err)
	}
	if level, err := parseLogLevel(" debug "); err != nil || level != slog.LevelDebug {
		t.Fatalf("parseLogLevel(debug) = %v, %v", level, err)
	}
	if _, err := parseLogLevel("loud"); err == nil {
		t.Fatalf("parseLogLevel(loud) should fail")
	}
}

func TestLogSinkSplitsLines(t *testing.T) {
	var got []string
	sink := &logSink{forward: func(line string) { got = append(got, line) }}

	_, _ = sink.Write([]byte("first li"))
	_, _ = sink.Write([]byte("ne\nsecond\n\n"))
	if len(got) != 2 || got[0] != "first line" || got[1] != "second" {
		t.Fatalf("forwarded lines = %q", got)
	}

	// A partial tail stays buffered until its newline arrives.
	_, _ = sink.Write([]byte("tail"))
	if len(got) != 2 {
		t.Fatalf("partial line flushed early: %q", got)
	}
	_, _ = sink.Write([]byte("\n"))
	if len(got) != 3 || got[2] != "tail" {
		t.Fatalf("tail flush = %q", got)
	}
}

func TestDisplayCodeName(t *testing.T) {
	cases := map[string]string{
		"":             "-",
		"BTN_LEFT":     "Left Mouse Button",
		"btn_extra":    "Side Mouse Button",
		"KEY_LEFTCTRL": "Left Ctrl",
		"KEY_A":        "A",
		"KEY_F4":       "F4",
		"KEY_HOME":     "Home",
		"17":           "17",
	}
	for raw, want := range cases {
		if got := displayCodeName(raw); got != want {
			t.Fatalf("displayCodeName(%q) = %q, want %q", raw, got, want)
		}
	}
}
