package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// logSink splits handler output into lines and forwards each non-empty one
// to a callback. Partial writes stay buffered until a newline arrives.
type logSink struct {
	mu      sync.Mutex
	partial bytes.Buffer
	forward func(line string)
}

func (s *logSink) Write(p []byte) (int, error) {
	if s.forward == nil {
		return len(p), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.partial.Write(p)
	for {
		chunk, err := s.partial.ReadString('\n')
		if err != nil {
			// Incomplete tail; keep it for the next write.
			s.partial.WriteString(chunk)
			break
		}
		if line := strings.TrimSpace(chunk); line != "" {
			s.forward(line)
		}
	}
	return len(p), nil
}

// newSlogLogger builds the process logger. Output is discarded entirely
// unless DEBUG=1; with a sink, every line is mirrored to it as well.
func newSlogLogger(level slog.Level, sink func(line string)) *slog.Logger {
	var out io.Writer = io.Discard
	if debugLogsEnabled() {
		out = os.Stderr
		if sink != nil {
			out = io.MultiWriter(out, &logSink{forward: sink})
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func debugLogsEnabled() bool {
	return strings.TrimSpace(os.Getenv("DEBUG")) == "1"
}

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func parseLogLevel(value string) (slog.Level, error) {
	if level, ok := logLevels[strings.ToLower(strings.TrimSpace(value))]; ok {
		return level, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid --log-level %q (expected debug|info|warning|error)", value)
}
