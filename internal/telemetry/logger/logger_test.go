package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, level string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := NewSlog(Config{Level: level, Format: "json", Output: &buf})
	t.Cleanup(func() { SetLevel("info") })
	return l, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	return entry
}

func TestNewSlog_Levels(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	tests := []struct {
		level   string
		logFunc func(string, ...any)
	}{
		{"DEBUG", l.Debug},
		{"INFO", l.Info},
		{"WARN", l.Warn},
		{"ERROR", l.Error},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("test message", "component", "hub")

			entry := decode(t, buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["component"] != "hub" {
				t.Errorf("component = %v", entry["component"])
			}
		})
	}
}

func TestNewSlog_With(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.With("service", "sweeper").InfoContext(WithRequestID(context.Background(), "req-1"), "test message")

	entry := decode(t, buf)
	if entry["service"] != "sweeper" {
		t.Errorf("service = %v, want sweeper", entry["service"])
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", entry["request_id"])
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newBufferLogger(t, "error")

	l.Info("filtered")
	if buf.Len() > 0 {
		t.Error("Info should be filtered at error level")
	}

	SetLevel("debug")
	l.Info("logged")
	if buf.Len() == 0 {
		t.Error("Info should be logged after level changed to debug")
	}
	if level := GetLevel(); level != "debug" {
		t.Errorf("GetLevel() = %q, want debug", level)
	}
}

func TestParseLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"INFO", "info"},
		{"warning", "warn"},
		{"error", "error"},
		{"invalid", "info"},
		{"", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			SetLevel(tt.input)
			if got := GetLevel(); got != tt.expected {
				t.Errorf("SetLevel(%q); GetLevel() = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewSlog_Redacts(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.Info("session created", "session_id", "mts_01hzzzzzzzzzzzzzzzzzzzzzzz")
	if !strings.Contains(buf.String(), "mts_01h...zzz") {
		t.Errorf("output should be redacted, got %s", buf.String())
	}
}

func TestNewSlog_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	NewSlog(Config{Level: "info", Format: "text", Output: &buf}).Info("test message", "component", "ws")

	output := buf.String()
	if !strings.Contains(output, "test message") || !strings.Contains(output, "component=ws") {
		t.Errorf("unexpected text output: %s", output)
	}
}
