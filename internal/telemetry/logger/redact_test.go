package logger

import (
	"log/slog"
	"testing"
)

func TestRedactSensitive_SessionIDValue(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	id := "mts_01j9x7k2m3n4p5q6r7s8t9v0wx"
	l.Info("session created", "id", id)

	got, _ := decode(t, buf)["id"].(string)
	if got == id {
		t.Fatalf("session ID should be masked, got original value")
	}
	if got != "mts_01j...0wx" {
		t.Errorf("mask format incorrect, got: %s", got)
	}
}

func TestRedactSensitive_SensitiveKeyName(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	tests := []struct {
		key   string
		value string
	}{
		{"password", "hunter2"},
		{"admin_key", "some-key-value"},
		{"Authorization", "Bearer abc"},
		{"session_id", "client-chosen-id"},
		{"cookie", "sessionId=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			buf.Reset()
			l.Info("test", tt.key, tt.value)

			if got := decode(t, buf)[tt.key]; got != redactedValue {
				t.Errorf("%s = %v, want %s", tt.key, got, redactedValue)
			}
		})
	}
}

func TestRedactSensitive_NormalValues(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.Info("user action", "user_id", "user123", "policy", "auth", "event", "authenticated")
	entry := decode(t, buf)

	for key, want := range map[string]string{
		"user_id": "user123",
		"policy":  "auth",
		"event":   "authenticated",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %s", key, entry[key], want)
		}
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	attr := redactSensitive(slog.Group("req", slog.String("session_id", "abc"), slog.String("path", "/ws")))

	group := attr.Value.Group()
	if group[0].Value.String() != redactedValue {
		t.Errorf("nested session_id = %q", group[0].Value.String())
	}
	if group[1].Value.String() != "/ws" {
		t.Errorf("nested path = %q", group[1].Value.String())
	}
}

func TestRedactString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"mts_01j9x7k2m3n4p5q6r7s8t9v0wx", "mts_01j...0wx"},
		{"mts_ABCDEF", "mts_***"},
		{"mts_", "mts_***"},
		{"ntf_01j9x7k2m3n4p5q6r7s8t9v0wx", "ntf_01j9x7k2m3n4p5q6r7s8t9v0wx"},
		{"normalvalue123", "normalvalue123"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := RedactString(tt.input); got != tt.expected {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key       string
		sensitive bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"client_secret", true},
		{"auth_token", true},
		{"admin_key", true},
		{"session_id", true},
		{"user_id", false},
		{"request_id", false},
		{"conn_id", false},
		{"policy", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsSensitiveKey(tt.key); got != tt.sensitive {
				t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.sensitive)
			}
		})
	}
}

func TestIsSensitiveValue(t *testing.T) {
	if !IsSensitiveValue("mts_abc") {
		t.Error("mts_ values are sensitive")
	}
	if IsSensitiveValue("ntf_abc") || IsSensitiveValue("") {
		t.Error("notification IDs and empty values are not sensitive")
	}
}
