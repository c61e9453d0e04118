package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/config"
)

func TestNewWithWriter_JSONDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "1.2.3", &buf)

	logger.Info("status", "status", "on")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["service"] != "orvibo-bridge" {
		t.Errorf("service = %v, want orvibo-bridge", entry["service"])
	}
	if entry["version"] != "1.2.3" {
		t.Errorf("version = %v, want 1.2.3", entry["version"])
	}
	if entry["status"] != "on" {
		t.Errorf("status = %v, want on", entry["status"])
	}
}

func TestNewWithWriter_TextAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "quiet", Format: "text"}, "dev", &buf)

	logger.Info("hidden")
	logger.Error("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record logged at quiet level")
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("text output = %q, want msg=shown", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"trace", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"quiet", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{}, "dev", &buf)
	child := logger.With("component", "udp")

	if child == logger {
		t.Error("expected child logger to be different from parent")
	}

	child.Info("listening")
	if !strings.Contains(buf.String(), `"component":"udp"`) {
		t.Errorf("child output = %q, want component attr", buf.String())
	}
}

func TestDefaultAndDiscard(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
	Discard().Error("dropped")
}
