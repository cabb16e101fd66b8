package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, level := range []string{"", "info", "DEBUG", "trace"} {
		if !ValidLevel(level) {
			t.Errorf("expected %q to be valid", level)
		}
	}
	if ValidLevel("verbose") {
		t.Error("expected verbose to be rejected")
	}
}

func TestNewLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)
	logger.Debug("hidden")
	logger.Info("run finished", "run_id", "r1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record leaked at info level: %s", out)
	}
	if !strings.Contains(out, "run finished") || !strings.Contains(out, "run_id=r1") {
		t.Fatalf("missing info record: %s", out)
	}
}

func TestNewLoggerLabelsTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "tick", "step", 15)

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Fatalf("expected TRACE label, got: %s", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("discard logger must not be enabled")
	}
}
