package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := NewZapLogger(LogConfig{Level: level, Output: buf})
	if err != nil {
		t.Fatalf("NewZapLogger() error = %v", err)
	}
	return logger, buf
}

func TestZapAdapter_Levels(t *testing.T) {
	logger, buf := newTestLogger(t, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below configured level were emitted: %q", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Errorf("warn message missing from output: %q", out)
	}
	if !strings.Contains(out, "error message") || !strings.Contains(out, "boom") {
		t.Errorf("error message or cause missing from output: %q", out)
	}
}

func TestZapAdapter_WithFields(t *testing.T) {
	logger, buf := newTestLogger(t, InfoLevel)

	logger.WithFields(Field{"job_id", "j1"}).Info("processing")

	if !strings.Contains(buf.String(), "j1") {
		t.Errorf("field value missing from output: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"Warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"nonsense", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
