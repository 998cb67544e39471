package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %q, expected %q", tt.level, got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		valid    bool
	}{
		{"debug", LevelDebug, true},
		{"DEBUG", LevelDebug, true},
		{"info", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"Warning", LevelWarn, true},
		{"error", LevelError, true},
		{"unknown", LevelInfo, false},
		{"", LevelInfo, false},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
		if got := ValidLevel(tt.input); got != tt.valid {
			t.Errorf("ValidLevel(%q) = %v, expected %v", tt.input, got, tt.valid)
		}
	}
}

func newTestLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Config{Level: level, Output: &buf, Prefix: "test"})
	l.now = func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}
	return l, &buf
}

func TestLogger_Format(t *testing.T) {
	l, buf := newTestLogger(LevelDebug)

	l.Info("opened %s", "a.go")

	want := "2026-01-02T03:04:05.000 [INFO] test: opened a.go\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newTestLogger(LevelWarn)

	l.Debug("debug")
	l.Info("info")
	l.Warn("warn")
	l.Error("error")

	out := buf.String()
	if strings.Contains(out, "[DEBUG]") || strings.Contains(out, "[INFO]") {
		t.Errorf("filtered levels were written: %q", out)
	}
	if !strings.Contains(out, "[WARN]") || !strings.Contains(out, "[ERROR]") {
		t.Errorf("expected WARN and ERROR in output: %q", out)
	}

	l.SetLevel(LevelDebug)
	if l.Level() != LevelDebug {
		t.Errorf("Level() = %v, want DEBUG", l.Level())
	}
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("debug message missing after SetLevel")
	}
}

func TestLogger_Fields(t *testing.T) {
	l, buf := newTestLogger(LevelInfo)

	l.WithComponent("session").WithField("path", "/a.go").Info("closed")

	if !strings.HasSuffix(buf.String(), "closed {component=session, path=/a.go}\n") {
		t.Errorf("output = %q", buf.String())
	}

	// Parent is unaffected
	buf.Reset()
	l.Info("plain")
	if strings.Contains(buf.String(), "{") {
		t.Errorf("parent logger gained fields: %q", buf.String())
	}
}

func TestLogger_DisableEnable(t *testing.T) {
	l, buf := newTestLogger(LevelInfo)

	l.Disable()
	l.Error("hidden")
	if buf.Len() != 0 {
		t.Errorf("disabled logger wrote %q", buf.String())
	}

	l.Enable()
	l.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("enabled logger did not write")
	}
}

func TestNull(t *testing.T) {
	l := Null()
	l.Error("nothing")
	l.WithComponent("x").Error("still nothing")
}

func TestNew_DefaultOutput(t *testing.T) {
	l := New(Config{})
	if l.out.output == nil {
		t.Error("expected default output to be set")
	}
}
