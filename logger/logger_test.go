package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"error", LogLevelError},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"INFO", LogLevelInfo},
		{"Debug", LogLevelDebug},
		{"none", LogLevelNone},
		{"garbage", LogLevelNone},
		{"", LogLevelNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), "input %q", tt.in)
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "INFO", LogLevelInfo.String())
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "NONE", LogLevelNone.String())
}

func TestDefaultLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger("test")
	l.SetOutput(&buf)
	l.SetLevel(LogLevelWarn)

	l.Debug("debug message")
	l.Info("info message")
	assert.Empty(t, buf.String())

	l.Warn("warn message")
	l.Error("error message")
	out := buf.String()
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "[test]")
}

func TestDefaultLoggerDDLAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger("")
	l.SetOutput(&buf)

	l.LogDDL("CREATE TABLE users (id INTEGER)")
	assert.Empty(t, buf.String())

	l.SetLevel(LogLevelDebug)
	l.LogDDL("CREATE TABLE users (id INTEGER)")
	assert.Contains(t, buf.String(), "CREATE TABLE users")
}
