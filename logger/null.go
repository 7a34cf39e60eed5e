package logger

import "io"

// NullLogger discards everything. It is the initial global logger, so library
// use without a configured logger stays silent.
type NullLogger struct{}

// NewNullLogger creates a discarding logger
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (n *NullLogger) Debug(format string, args ...any) {}
func (n *NullLogger) Info(format string, args ...any)  {}
func (n *NullLogger) Warn(format string, args ...any)  {}
func (n *NullLogger) Error(format string, args ...any) {}
func (n *NullLogger) LogDDL(statement string)          {}

func (n *NullLogger) SetLevel(level LogLevel) {}

func (n *NullLogger) GetLevel() LogLevel { return LogLevelNone }

func (n *NullLogger) SetOutput(w io.Writer) {}
