package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\033[0m"
	ansiGray   = "\033[90m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiCyan   = "\033[36m"
)

func levelColor(level LogLevel) string {
	switch level {
	case LogLevelError:
		return ansiRed
	case LogLevelWarn:
		return ansiYellow
	case LogLevelInfo:
		return ansiGreen
	case LogLevelDebug:
		return ansiGray
	default:
		return ansiReset
	}
}

// DefaultLogger writes timestamped, colored lines to a single output.
// DDL statements get their own tag so executed schema changes are easy to
// pick out of a migration run.
type DefaultLogger struct {
	mu     sync.RWMutex
	level  LogLevel
	logger *log.Logger
	prefix string
}

// NewDefaultLogger creates a logger at info level writing to stdout
func NewDefaultLogger(prefix string) *DefaultLogger {
	return &DefaultLogger{
		level:  LogLevelInfo,
		logger: log.New(os.Stdout, "", 0),
		prefix: prefix,
	}
}

// SetLevel sets the logging level
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *DefaultLogger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// SetOutput sets the output writer
func (l *DefaultLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetOutput(w)
}

func (l *DefaultLogger) emit(threshold LogLevel, tag, color, message string) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.level < threshold {
		return
	}

	timestamp := time.Now().Format("15:04:05.000")
	if l.prefix != "" {
		l.logger.Printf("%s [%s] %s%s%s: %s", timestamp, l.prefix, color, tag, ansiReset, message)
	} else {
		l.logger.Printf("%s %s%s%s: %s", timestamp, color, tag, ansiReset, message)
	}
}

func (l *DefaultLogger) log(level LogLevel, format string, args ...any) {
	l.emit(level, level.String(), levelColor(level), fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(format string, args ...any) {
	l.log(LogLevelDebug, format, args...)
}

// Info logs an info message
func (l *DefaultLogger) Info(format string, args ...any) {
	l.log(LogLevelInfo, format, args...)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(format string, args ...any) {
	l.log(LogLevelWarn, format, args...)
}

// Error logs an error message
func (l *DefaultLogger) Error(format string, args ...any) {
	l.log(LogLevelError, format, args...)
}

// LogDDL logs one executed DDL statement at debug verbosity
func (l *DefaultLogger) LogDDL(statement string) {
	l.emit(LogLevelDebug, "DDL", ansiCyan, strings.TrimSpace(statement))
}
