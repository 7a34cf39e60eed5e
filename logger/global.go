package logger

import "sync"

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewNullLogger()
)

// SetGlobalLogger replaces the process-wide logger and returns the previous
// one, so callers that install a temporary logger can restore it
func SetGlobalLogger(l Logger) Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	prev := globalLogger
	globalLogger = l
	return prev
}

// GetGlobalLogger returns the process-wide logger
func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Debug logs through the process-wide logger
func Debug(format string, args ...any) {
	GetGlobalLogger().Debug(format, args...)
}

// Info logs through the process-wide logger
func Info(format string, args ...any) {
	GetGlobalLogger().Info(format, args...)
}

// Warn logs through the process-wide logger
func Warn(format string, args ...any) {
	GetGlobalLogger().Warn(format, args...)
}

// Error logs through the process-wide logger
func Error(format string, args ...any) {
	GetGlobalLogger().Error(format, args...)
}
