// Package logging is the structured logging layer for the analysis service.
// Every long-running component logs through the Logger interface; the zap
// adapter is the only concrete implementation. Pipeline code attaches job_id
// and user_id fields with WithFields so one job's lifecycle can be followed
// across the queue consumer, the vault, and the enrichment steps.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger is what components depend on. Error takes the error as its own
// argument so the adapter can render it consistently instead of each call
// site formatting it into the message.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	WithFields(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Field is one structured key-value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// LogLevel orders message severities for filtering.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel reads a level name case-insensitively. Unrecognized input falls
// back to info so a typo in LOG_LEVEL never silences the service.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LogConfig configures a logger instance. A nil Output writes to stdout.
type LogConfig struct {
	Level  LogLevel
	Output io.Writer
	Prefix string
}

// DefaultLogConfig reads the level from LOG_LEVEL and keeps everything else
// at the defaults.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level: ParseLevel(os.Getenv("LOG_LEVEL")),
	}
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
	initOnce     sync.Once
)

func initialize() {
	globalLogger = NewDefaultLogger()
}

// SetGlobalLogger replaces the process-wide logger. Run calls this once at
// startup before any component is built.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the process-wide logger, lazily creating a default
// one so code paths that run before InitGlobalLogger still log.
func GetGlobalLogger() Logger {
	initOnce.Do(initialize)
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Debug logs through the global logger.
func Debug(msg string, fields ...Field) {
	GetGlobalLogger().Debug(msg, fields...)
}

// Info logs through the global logger.
func Info(msg string, fields ...Field) {
	GetGlobalLogger().Info(msg, fields...)
}

// Warn logs through the global logger.
func Warn(msg string, fields ...Field) {
	GetGlobalLogger().Warn(msg, fields...)
}

// Error logs through the global logger.
func Error(msg string, err error, fields ...Field) {
	GetGlobalLogger().Error(msg, err, fields...)
}
