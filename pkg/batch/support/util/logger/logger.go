// Package logger provides the level-filtered logging used throughout the batch engine.
// It writes through the standard `log` package so that output can be redirected with SetOutput.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel is a type representing the logging level.
// Smaller values are more verbose.
type LogLevel int32

const (
	// LevelDebug is used for detailed diagnostic output such as per-chunk progress.
	LevelDebug LogLevel = iota
	// LevelInfo is used for lifecycle messages (job and step start/finish).
	LevelInfo
	// LevelWarn is used for recoverable problems such as retried or skipped items.
	LevelWarn
	// LevelError is used for failures that end a step or a job.
	LevelError
	// LevelFatal is used right before the process terminates.
	LevelFatal
)

// String returns the canonical name of the level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int32(l))
	}
}

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// ParseLevel converts a level name (case-insensitive) into a LogLevel.
// The boolean is false when the name is not recognized.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL", "SILENT":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// SetLogLevel sets the global log level.
// Valid values are "DEBUG", "INFO", "WARN", "ERROR" and "FATAL" (case-insensitive).
// An unknown value falls back to INFO and a warning is printed.
func SetLogLevel(level string) {
	parsed, ok := ParseLevel(level)
	if !ok {
		log.Printf("[WARN] Unknown log level '%s' specified. Defaulting to INFO level.", level)
	}
	currentLevel.Store(int32(parsed))
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// IsEnabled reports whether messages at the given level are currently written.
func IsEnabled(level LogLevel) bool {
	return GetLogLevel() <= level
}

// SetOutput redirects log output. Mainly used by tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func logf(level LogLevel, format string, v ...interface{}) {
	if !IsEnabled(level) {
		return
	}
	log.Printf("["+level.String()+"] "+format, v...)
}

// Debugf outputs a DEBUG level message.
func Debugf(format string, v ...interface{}) {
	logf(LevelDebug, format, v...)
}

// Infof outputs an INFO level message.
func Infof(format string, v ...interface{}) {
	logf(LevelInfo, format, v...)
}

// Warnf outputs a WARN level message.
func Warnf(format string, v ...interface{}) {
	logf(LevelWarn, format, v...)
}

// Errorf outputs an ERROR level message.
func Errorf(format string, v ...interface{}) {
	logf(LevelError, format, v...)
}

// Fatalf outputs a FATAL level message and terminates the program with os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
