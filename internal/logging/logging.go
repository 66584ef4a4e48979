package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel LogLevel
	levelOnce    sync.Once
	std          = log.New(os.Stderr, "", log.LstdFlags)
)

// ParseLevel converts a level name into a LogLevel. Unknown names map to
// LevelInfo and ok is false.
func ParseLevel(s string) (level LogLevel, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel = LevelDebug
				return
			}
		}

		currentLevel, _ = ParseLevel(os.Getenv("LOG_LEVEL"))
	})
}

// SetLevel overrides the level read from the environment.
func SetLevel(level LogLevel) {
	initLevel()
	mu.Lock()
	currentLevel = level
	mu.Unlock()
}

// SetOutput redirects all log output. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func output(level LogLevel, tag, format string, args ...interface{}) {
	if GetLevel() > level {
		return
	}
	_ = std.Output(3, tag+fmt.Sprintf(format, args...))
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	output(LevelDebug, "[DEBUG] ", format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	output(LevelInfo, "[INFO] ", format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	output(LevelWarn, "[WARN] ", format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	output(LevelError, "[ERROR] ", format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	_ = std.Output(2, "[FATAL] "+fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Component tags every message with the name of the code path that emitted
// it, e.g. "media.attach_file".
type Component string

// Debug logs a debug message tagged with the component name.
func (c Component) Debug(format string, args ...interface{}) {
	output(LevelDebug, "[DEBUG] ", "%s: %s", string(c), fmt.Sprintf(format, args...))
}

// Info logs an info message tagged with the component name.
func (c Component) Info(format string, args ...interface{}) {
	output(LevelInfo, "[INFO] ", "%s: %s", string(c), fmt.Sprintf(format, args...))
}

// Warn logs a warning tagged with the component name.
func (c Component) Warn(format string, args ...interface{}) {
	output(LevelWarn, "[WARN] ", "%s: %s", string(c), fmt.Sprintf(format, args...))
}

// Error logs an error tagged with the component name.
func (c Component) Error(format string, args ...interface{}) {
	output(LevelError, "[ERROR] ", "%s: %s", string(c), fmt.Sprintf(format, args...))
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
