package logger

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level is the severity threshold below which messages are dropped. The relay
// logs a line per relevant event (refresh, probe cycle, relay failure); debug
// level additionally traces per-URL probe outcomes and cache hits, which is
// far too chatty for normal operation.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// current holds the process-wide threshold. Atomic rather than mutexed: the
// level is read on every log call, including inside the relay's copy loop
// error paths, and is only ever written at startup or from an admin action.
var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// ParseLevel maps a config string onto a Level, defaulting to info for
// anything unrecognized.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// SetLogLevel changes the process-wide threshold.
func SetLogLevel(level string) {
	current.Store(int32(ParseLevel(level)))
}

// GetLogLevel reports the active threshold as a string.
func GetLogLevel() string {
	return Level(current.Load()).String()
}

func emit(level Level, format string, v ...interface{}) {
	if level < Level(current.Load()) {
		return
	}
	log.Printf("[%s] %s", level, fmt.Sprintf(format, v...))
}

// Debug logs per-event tracing (probe outcomes, cache hits, relay chunk
// failures). Dropped unless the debug level is active.
func Debug(format string, v ...interface{}) {
	emit(LevelDebug, format, v...)
}

// Info logs normal operational events.
func Info(format string, v ...interface{}) {
	emit(LevelInfo, format, v...)
}

// Warn logs recovered failures: a strategy that came back empty, a probe
// pool rejection, a rejected relay target.
func Warn(format string, v ...interface{}) {
	emit(LevelWarn, format, v...)
}

// Error logs failures nothing recovered from.
func Error(format string, v ...interface{}) {
	emit(LevelError, format, v...)
}
