package session

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// LogLevel represents severity. Levels order from most to least verbose so
// the threshold comparison in logf stays a single integer compare.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case tag used in log output.
func (l LogLevel) String() string {
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

// ParseLevel maps a level name to its LogLevel. Matching is
// case-insensitive and "warning" is accepted as an alias for "warn".
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

var currentLevel atomic.Int32

var baseLogger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// SetLogLevel parses and sets the global log level; unknown names are ignored.
func SetLogLevel(s string) {
	if l, ok := ParseLevel(s); ok {
		currentLevel.Store(int32(l))
	}
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel { return LogLevel(currentLevel.Load()) }

func logf(l LogLevel, format string, args ...interface{}) {
	if GetLogLevel() > l {
		return
	}
	// Without args the input is a plain message; skip fmt so literal %
	// characters survive untouched.
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	baseLogger.Printf("[%s] %s", l, msg)
}

func Debugf(format string, a ...interface{}) { logf(LevelDebug, format, a...) }
func Infof(format string, a ...interface{})  { logf(LevelInfo, format, a...) }
func Warnf(format string, a ...interface{})  { logf(LevelWarn, format, a...) }
func Errorf(format string, a ...interface{}) { logf(LevelError, format, a...) }

// TimeTrack logs the duration of a pipeline phase at debug level.
func TimeTrack(start time.Time, label string) {
	Debugf("%s took %s", label, time.Since(start))
}
