// Package corelog wires corert's ambient logging onto go.uber.org/zap, the
// backend the teacher (Voskan/arena-cache) plugs in via pkg/config.go's
// WithLogger option. spec.md §6 names a level vocabulary zap does not
// natively expose (Trace below Debug, Critical above Error, and an
// explicit Off), so this package maps that vocabulary onto zapcore.Level
// arithmetic instead of introducing a second logging framework.
//
// © 2025 corert authors. MIT License.
package corelog

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is corert's log level vocabulary (spec.md §6).
type Level int8

const (
	Trace Level = iota - 2
	Debug
	Info
	Warn
	Error
	Critical
	Off
)

// zapLevel maps a corert Level onto the nearest zapcore.Level. Trace maps
// one notch below zap's Debug; Critical one notch above zap's Error; Off
// is handled by the enabler, not by a zap level, since zap has no "never"
// level of its own.
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case Trace:
		return zapcore.DebugLevel - 1
	case Debug:
		return zapcore.DebugLevel
	case Info:
		return zapcore.InfoLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	case Critical:
		return zapcore.ErrorLevel + 1
	default:
		return zapcore.ErrorLevel + 2
	}
}

// String renders the level the way spec.md §6 names it.
func (l Level) String() string {
	switch l {
	case Trace:
		return "Trace"
	case Debug:
		return "Debug"
	case Info:
		return "Info"
	case Warn:
		return "Warn"
	case Error:
		return "Error"
	case Critical:
		return "Critical"
	default:
		return "Off"
	}
}

// ParseLevel parses the textual level names used by envconfig's log-level
// floor variable. It is case-insensitive.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "trace":
		return Trace, true
	case "debug":
		return Debug, true
	case "info":
		return Info, true
	case "warn", "warning":
		return Warn, true
	case "error":
		return Error, true
	case "critical":
		return Critical, true
	case "off":
		return Off, true
	default:
		return Info, false
	}
}

// Logger is the leveled logger injected into every corert component via the
// service locator (spec.md §4.10) or a constructor option. It wraps a
// *zap.Logger the way pkg/config.go wraps one for arena-cache, adding
// Trace/Critical/Off on top.
type Logger struct {
	z     *zap.Logger
	floor Level
}

// New wraps an existing *zap.Logger with a level floor. A nil logger is
// treated as zap.NewNop(), matching the teacher's defaultConfig behavior.
func New(z *zap.Logger, floor Level) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{z: z, floor: floor}
}

// Nop returns a Logger that discards everything, the default when no
// logger service is registered in the locator.
func Nop() *Logger { return New(zap.NewNop(), Off) }

func (l *Logger) enabled(lvl Level) bool {
	return l != nil && l.floor != Off && lvl >= l.floor
}

func (l *Logger) log(lvl Level, msg string, fields ...zap.Field) {
	if !l.enabled(lvl) {
		return
	}
	l.z.Check(lvl.zapLevel(), msg).Write(fields...)
}

func (l *Logger) Trace(msg string, fields ...zap.Field)    { l.log(Trace, msg, fields...) }
func (l *Logger) Debug(msg string, fields ...zap.Field)    { l.log(Debug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)     { l.log(Info, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)     { l.log(Warn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field)    { l.log(Error, msg, fields...) }
func (l *Logger) Critical(msg string, fields ...zap.Field) { l.log(Critical, msg, fields...) }

// With returns a child Logger with additional structured fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...), floor: l.floor}
}

// Sync flushes any buffered log entries, matching the defer zap.Logger.Sync
// idiom used at process shutdown.
func (l *Logger) Sync() error { return l.z.Sync() }
