package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a logger or sink emits.
type Level int8

// Supported severities. CRITICAL rides on zap's DPanic level, which never
// panics outside development loggers.
const (
	DebugLevel    = Level(zapcore.DebugLevel)
	InfoLevel     = Level(zapcore.InfoLevel)
	WarningLevel  = Level(zapcore.WarnLevel)
	ErrorLevel    = Level(zapcore.ErrorLevel)
	CriticalLevel = Level(zapcore.DPanicLevel)
)

// ParseLevel maps a configuration string onto a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarningLevel, nil
	case "error":
		return ErrorLevel, nil
	case "critical", "fatal":
		return CriticalLevel, nil
	default:
		return DebugLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// String returns the upper-case level name written by the file sink.
func (l Level) String() string {
	return levelName(l.zap())
}

// Enabled implements zapcore.LevelEnabler.
func (l Level) Enabled(lvl zapcore.Level) bool {
	return lvl >= l.zap()
}

func (l Level) zap() zapcore.Level {
	return zapcore.Level(l)
}

func levelName(lvl zapcore.Level) string {
	switch {
	case lvl <= zapcore.DebugLevel:
		return "DEBUG"
	case lvl == zapcore.InfoLevel:
		return "INFO"
	case lvl == zapcore.WarnLevel:
		return "WARNING"
	case lvl == zapcore.ErrorLevel:
		return "ERROR"
	default:
		return "CRITICAL"
	}
}
