package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yanun0323/logs"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// backend maps a Level onto the logs package's levels. Anything above error
// only lets fatal entries through.
func (l Level) backend() logs.Level {
	switch l {
	case LevelDebug:
		return logs.LevelDebug
	case LevelInfo:
		return logs.LevelInfo
	case LevelWarning:
		return logs.LevelWarn
	case LevelError:
		return logs.LevelError
	default:
		return logs.LevelFatal
	}
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarning
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes "[name] LEVEL: message" entries through a logs.Logger, which
// drops anything below the minimum level.
type Logger struct {
	name    string
	min     Level
	backend logs.Logger
}

// New writes colored console entries to stdout.
func New(name string, min Level) *Logger {
	return &Logger{
		name:    name,
		min:     min,
		backend: logs.New(min.backend(), &logs.Option{Format: logs.FormatConsole, Output: os.Stdout}),
	}
}

// NewWithWriter writes uncolored key=value entries to w.
func NewWithWriter(w io.Writer, name string, min Level) *Logger {
	return &Logger{
		name:    name,
		min:     min,
		backend: logs.New(min.backend(), &logs.Option{Format: logs.FormatText, Output: w}),
	}
}

// Named returns a logger for a sub-component sharing the same output and level.
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:    name,
		min:     l.min,
		backend: l.backend.With("component", name),
	}
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "discard", LevelError+1)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.backend.Debug(l.line(LevelDebug.String(), format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.backend.Info(l.line(LevelInfo.String(), format, args...))
}

func (l *Logger) Warning(format string, args ...interface{}) {
	l.backend.Warn(l.line(LevelWarning.String(), format, args...))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.backend.Error(l.line(LevelError.String(), format, args...))
}

// Fatal logs and exits the process. Only binaries call it.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.backend.Fatal(l.line("FATAL", format, args...))
}

func (l *Logger) line(level, format string, args ...interface{}) string {
	return fmt.Sprintf("[%s] %s: %s", l.name, level, fmt.Sprintf(format, args...))
}
