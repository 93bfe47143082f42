package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger keeps the printf-style helpers used by the commands on top of a
// zerolog logger that the loader consumes directly.
type Logger struct {
	Debug bool
	zl    zerolog.Logger
}

func NewLogger(debug bool) *Logger {
	return NewLoggerTo(os.Stderr, debug, false)
}

// NewLoggerTo writes to out, as JSON lines when jsonOut is set and as
// console text otherwise.
func NewLoggerTo(out io.Writer, debug, jsonOut bool) *Logger {
	w := out
	if !jsonOut {
		w = zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: "15:04:05"}
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return &Logger{
		Debug: debug,
		zl:    zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// Zerolog returns the structured logger for a component.
func (l *Logger) Zerolog(component string) zerolog.Logger {
	return l.zl.With().Str("component", component).Logger()
}

func (l *Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msg(line(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.zl.Info().Msg(line(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.zl.Error().Msg(line(format, args...))
}

func line(format string, args ...any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
