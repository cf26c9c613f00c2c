package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is a service-scoped structured logger. Every entry carries the
// service name and hostname alongside an action tag and free-form fields.
type Logger struct{ zl zerolog.Logger }

func New(service string) *Logger { return NewWithWriter(service, os.Stdout) }

// NewWithWriter is used by tests to capture or discard output.
func NewWithWriter(service string, w io.Writer) *Logger {
	host, _ := os.Hostname()
	zl := zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Str("hostname", host).
		Logger()
	return &Logger{zl: zl}
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.zl.Info().Fields(fields).Str("action", action).Msg(action)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.zl.Debug().Fields(fields).Str("action", action).Msg(action)
}

func (l *Logger) Warn(action string, fields map[string]any) {
	l.zl.Warn().Fields(fields).Str("action", action).Msg(action)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.zl.Error().Err(err).Fields(fields).Str("action", action).Msg(action)
}

// Discard returns a logger whose output is dropped, for use in tests.
func Discard() *Logger { return NewWithWriter("test", io.Discard) }
