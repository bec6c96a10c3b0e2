package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger adapts zerolog to the ports.Logger field-map interface.
type ZeroLogger struct {
	log zerolog.Logger
}

// New writes human-readable lines to w. Debug and info are only emitted when verbose.
func New(w io.Writer, verbose bool) *ZeroLogger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return &ZeroLogger{
		log: zerolog.New(console).Level(level).With().Timestamp().Logger(),
	}
}

// Nop discards everything; used by tests and headless callers.
func Nop() *ZeroLogger {
	return &ZeroLogger{log: zerolog.Nop()}
}

// With returns a child logger that always carries the given field.
func (l *ZeroLogger) With(key string, value interface{}) *ZeroLogger {
	return &ZeroLogger{log: l.log.With().Interface(key, value).Logger()}
}

func (l *ZeroLogger) Debug(msg string, fields map[string]interface{}) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZeroLogger) Info(msg string, fields map[string]interface{}) {
	l.log.Info().Fields(fields).Msg(msg)
}

func (l *ZeroLogger) Warn(msg string, fields map[string]interface{}) {
	l.log.Warn().Fields(fields).Msg(msg)
}

func (l *ZeroLogger) Error(msg string, err error, fields map[string]interface{}) {
	l.log.Error().Err(err).Fields(fields).Msg(msg)
}
