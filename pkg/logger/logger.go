package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging facade used across the service. Messages carry
// alternating key/value pairs, e.g. log.Error("Failed to merge", "error", err).
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

type zerologLogger struct {
	zl zerolog.Logger
}

func New(level string) Logger {
	lvl := parseLevel(level)
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
	return &zerologLogger{zl: zl}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *zerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.zl.Debug().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologLogger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Info().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.zl.Warn().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologLogger) Error(msg string, keysAndValues ...interface{}) {
	l.zl.Error().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologLogger) Fatal(msg string, keysAndValues ...interface{}) {
	l.zl.Fatal().Fields(fields(keysAndValues)).Msg(msg)
}

func (l *zerologLogger) With(keysAndValues ...interface{}) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(fields(keysAndValues)).Logger()}
}

// fields converts alternating key/value pairs into a map zerolog accepts.
// An odd trailing key is kept with a nil value rather than dropped.
func fields(keysAndValues []interface{}) map[string]interface{} {
	if len(keysAndValues) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if i+1 < len(keysAndValues) {
			m[key] = keysAndValues[i+1]
		} else {
			m[key] = nil
		}
	}
	return m
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}
