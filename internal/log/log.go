// Package log provides the ambient structured logger used by the registry
// and dispatcher to trace mutations and dispatch decisions: a small Logger
// interface in front of zerolog, with an optional rotating file sink.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the leveled, structured sink used throughout httpmock. It is
// intentionally minimal: key-value pairs, no format strings.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// Nop returns a Logger that discards everything. It is the default: a test
// library must never force a host to configure logging.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// zlog adapts zerolog.Logger to the Logger interface.
type zlog struct {
	l zerolog.Logger
}

// Option configures New.
type Option func(*zerolog.Logger)

// WithLevel sets the minimum level logged.
func WithLevel(level string) Option {
	return func(l *zerolog.Logger) {
		if lvl, err := zerolog.ParseLevel(level); err == nil {
			*l = l.Level(lvl)
		}
	}
}

// WithRotatingFile adds a lumberjack-rotated file sink at path, writing
// alongside any console sink already configured.
func WithRotatingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(l *zerolog.Logger) {
		fileWriter := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
		*l = l.Output(zerolog.MultiLevelWriter(consoleWriter(), fileWriter))
	}
}

func consoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr}
}

// New builds a zerolog-backed Logger. With no options it logs to stderr at
// info level.
func New(opts ...Option) Logger {
	base := zerolog.New(consoleWriter()).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	for _, opt := range opts {
		opt(&base)
	}
	return &zlog{l: base}
}

func fields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	return e
}

func (z *zlog) Debug(msg string, kv ...any) { fields(z.l.Debug(), kv).Msg(msg) }
func (z *zlog) Info(msg string, kv ...any)  { fields(z.l.Info(), kv).Msg(msg) }
func (z *zlog) Warn(msg string, kv ...any)  { fields(z.l.Warn(), kv).Msg(msg) }
func (z *zlog) Error(msg string, kv ...any) { fields(z.l.Error(), kv).Msg(msg) }
