// Package logger provides structured logging for the mediator and provider
// services.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with service-specific helpers.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // console output for development
	Output     io.Writer
	Service    string
	WithCaller bool
}

// New creates a logger. Unknown levels fall back to info.
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	service := cfg.Service
	if service == "" {
		service = "rdgmed"
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", service).
		Logger()
	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zlog
}

func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// With returns a child logger carrying an extra string field.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(key, value).Logger()}
}

// LogRequest logs a completed HTTP request. Server errors log at error
// level, client errors at warn.
func (l *Logger) LogRequest(method, path string, status int, duration time.Duration) {
	event := l.zlog.Info()
	switch {
	case status >= 500:
		event = l.zlog.Error()
	case status >= 400:
		event = l.zlog.Warn()
	}
	event.
		Str("component", "http").
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration_ms", duration).
		Msg("request completed")
}

// LogProviderCall logs a round trip to a provider service.
func (l *Logger) LogProviderCall(operation, url string, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Warn().Err(err)
	}
	event.
		Str("component", "provider_client").
		Str("operation", operation).
		Str("url", url).
		Dur("duration_ms", duration).
		Msg("provider call completed")
}

// LogServerStart logs that a service is about to listen.
func (l *Logger) LogServerStart(name, addr string) {
	l.zlog.Info().
		Str("event", "server_start").
		Str("server", name).
		Str("addr", addr).
		Msg("server starting")
}

// LogServerShutdown logs a graceful shutdown.
func (l *Logger) LogServerShutdown(name string) {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Str("server", name).
		Msg("server shutting down")
}
