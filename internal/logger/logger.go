// Package logger provides structured logging for the service.  It wraps
// log/slog with a few helpers for the fields that recur across the API,
// the engine and the notification pipeline.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request ID.
	RequestIDKey contextKey = "request_id"
	// ActorIDKey is the context key for the authenticated actor ID.
	ActorIDKey contextKey = "actor_id"
)

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// New returns a JSON logger at info level, or a text logger at debug level
// when env is "development".
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter is New writing to w.
func NewWithWriter(env string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything.  Used by tests and as the
// default when no logger is injected.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns a logger carrying request_id and actor_id from ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	out := l
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		out = &Logger{Logger: out.With(slog.String("request_id", id))}
	}
	if id, ok := ctx.Value(ActorIDKey).(string); ok && id != "" {
		out = &Logger{Logger: out.With(slog.String("actor_id", id))}
	}
	return out
}

// Component returns a logger with the given component name attached.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", name))}
}

// StoreError logs a persistence failure.
func (l *Logger) StoreError(operation string, err error) {
	l.Error("store_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// Transition logs a successful state change.
func (l *Logger) Transition(negotiationID, action, from, to string, version int64) {
	l.Debug("negotiation_transition",
		slog.String("negotiation_id", negotiationID),
		slog.String("action", action),
		slog.String("from", from),
		slog.String("to", to),
		slog.Int64("version", version),
	)
}

// HTTPRequest logs a served request.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// RateLimitExceeded logs a rejected request.
func (l *Logger) RateLimitExceeded(key, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("key", key),
		slog.String("path", path),
	)
}
