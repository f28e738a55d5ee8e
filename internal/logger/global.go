package logger

import (
	"log/slog"
	"time"
)

// LogRequest logs one handled HTTP request.
func LogRequest(method, path string, status int, duration time.Duration) {
	slog.Info("Request handled",
		slog.String("type", "http"),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("took", duration),
	)
}

// LogEngine logs an auction engine event.
func LogEngine(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "engine")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogSystem logs a lifecycle/system event.
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs an error event with its cause.
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
