package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// With stores a child of the request logger carrying fields.
func With(ctx context.Context, fields ...any) context.Context {
	return context.WithValue(ctx, contextKey{}, From(ctx).With(fields...))
}

// From returns the request logger, falling back to the process logger.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return LoggerWrapper()
}
