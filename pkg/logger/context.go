package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// With stores a child logger carrying the extra attributes in the context.
// Middleware uses this to stamp request id and actor onto every log line
// downstream.
func With(ctx context.Context, attrs ...any) context.Context {
	return context.WithValue(ctx, ctxKey{}, From(ctx).With(attrs...))
}

// From returns the request-scoped logger, falling back to the process logger.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return L()
}
