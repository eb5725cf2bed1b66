package logger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Ctx retrieves the run-scoped logger from context.
// Falls back to the process logger if not found.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return Get()
}

// WithLogger stores an enriched logger in context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// With returns a context whose logger carries the given fields
// on top of whatever logger ctx already holds.
func With(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, Ctx(ctx).With(args...))
}
