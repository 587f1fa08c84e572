package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// With attaches the given fields to the request-scoped logger and stores the
// result back in the context, so downstream handlers inherit request_id,
// staff_id and friends without threading a logger explicitly.
func With(ctx context.Context, fields ...any) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, From(ctx).With(fields...))
}

// From recovers the request-scoped logger, falling back to the process-wide
// one when the context never went through With.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return LoggerWrapper()
}
