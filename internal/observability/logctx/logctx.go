// Package logctx carries the request- or event-scoped logger on a context.
package logctx

import (
	"context"

	"github.com/Zhima-Mochi/ecomarket/internal/observability"
)

type key struct{}

func With(ctx context.Context, l observability.Logger) context.Context {
	if ctx == nil || l == nil {
		return ctx
	}
	return context.WithValue(ctx, key{}, l)
}

// From returns the scoped logger, or nil when none is set.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(key{}).(observability.Logger)
	return l
}

func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if l := From(ctx); l != nil {
		return l
	}
	if fallback == nil {
		return observability.NopLogger()
	}
	return fallback
}

// Scope derives a child of the context logger (or fallback) carrying fields and stores it on ctx.
func Scope(ctx context.Context, fallback observability.Logger, fields ...observability.Field) (context.Context, observability.Logger) {
	l := FromOr(ctx, fallback)
	if len(fields) > 0 {
		l = l.With(fields...)
	}
	return With(ctx, l), l
}
