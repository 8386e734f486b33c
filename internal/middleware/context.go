package middleware

import (
	"context"
)

type contextKey struct{ name string }

var schemeCtxKey = &contextKey{"scheme"}

// WithScheme stores the externally visible request scheme in ctx.
func WithScheme(ctx context.Context, scheme string) context.Context {
	return context.WithValue(ctx, schemeCtxKey, scheme)
}

// Scheme returns the scheme stored by ProxyHeaders, or empty string if none.
func Scheme(ctx context.Context) string {
	scheme, ok := ctx.Value(schemeCtxKey).(string)
	if ok {
		return scheme
	}
	return ""
}
