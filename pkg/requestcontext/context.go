// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them; services and stores read them.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	caller, ok := requestcontext.CallerFrom(ctx)
package requestcontext

import (
	"context"
	"time"

	id "stmtguard/pkg/domain"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	callerKey      struct{}
)

var (
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyCaller      = callerKey{}
)

// Caller identifies the authenticated principal behind a request.
type Caller struct {
	Subject string
	RealmID id.RealmID
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// CallerFrom returns the authenticated caller, if any.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ContextKeyCaller).(Caller)
	return c, ok
}

// WithCaller injects the authenticated caller into the context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, c)
}
