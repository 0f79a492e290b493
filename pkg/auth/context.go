package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type for context keys defined in this
// package, preventing collisions with keys from other packages.
type contextKey int

const (
	identityKey contextKey = iota
	requestIDKey
)

// ContextWithIdentity returns a copy of ctx carrying the verified identity.
// Identity never travels through globals; every consumer reads it from the
// request context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the verified identity from ctx. The second
// return value is false when no identity is attached, which callers treat
// as an anonymous request.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok && identity != nil
}

// MustIdentityFromContext extracts the verified identity from ctx and
// panics if none is attached. Use only on handlers behind middleware that
// enforces authentication.
func MustIdentityFromContext(ctx context.Context) *Identity {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		panic("auth: no identity in context")
	}
	return identity
}

// ContextWithRequestID returns a copy of ctx carrying a request ID for log
// correlation.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from ctx, or "" when none is
// set.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}

// TraceIDFromContext returns the current trace ID from ctx, or "" when no
// span is recording.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanIDFromContext returns the current span ID from ctx, or "" when no
// span is recording.
func SpanIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}
