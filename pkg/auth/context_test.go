package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityContext_RoundTrip(t *testing.T) {
	t.Parallel()
	identity := &Identity{UserID: 1, AppID: 2, WidgetID: 3, Token: "tok", TenantURL: "https://tenant.example"}

	ctx := ContextWithIdentity(context.Background(), identity)
	got, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, identity, got)
}

func TestIdentityFromContext_Absent(t *testing.T) {
	t.Parallel()
	got, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestIdentityFromContext_NilIdentity(t *testing.T) {
	t.Parallel()
	ctx := ContextWithIdentity(context.Background(), nil)
	_, ok := IdentityFromContext(ctx)
	assert.False(t, ok, "a nil identity counts as absent")
}

func TestMustIdentityFromContext_PanicsWhenAbsent(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		MustIdentityFromContext(context.Background())
	})
}

func TestMustIdentityFromContext_ReturnsIdentity(t *testing.T) {
	t.Parallel()
	identity := &Identity{UserID: 1, AppID: 2, WidgetID: 3}
	ctx := ContextWithIdentity(context.Background(), identity)
	assert.Same(t, identity, MustIdentityFromContext(ctx))
}

func TestRequestIDContext_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := ContextWithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestIDFromContext(ctx))
}

func TestRequestIDFromContext_Absent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestTraceIDFromContext_NoSpan(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", TraceIDFromContext(context.Background()))
	assert.Equal(t, "", SpanIDFromContext(context.Background()))
}
