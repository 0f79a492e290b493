package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widgetforge/marketplace-gateway/internal/testutil"
)

func TestMiddleware_ValidToken(t *testing.T) {
	t.Parallel()
	v, key, srv, _ := newTestVerifier(t, nil)
	token := signedToken(t, key, srv.URL, nil)

	var seen *Identity
	handler := Middleware(v, MiddlewareOptions{RequireAuth: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = IdentityFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))

	r := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	r.Header.Set(HeaderAuthorization, "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(1), seen.UserID)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID), "request ID should be echoed")
}

func TestMiddleware_TokenFromQueryParam(t *testing.T) {
	t.Parallel()
	v, key, srv, _ := newTestVerifier(t, nil)
	token := signedToken(t, key, srv.URL, nil)

	handler := Middleware(v, MiddlewareOptions{RequireAuth: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	r := httptest.NewRequest(http.MethodGet, "/widgets?token="+token, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMiddleware_MissingToken_Required(t *testing.T) {
	t.Parallel()
	v, _, _, _ := newTestVerifier(t, nil)

	handler := Middleware(v, MiddlewareOptions{RequireAuth: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run for unauthenticated requests")
		}))

	r := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_MissingToken_Optional(t *testing.T) {
	t.Parallel()
	v, _, _, _ := newTestVerifier(t, nil)

	var sawIdentity bool
	handler := Middleware(v, MiddlewareOptions{RequireAuth: false})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, sawIdentity = IdentityFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	r := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code, "anonymous request passes through in optional mode")
	assert.False(t, sawIdentity)
}

func TestMiddleware_InvalidToken_AlwaysRejected(t *testing.T) {
	t.Parallel()
	v, _, srv, _ := newTestVerifier(t, nil)

	// Signed by a key the server does not know.
	otherKey := testutil.GenerateES256Key(t)
	token := signedToken(t, otherKey, srv.URL, nil)

	handler := Middleware(v, MiddlewareOptions{RequireAuth: false})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run for an invalid token, even in optional mode")
		}))

	r := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	r.Header.Set(HeaderAuthorization, "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token signature")
}

// ---------------------------------------------------------------------------
// ImpersonatingRoundTripper
// ---------------------------------------------------------------------------

// captureTransport records the last request it saw and returns 200.
type captureTransport struct {
	last *http.Request
}

func (c *captureTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.last = r
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestImpersonatingRoundTripper_ServiceOnly(t *testing.T) {
	t.Parallel()
	capture := &captureTransport{}
	rt := NewImpersonatingRoundTripper(Secret("cred"), capture)

	r := httptest.NewRequest(http.MethodGet, "https://tenant.example/api/v1/widgets", nil)
	_, err := rt.RoundTrip(r)
	require.NoError(t, err)

	assert.Equal(t, "Bearer cred", capture.last.Header.Get(HeaderAuthorization))
}

func TestImpersonatingRoundTripper_Impersonation(t *testing.T) {
	t.Parallel()
	capture := &captureTransport{}
	rt := NewImpersonatingRoundTripper(Secret("cred"), capture)

	identity := &Identity{UserID: 1, AppID: 2, WidgetID: 3, Impersonate: true, Token: "user-tok"}
	ctx := ContextWithIdentity(ContextWithRequestID(context.Background(), "rid-1"), identity)

	r := httptest.NewRequest(http.MethodGet, "https://tenant.example/api/v1/widgets", nil).WithContext(ctx)
	_, err := rt.RoundTrip(r)
	require.NoError(t, err)

	assert.Equal(t, "Bearer cred:user-tok", capture.last.Header.Get(HeaderAuthorization))
	assert.Equal(t, "rid-1", capture.last.Header.Get(HeaderRequestID))
}

func TestImpersonatingRoundTripper_IdentityWithoutImpersonation(t *testing.T) {
	t.Parallel()
	capture := &captureTransport{}
	rt := NewImpersonatingRoundTripper(Secret("cred"), capture)

	identity := &Identity{UserID: 1, AppID: 2, WidgetID: 3, Impersonate: false, Token: "user-tok"}
	r := httptest.NewRequest(http.MethodGet, "https://tenant.example/api/v1/widgets", nil)
	r = r.WithContext(ContextWithIdentity(r.Context(), identity))

	_, err := rt.RoundTrip(r)
	require.NoError(t, err)

	assert.Equal(t, "Bearer cred", capture.last.Header.Get(HeaderAuthorization),
		"identity without the impersonation flag uses the service-only header")
}

func TestImpersonatingRoundTripper_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()
	capture := &captureTransport{}
	rt := NewImpersonatingRoundTripper(Secret("cred"), capture)

	r := httptest.NewRequest(http.MethodGet, "https://tenant.example/api/v1/widgets", nil)
	_, err := rt.RoundTrip(r)
	require.NoError(t, err)

	assert.Empty(t, r.Header.Get(HeaderAuthorization), "caller's request must stay untouched")
}
