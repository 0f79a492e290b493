package auth

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request correlation ID on HTTP responses and
// propagated requests.
const HeaderRequestID = "X-Request-Id"

// MiddlewareOptions tunes the behavior of [Middleware].
type MiddlewareOptions struct {
	// RequireAuth controls the response to requests that carry no token
	// at all. When true, such requests are rejected with 401. When false,
	// they pass through anonymously and handlers decide via
	// [IdentityFromContext] whether identity is needed.
	//
	// A token that is present but fails verification is rejected with
	// 401 regardless of this setting.
	RequireAuth bool
}

// Middleware returns an HTTP middleware that extracts the marketplace
// identity token from each incoming request, verifies it, and stores the
// resulting [Identity] in the request context.
//
// The token is looked up in the configured query parameter first, then in
// the Authorization header (bearer scheme). Each request is also assigned
// a uuid request ID, stored in the context and echoed on the X-Request-Id
// response header for log correlation.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/widgets", handleWidgets)
//	handler := auth.Middleware(verifier, auth.MiddlewareOptions{RequireAuth: true})(mux)
//	http.ListenAndServe(":8080", handler)
func Middleware(verifier *Verifier, opts MiddlewareOptions) func(http.Handler) http.Handler {
	queryParam := verifier.Config().TokenQueryParam

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			ctx := ContextWithRequestID(r.Context(), requestID)
			w.Header().Set(HeaderRequestID, requestID)

			token := ExtractToken(r, queryParam)
			if token == "" {
				if opts.RequireAuth {
					http.Error(w, "missing authorization token", http.StatusUnauthorized)
					return
				}
				// Anonymous pass-through. Absence of a token is not an
				// error at this layer.
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			identity, err := verifier.Verify(ctx, token)
			if err != nil {
				slog.WarnContext(ctx, "auth: token verification failed",
					"error", err,
					"request_id", requestID,
				)
				http.Error(w, UserMessage(err), http.StatusUnauthorized)
				return
			}

			ctx = ContextWithIdentity(ctx, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ImpersonatingRoundTripper wraps an [http.RoundTripper] to authenticate
// outgoing tenant API requests. It reads the verified [Identity] from the
// request context and sets the Authorization header accordingly: the
// composite form when the identity carries the impersonation flag, the
// service-only form otherwise.
//
// The header value is recomputed on every round trip and never stored.
//
// Example:
//
//	client := &http.Client{
//	    Transport: auth.NewImpersonatingRoundTripper(cfg.AppSecret, http.DefaultTransport),
//	}
//	resp, err := client.Do(req.WithContext(ctx))
type ImpersonatingRoundTripper struct {
	credential Secret
	wrapped    http.RoundTripper
}

// NewImpersonatingRoundTripper creates an ImpersonatingRoundTripper that
// wraps the given transport. If transport is nil, [http.DefaultTransport]
// is used.
func NewImpersonatingRoundTripper(credential Secret, transport http.RoundTripper) *ImpersonatingRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &ImpersonatingRoundTripper{
		credential: credential,
		wrapped:    transport,
	}
}

// RoundTrip executes the HTTP request with the tenant authorization header
// injected. The request is cloned before modification; the caller's request
// is never mutated.
//
// RoundTrip implements the [http.RoundTripper] interface.
func (t *ImpersonatingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	var identityToken string
	if identity, ok := IdentityFromContext(r.Context()); ok && identity.Impersonate {
		identityToken = identity.Token
	}

	clone := r.Clone(r.Context())
	clone.Header.Set(HeaderAuthorization, BuildAuthHeader(t.credential, identityToken))

	if requestID := RequestIDFromContext(r.Context()); requestID != "" {
		clone.Header.Set(HeaderRequestID, requestID)
	}

	return t.wrapped.RoundTrip(clone)
}
