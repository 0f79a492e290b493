// Package auth implements the JWT verification and impersonation pipeline
// for the marketplace gateway.
//
// A caller presents a signed token asserting its identity and scoping claims
// (user, application, widget, issuer, impersonation flag). This package
// verifies the token's signature and claims against the tenant's remotely
// fetched public key set, extracts a trusted [Identity], carries it through
// request handling via request-scoped context, and constructs the
// impersonation-aware authorization header used for outbound calls to the
// tenant API.
//
// Pipeline:
//
//	inbound request -> ExtractToken -> Verifier.Verify (consults KeyResolver,
//	may hit the network) -> ContextWithIdentity -> outbound call reads the
//	context and emits the appropriate authorization header.
//
// Security:
//
// An [Identity] exists only after successful verification; it is never
// partially populated. Verification accepts ES256 signatures only and checks
// issuer, expiry (with clock tolerance), audience, and the mandatory identity
// claims. The audience check has an explicit, configuration-gated development
// bypass; see [Config.AllowDevAudience].
package auth

import "log/slog"

// Secret is a string type that redacts its value in String(), GoString(),
// and MarshalText() to prevent accidental exposure in logs, JSON output, or
// fmt.Printf. The actual value is only accessible via the [Secret.Value]
// method, which should be called only where the raw value is truly needed
// (e.g., constructing an authorization header).
type Secret string

// secretRedacted is the placeholder text shown instead of the actual secret
// value when the secret is printed, formatted, or serialized.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder, preventing the secret from being
// printed via fmt.Println, log.Printf, or similar functions.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder, preventing the secret from being
// printed via fmt.Printf("%#v", secret).
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string. This is the only way to access the
// underlying value and should be used only where the raw secret is required.
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder. This prevents the secret from leaking into JSON, YAML, or
// any other text-based serialization format.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// Identity is the trusted, verified representation of a caller's assertion.
// It is constructed only by [Verifier.Verify] after all signature and claim
// checks pass, is immutable, and is discarded at the end of request handling
// (no persistence).
//
// All identifying fields are always populated: a partially verified identity
// is never produced. Callers observe "no identity" as the absence of a value
// in the request context, not as a zero-valued Identity.
type Identity struct {
	// UserID identifies the end user the token was issued for.
	// Always a positive integer.
	UserID int64

	// AppID identifies the marketplace application making the call.
	// Always a positive integer.
	AppID int64

	// WidgetID identifies the widget instance within the application.
	// Always a positive integer.
	WidgetID int64

	// Impersonate indicates that outbound calls must be made *as* the
	// identified user rather than as the service itself. When true, the
	// authorization builder emits the composite service:user header.
	Impersonate bool

	// Token is the original signed token string, carried opaquely for
	// reuse in outbound impersonation. It is never re-parsed after
	// verification.
	Token string

	// TenantURL is the trusted issuer origin asserted and verified on the
	// token (the iss claim).
	TenantURL string
}

// LogValue implements [slog.LogValuer], producing a structured description
// of the identity that excludes the raw token.
func (id *Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("user_id", id.UserID),
		slog.Int64("app_id", id.AppID),
		slog.Int64("widget_id", id.WidgetID),
		slog.Bool("impersonate", id.Impersonate),
		slog.String("tenant_url", id.TenantURL),
	)
}
