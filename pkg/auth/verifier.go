package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	gwerr "github.com/widgetforge/marketplace-gateway/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/widgetforge/marketplace-gateway/pkg/auth"

// Verifier verifies marketplace identity tokens (ES256 JWTs issued by the
// tenant) and produces the request [Identity]. Signing keys are fetched
// from the tenant's public-key endpoint and cached via [KeyResolver].
//
// Verification is idempotent and side-effect free apart from the key cache:
// verifying the same token twice yields the same result, and no token or
// identity state is retained between calls.
//
// Verifier is safe for concurrent use by multiple goroutines.
type Verifier struct {
	config   Config
	tracer   trace.Tracer
	resolver *KeyResolver
}

// NewVerifier creates a Verifier from the given configuration. The
// configuration is validated before use; an error of code
// [gwerr.CodeConfiguration] is returned if it is invalid.
//
// If cfg.HTTPClient is nil, a default [http.Client] with cfg.HTTPTimeout
// is used for key fetches. Zero-valued tuning fields fall back to the
// [DefaultConfig] values.
func NewVerifier(cfg Config) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	defaults := DefaultConfig()
	if cfg.KeyCacheTTL <= 0 {
		cfg.KeyCacheTTL = defaults.KeyCacheTTL
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = defaults.ClockSkew
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaults.HTTPTimeout
	}
	if cfg.TokenQueryParam == "" {
		cfg.TokenQueryParam = defaults.TokenQueryParam
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Verifier{
		config:   cfg,
		tracer:   otel.Tracer(tracerName),
		resolver: NewKeyResolver(cfg.KeyCacheTTL, client),
	}, nil
}

// Config returns a copy of the verifier's effective configuration, with
// defaults applied.
func (v *Verifier) Config() Config { return v.config }

// Verify checks the given token string and returns the identity it encodes.
//
// The method performs the following steps:
//  1. Rejects empty (AUTH_001) and oversized (AUTH_002) tokens
//  2. Resolves the tenant signing key via the key cache
//  3. Verifies signature (ES256 only), issuer, and exp/nbf with the
//     configured clock-skew leeway
//  4. Checks the audience claim against the configured expected audience
//  5. Extracts the mandatory identity claims (user_id, app_id, widget_id)
//
// On failure it returns a *[gwerr.Error] whose code identifies the exact
// reason. Verifying the same token again re-runs every step; results are
// never cached.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Identity, error) {
	ctx, span := startSpan(ctx, v.tracer, "auth.Verify")
	defer span.End()

	if tokenStr == "" {
		err := gwerr.AuthMissing("auth: no token provided")
		finishSpan(span, err)
		return nil, err
	}
	if len(tokenStr) > maxTokenSize {
		err := gwerr.Unauthorized("auth: token exceeds maximum size")
		finishSpan(span, err)
		return nil, err
	}

	keySource, err := v.resolver.Resolve(ctx, v.config.KeyEndpointURL(), v.config.AppSecret)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.key_source", keySource.URL))

	token, parseErr := jwt.Parse(tokenStr,
		func(t *jwt.Token) (any, error) { return keySource.key, nil },
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithIssuer(v.config.IssuerURL()),
		jwt.WithLeeway(v.config.ClockSkew),
	)
	if parseErr != nil {
		classified := classifyTokenError(parseErr)
		finishSpan(span, classified)
		return nil, classified
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		err := gwerr.Unauthorized("auth: unable to extract claims")
		finishSpan(span, err)
		return nil, err
	}

	if err := v.checkAudience(claims); err != nil {
		finishSpan(span, err)
		return nil, err
	}

	identity, err := v.buildIdentity(tokenStr, claims)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("auth.user_id", identity.UserID),
		attribute.Int64("auth.app_id", identity.AppID),
		attribute.Bool("auth.impersonate", identity.Impersonate),
	)

	return identity, nil
}

// checkAudience enforces the expected-audience rule. No expected audience
// configured means no check. An aud claim of any type other than string or
// array-of-string counts as absent. The dev bypass skips the check
// entirely, absence and mismatch alike: AllowDevAudience is set and the
// expected audience is a loopback host.
func (v *Verifier) checkAudience(claims jwt.MapClaims) error {
	expected := v.config.Audience
	if expected == "" {
		return nil
	}
	if v.config.AllowDevAudience && isLoopbackAudience(expected) {
		return nil
	}

	audiences := audienceValues(claims["aud"])
	if len(audiences) == 0 {
		return gwerr.New(gwerr.CodeAuthAudience, "auth: token has no audience claim")
	}

	for _, aud := range audiences {
		if aud == expected {
			return nil
		}
	}
	return gwerr.Newf(gwerr.CodeAuthAudience, "auth: token audience does not include %q", expected)
}

// audienceValues normalizes the aud claim into a slice of strings. A claim
// of any other JSON type yields nil, which callers treat as absent.
func audienceValues(raw any) []string {
	switch aud := raw.(type) {
	case string:
		if aud == "" {
			return nil
		}
		return []string{aud}
	case []any:
		values := make([]string, 0, len(aud))
		for _, entry := range aud {
			if s, ok := entry.(string); ok && s != "" {
				values = append(values, s)
			}
		}
		return values
	default:
		return nil
	}
}

// isLoopbackAudience reports whether the audience string points at a
// loopback host (localhost or a loopback IP). Used to restrict the dev
// audience bypass to local setups.
func isLoopbackAudience(audience string) bool {
	host := audience
	if u, err := url.Parse(audience); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// buildIdentity extracts the mandatory identity claims and assembles the
// Identity value. All claims must be present and valid or the whole
// verification fails; a partially populated identity is never returned.
func (v *Verifier) buildIdentity(tokenStr string, claims jwt.MapClaims) (*Identity, error) {
	userID, err := positiveIntClaim(claims, "user_id")
	if err != nil {
		return nil, err
	}
	appID, err := positiveIntClaim(claims, "app_id")
	if err != nil {
		return nil, err
	}
	widgetID, err := positiveIntClaim(claims, "widget_id")
	if err != nil {
		return nil, err
	}

	impersonate, _ := claims["impersonate"].(bool)

	return &Identity{
		UserID:      userID,
		AppID:       appID,
		WidgetID:    widgetID,
		Impersonate: impersonate,
		Token:       tokenStr,
		TenantURL:   v.config.IssuerURL(),
	}, nil
}

// positiveIntClaim reads the named claim as a positive integer. JSON
// numbers decode as float64 (or json.Number with a custom decoder), so
// both representations are accepted; fractional or non-positive values
// fail the same as a missing claim.
func positiveIntClaim(claims jwt.MapClaims, name string) (int64, error) {
	raw, ok := claims[name]
	if !ok {
		return 0, gwerr.Newf(gwerr.CodeAuthClaims, "auth: token is missing the %s claim", name)
	}

	var value int64
	switch n := raw.(type) {
	case float64:
		value = int64(n)
		if float64(value) != n {
			return 0, gwerr.Newf(gwerr.CodeAuthClaims, "auth: %s claim is not an integer", name)
		}
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, gwerr.Newf(gwerr.CodeAuthClaims, "auth: %s claim is not an integer", name)
		}
		value = parsed
	default:
		return 0, gwerr.Newf(gwerr.CodeAuthClaims, "auth: %s claim is not a number", name)
	}

	if value <= 0 {
		return 0, gwerr.Newf(gwerr.CodeAuthClaims, "auth: %s claim must be a positive integer", name)
	}
	return value, nil
}

// classifyTokenError converts a JWT library error to a *gwerr.Error with
// the matching error code. Errors that already carry a code pass through
// unchanged.
func classifyTokenError(err error) *gwerr.Error {
	if err == nil {
		return nil
	}

	var gwError *gwerr.Error
	if errors.As(err, &gwError) {
		return gwError
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return gwerr.Wrap(err, gwerr.CodeAuthExpired, "auth: token has expired")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return gwerr.Wrap(err, gwerr.CodeAuthExpired, "auth: token is not yet valid")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return gwerr.Wrap(err, gwerr.CodeAuthSignature, "auth: token signature is invalid")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return gwerr.Wrap(err, gwerr.CodeAuthIssuer, "auth: token issuer is invalid")
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		// Issuer is the only claim the parser is told to require, so a
		// required-claim failure means the iss claim is absent.
		return gwerr.Wrap(err, gwerr.CodeAuthIssuer, "auth: token is missing the iss claim")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return gwerr.Wrap(err, gwerr.CodeAuthInvalid, "auth: token is malformed")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return gwerr.Wrap(err, gwerr.CodeAuthSignature, "auth: token is unverifiable")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return gwerr.Wrap(err, gwerr.CodeAuthAudience, "auth: token audience is invalid")
	default:
		return gwerr.Wrap(err, gwerr.CodeAuthInvalid, "auth: token verification failed")
	}
}

// UserMessage maps a verification error to a message safe to surface to
// API consumers. It deliberately collapses detail for security-sensitive
// failures and keeps an actionable hint for recoverable ones.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch gwerr.GetCode(err) {
	case gwerr.CodeAuthExpired:
		return "token has expired, please refresh"
	case gwerr.CodeAuthSignature:
		return "invalid token signature, check configuration"
	default:
		return fmt.Sprintf("verification failed: %s", err.Error())
	}
}

// startSpan creates a new OpenTelemetry span with the given name. Returns
// the updated context and span.
func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// finishSpan records an error on the span if err is non-nil and sets the
// span status to Error.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
