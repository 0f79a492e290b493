package auth

import (
	"net/http"
	"strings"
	"time"

	gwerr "github.com/widgetforge/marketplace-gateway/pkg/errors"
)

// HTTPClient abstracts the HTTP client used for fetching the tenant's
// public-key set. This allows callers to provide custom HTTP clients with
// specific timeouts, transport settings, or middleware.
//
// The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTokenQueryParam is the URL query parameter checked for a token
// before the Authorization header.
const DefaultTokenQueryParam = "token"

// keyEndpointPath is the tenant API path serving the JSON Web Key Set used
// to verify token signatures.
const keyEndpointPath = "/api/v1/marketplace/public-key"

// apiBasePath is the tenant API path prefix for all proxied calls.
const apiBasePath = "/api/v1"

// maxTokenSize is the maximum accepted size for a JWT token string (8 KB).
// Tokens larger than this are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// Config holds the configuration for [Verifier]. It identifies the single
// trusted tenant (token issuer and key source), carries the service
// credential, and controls caching, clock tolerance, and the
// development-only audience bypass.
//
// Config is loaded once at process start; missing TenantDomain or AppSecret
// is a fatal startup condition.
type Config struct {
	// TenantDomain is the base domain of the trusted tenant (e.g.,
	// "tenant.example"). The issuer URL, key endpoint, and API base are all
	// derived from it. A scheme may be included; https is assumed
	// otherwise. Required.
	TenantDomain string `json:"tenant_domain" yaml:"tenant_domain" env:"TENANT_DOMAIN" required:"true"`

	// AppSecret is the long-lived credential identifying this service to
	// the tenant API. It authenticates the public-key fetch and prefixes
	// every outbound authorization header. The Secret type prevents
	// accidental logging. Required.
	AppSecret Secret `json:"-" yaml:"-" env:"APP_SECRET" required:"true"`

	// Audience is the expected "aud" claim in verified tokens. If empty,
	// the audience claim is not validated. This field is optional.
	Audience string `json:"audience,omitempty" yaml:"audience,omitempty" env:"AUDIENCE"`

	// AllowDevAudience gates the development-only audience bypass: when
	// true AND the expected audience resolves to a loopback host, the
	// audience check is skipped entirely (missing and mismatched aud
	// claims both pass). With the flag off (the default), missing and
	// mismatched audiences fail verification.
	AllowDevAudience bool `json:"allow_dev_audience" yaml:"allow_dev_audience" env:"ALLOW_DEV_AUDIENCE" envDefault:"false"`

	// KeyCacheTTL is the time a validated key source is cached before the
	// key endpoint is re-validated. Bounds staleness if the tenant rotates
	// keys without this service restarting. Must be non-negative.
	// Defaults to 1 hour.
	KeyCacheTTL time.Duration `json:"key_cache_ttl" yaml:"key_cache_ttl" env:"KEY_CACHE_TTL" envDefault:"1h"`

	// ClockSkew is the maximum allowed clock difference between this
	// service and the token issuer, applied to exp and nbf in either
	// direction. Must be non-negative. Defaults to 30 seconds.
	ClockSkew time.Duration `json:"clock_skew" yaml:"clock_skew" env:"CLOCK_SKEW" envDefault:"30s"`

	// HTTPTimeout bounds key-fetch network calls when no HTTPClient is
	// injected. Defaults to 10 seconds.
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout" env:"HTTP_TIMEOUT" envDefault:"10s"`

	// TokenQueryParam is the URL query parameter checked for a token
	// before the Authorization header. Defaults to "token".
	TokenQueryParam string `json:"token_query_param" yaml:"token_query_param" env:"TOKEN_QUERY_PARAM" envDefault:"token"`

	// HTTPClient is the HTTP client used for fetching the tenant's key
	// set. If nil, a default [http.Client] with HTTPTimeout is used.
	HTTPClient HTTPClient `json:"-" yaml:"-"`
}

// Validate checks the configuration for logical correctness and returns
// a *[gwerr.Error] with code [gwerr.CodeConfiguration] if any field is
// invalid. TenantDomain and AppSecret presence is enforced here as well as
// by the loader's required tags, so a hand-constructed Config gets the same
// guarantees.
func (c *Config) Validate() error {
	if c.TenantDomain == "" {
		return gwerr.Configuration("auth: tenant domain must not be empty")
	}
	if c.AppSecret.Value() == "" {
		return gwerr.Configuration("auth: app secret must not be empty")
	}
	if strings.Contains(c.AppSecret.Value(), ":") {
		// The colon delimits the composite impersonation header; a
		// credential containing one would be ambiguous upstream.
		return gwerr.Configuration("auth: app secret must not contain ':'")
	}
	if c.KeyCacheTTL < 0 {
		return gwerr.Configuration("auth: key cache TTL must be non-negative")
	}
	if c.ClockSkew < 0 {
		return gwerr.Configuration("auth: clock skew must be non-negative")
	}
	if c.HTTPTimeout < 0 {
		return gwerr.Configuration("auth: HTTP timeout must be non-negative")
	}
	return nil
}

// DefaultConfig returns a Config with production defaults. TenantDomain and
// AppSecret must still be supplied; the dev audience bypass is off.
func DefaultConfig() Config {
	return Config{
		AllowDevAudience: false,
		KeyCacheTTL:      1 * time.Hour,
		ClockSkew:        30 * time.Second,
		HTTPTimeout:      10 * time.Second,
		TokenQueryParam:  DefaultTokenQueryParam,
	}
}

// IssuerURL returns the trusted issuer origin derived from TenantDomain.
// Tokens whose iss claim differs from this value are rejected.
func (c *Config) IssuerURL() string {
	domain := strings.TrimRight(c.TenantDomain, "/")
	if strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}

// KeyEndpointURL returns the tenant endpoint serving the JSON Web Key Set.
func (c *Config) KeyEndpointURL() string {
	return c.IssuerURL() + keyEndpointPath
}

// APIBaseURL returns the base URL for proxied tenant API calls.
func (c *Config) APIBaseURL() string {
	return c.IssuerURL() + apiBasePath
}
