// Package upstream provides an HTTP client for the tenant's marketplace
// REST API. The client authenticates every request with the gateway's
// service credential and, when the request context carries a verified
// identity with the impersonation flag, forwards that identity in the
// composite authorization header so upstream calls execute as the end user.
//
// Example usage:
//
//	client, err := upstream.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	req, err := client.NewRequest(ctx, http.MethodGet, "/widgets/42", nil)
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Do(req)
package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/widgetforge/marketplace-gateway/pkg/auth"
	gwerr "github.com/widgetforge/marketplace-gateway/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for upstream
// spans.
const tracerName = "github.com/widgetforge/marketplace-gateway/pkg/upstream"

// Client calls the tenant's marketplace REST API. It is safe for
// concurrent use by multiple goroutines.
//
// Requests carry no retry logic; callers decide whether a failed call is
// worth repeating.
type Client struct {
	baseURL    string
	credential auth.Secret
	httpClient auth.HTTPClient
	tracer     trace.Tracer
}

// New creates a Client from the gateway configuration. The configuration
// is validated before use. If cfg.HTTPClient is nil, a default
// [http.Client] with cfg.HTTPTimeout is used.
func New(cfg auth.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = auth.DefaultConfig().HTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    cfg.APIBaseURL(),
		credential: cfg.AppSecret,
		httpClient: httpClient,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// NewRequest builds an HTTP request against the tenant API. The path is
// appended to the API base URL and must start with "/". The Authorization
// header is computed from the context: composite when the verified identity
// carries the impersonation flag, service-only otherwise. The header is
// recomputed on every call.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, gwerr.Validationf("upstream: path %q must start with /", path)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeValidation, "upstream: failed to create request")
	}

	var identityToken string
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity.Impersonate {
		identityToken = identity.Token
	}
	req.Header.Set(auth.HeaderAuthorization, auth.BuildAuthHeader(c.credential, identityToken))
	req.Header.Set("Accept", "application/json")

	if requestID := auth.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(auth.HeaderRequestID, requestID)
	}

	return req, nil
}

// Do executes the request and maps transport failures and non-2xx statuses
// to coded errors: timeouts and context deadlines become
// [gwerr.CodeUpstreamTimeout], other transport failures and non-2xx
// responses become [gwerr.CodeUpstreamStatus]. On success the caller owns
// the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx, span := c.tracer.Start(req.Context(), "upstream.Do")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.Redacted()),
	)
	req = req.WithContext(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var mapped *gwerr.Error
		if isTimeout(err) {
			mapped = gwerr.Wrap(err, gwerr.CodeUpstreamTimeout, "upstream: request timed out")
		} else {
			mapped = gwerr.Wrap(err, gwerr.CodeUpstreamStatus, "upstream: request failed")
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, mapped.Error())
		return nil, mapped
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		mapped := gwerr.Newf(gwerr.CodeUpstreamStatus,
			"upstream: tenant API returned status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusUnauthorized {
			mapped = mapped.WithDetail("hint", "tenant rejected the service credential or identity token")
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, mapped.Error())
		return nil, mapped
	}

	return resp, nil
}

// Get is a convenience wrapper: NewRequest + Do for a GET.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// isTimeout reports whether err represents a deadline or timeout rather
// than a hard transport failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
