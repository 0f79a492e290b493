package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	gwerr "github.com/widgetforge/marketplace-gateway/pkg/errors"
)

// signingKeyID is the key-id the tenant uses for its marketplace signing
// key. The key set may carry other keys; only this one is usable.
const signingKeyID = "1"

// signingAlgorithm is the only accepted signing algorithm, for both the
// JWKS entry and the token header.
const signingAlgorithm = "ES256"

// maxKeySetBody caps the key endpoint response body at 1 MB to prevent
// resource exhaustion.
const maxKeySetBody = 1 << 20

// KeySource is a cached resolution of where to fetch and verify signing
// keys: the validated JWKS endpoint URL, the parsed signing key it served,
// and the cache expiry instant.
//
// A KeySource is reused for all verifications until expiry; expiry forces
// re-validation of the endpoint. Values are immutable once created.
type KeySource struct {
	// URL is the JWKS endpoint the key was fetched from.
	URL string

	// ExpiresAt is the cache expiry instant (fixed TTL from the
	// successful fetch).
	ExpiresAt time.Time

	// key is the parsed ES256 public key with kid "1" from the key set,
	// retained so the verifier does not re-parse it per verification.
	key *ecdsa.PublicKey
}

// expired reports whether the key source's TTL has elapsed.
func (ks *KeySource) expired(now time.Time) bool {
	return now.After(ks.ExpiresAt)
}

// KeyResolver resolves and caches the tenant's public signing key set
// endpoint, keyed by endpoint URL. The cache is read-mostly and shared
// across concurrent verifications: concurrent misses may each trigger a
// redundant fetch, and the last write wins with no correctness impact since
// all fetches for the same endpoint return equivalent data within the TTL
// window. Failed fetches are never cached, so the next verification
// retries.
//
// KeyResolver is safe for concurrent use by multiple goroutines.
type KeyResolver struct {
	mu      sync.RWMutex
	entries map[string]*KeySource
	ttl     time.Duration
	client  HTTPClient

	// now is the clock used for expiry checks; overridable in tests.
	now func() time.Time
}

// NewKeyResolver creates a KeyResolver with the given cache TTL and HTTP
// client. The client must already carry a network timeout.
func NewKeyResolver(ttl time.Duration, client HTTPClient) *KeyResolver {
	return &KeyResolver{
		entries: make(map[string]*KeySource),
		ttl:     ttl,
		client:  client,
		now:     time.Now,
	}
}

// Resolve returns the key source for the given key endpoint. A live (non-
// expired) cache entry is returned immediately with no network call.
// Otherwise the endpoint is fetched with the service credential as bearer
// auth, validated to contain a usable signing key, cached with the fixed
// TTL, and returned.
//
// Fails with a *[gwerr.Error] of code [gwerr.CodeUpstreamKeyFetch] on
// network failure, a malformed response, or a key set without a usable key.
func (r *KeyResolver) Resolve(ctx context.Context, endpointURL string, credential Secret) (*KeySource, error) {
	r.mu.RLock()
	entry, ok := r.entries[endpointURL]
	r.mu.RUnlock()
	if ok && !entry.expired(r.now()) {
		return entry, nil
	}

	key, err := r.fetchSigningKey(ctx, endpointURL, credential)
	if err != nil {
		return nil, err
	}

	ks := &KeySource{
		URL:       endpointURL,
		ExpiresAt: r.now().Add(r.ttl),
		key:       key,
	}

	r.mu.Lock()
	r.entries[endpointURL] = ks
	r.mu.Unlock()

	return ks, nil
}

// jwkKey represents a single key in a JWKS response. Only the fields needed
// to select and reconstruct the EC signing key are included.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// keySetResponse represents the JSON structure of the key endpoint
// response. Keys is a RawMessage so a missing or non-array "keys" field can
// be reported distinctly from other malformed JSON.
type keySetResponse struct {
	Keys json.RawMessage `json:"keys"`
}

// fetchSigningKey performs the authenticated GET against the key endpoint,
// validates the response shape, and returns the first key matching the
// expected key-id and algorithm. There is no fallback to a second match:
// if the first matching key does not parse, the fetch fails.
func (r *KeyResolver) fetchSigningKey(ctx context.Context, endpointURL string, credential Secret) (*ecdsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUpstreamKeyFetch, "auth: failed to create public-key request")
	}
	req.Header.Set(HeaderAuthorization, BuildAuthHeader(credential, ""))
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUpstreamKeyFetch, "auth: public-key request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, gwerr.Newf(gwerr.CodeUpstreamKeyFetch,
			"auth: public-key endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBody))
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUpstreamKeyFetch, "auth: failed to read public-key response")
	}

	var keySet keySetResponse
	if err := json.Unmarshal(body, &keySet); err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUpstreamKeyFetch, "auth: public-key response is not valid JSON")
	}
	if len(keySet.Keys) == 0 {
		return nil, gwerr.KeyFetch("auth: public-key response is missing the keys field")
	}

	var keys []jwkKey
	if err := json.Unmarshal(keySet.Keys, &keys); err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUpstreamKeyFetch, "auth: keys field is not an array")
	}

	for _, k := range keys {
		if k.Kid != signingKeyID || k.Alg != signingAlgorithm {
			continue
		}
		pubKey, err := parseECPublicKey(k.Crv, k.X, k.Y)
		if err != nil {
			return nil, gwerr.Wrap(err, gwerr.CodeUpstreamKeyFetch, "auth: signing key is malformed")
		}
		return pubKey, nil
	}

	return nil, gwerr.Newf(gwerr.CodeUpstreamKeyFetch,
		"auth: no key with kid %q and alg %q in key set", signingKeyID, signingAlgorithm)
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates. An empty curve name defaults to
// P-256, the curve ES256 requires.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256", "":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, gwerr.Newf(gwerr.CodeUpstreamKeyFetch, "auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUpstreamKeyFetch, "auth: failed to decode EC x coordinate")
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, gwerr.Wrap(err, gwerr.CodeUpstreamKeyFetch, "auth: failed to decode EC y coordinate")
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
