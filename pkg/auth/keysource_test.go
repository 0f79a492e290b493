package auth

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widgetforge/marketplace-gateway/internal/testutil"
	gwerr "github.com/widgetforge/marketplace-gateway/pkg/errors"
)

// keySetServer serves the given body verbatim and counts requests.
func keySetServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestKeyResolver_CachesWithinTTL(t *testing.T) {
	t.Parallel()
	key := testutil.GenerateES256Key(t)
	srv, calls := testutil.JWKSServer(t, key)

	r := NewKeyResolver(time.Hour, http.DefaultClient)

	first, err := r.Resolve(context.Background(), srv.URL, Secret("cred"))
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), srv.URL, Secret("cred"))
	require.NoError(t, err)

	assert.Same(t, first, second, "live cache entry should be returned as-is")
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, srv.URL, first.URL)
	require.NotNil(t, first.key)
}

func TestKeyResolver_RefetchesAfterExpiry(t *testing.T) {
	t.Parallel()
	key := testutil.GenerateES256Key(t)
	srv, calls := testutil.JWKSServer(t, key)

	r := NewKeyResolver(time.Hour, http.DefaultClient)

	_, err := r.Resolve(context.Background(), srv.URL, Secret("cred"))
	require.NoError(t, err)

	// Advance the resolver clock past the TTL.
	r.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = r.Resolve(context.Background(), srv.URL, Secret("cred"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "expired entry should trigger a refetch")
}

func TestKeyResolver_SendsCredentialAndAccept(t *testing.T) {
	t.Parallel()
	key := testutil.GenerateES256Key(t)

	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get(HeaderAuthorization)
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, testutil.JWKSDocument(t, key))
	}))
	t.Cleanup(srv.Close)

	r := NewKeyResolver(time.Hour, http.DefaultClient)
	_, err := r.Resolve(context.Background(), srv.URL, Secret("my-credential"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer my-credential", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestKeyResolver_SkipsNonMatchingKeys(t *testing.T) {
	t.Parallel()
	key := testutil.GenerateES256Key(t)

	// A decoy key with the wrong kid precedes the real one; the resolver
	// must skip it and use kid "1".
	pub := key.Public().(*ecdsa.PublicKey)
	doc, err := json.Marshal(map[string]any{
		"keys": []map[string]string{
			{"kty": "EC", "kid": "2", "alg": "ES256", "crv": "P-256", "x": "AQ", "y": "AQ"},
			{
				"kty": "EC", "kid": "1", "alg": "ES256", "crv": "P-256",
				"x": base64.RawURLEncoding.EncodeToString(pub.X.Bytes()),
				"y": base64.RawURLEncoding.EncodeToString(pub.Y.Bytes()),
			},
		},
	})
	require.NoError(t, err)

	srv, _ := keySetServer(t, http.StatusOK, string(doc))

	r := NewKeyResolver(time.Hour, http.DefaultClient)
	ks, err := r.Resolve(context.Background(), srv.URL, Secret("cred"))
	require.NoError(t, err)
	require.NotNil(t, ks.key)
}

func TestKeyResolver_NoUsableKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{
			name: "wrong kid",
			body: `{"keys":[{"kty":"EC","kid":"2","alg":"ES256","crv":"P-256","x":"AQ","y":"AQ"}]}`,
		},
		{
			name: "wrong alg",
			body: `{"keys":[{"kty":"RSA","kid":"1","alg":"RS256","n":"AQ","e":"AQ"}]}`,
		},
		{
			name: "empty keys array",
			body: `{"keys":[]}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := keySetServer(t, http.StatusOK, tt.body)
			r := NewKeyResolver(time.Hour, http.DefaultClient)
			_, err := r.Resolve(context.Background(), srv.URL, Secret("cred"))
			testutil.RequireErrorCode(t, err, gwerr.CodeUpstreamKeyFetch)
		})
	}
}

func TestKeyResolver_MalformedResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non-200 status", status: http.StatusInternalServerError, body: ""},
		{name: "invalid JSON", status: http.StatusOK, body: "not json"},
		{name: "missing keys field", status: http.StatusOK, body: `{"other":true}`},
		{name: "keys not an array", status: http.StatusOK, body: `{"keys":"nope"}`},
		{name: "malformed matching key", status: http.StatusOK, body: `{"keys":[{"kty":"EC","kid":"1","alg":"ES256","crv":"P-256","x":"!!!","y":"AQ"}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := keySetServer(t, tt.status, tt.body)
			r := NewKeyResolver(time.Hour, http.DefaultClient)
			_, err := r.Resolve(context.Background(), srv.URL, Secret("cred"))
			testutil.RequireErrorCode(t, err, gwerr.CodeUpstreamKeyFetch)
		})
	}
}

func TestKeyResolver_FailuresNotCached(t *testing.T) {
	t.Parallel()
	srv, calls := keySetServer(t, http.StatusInternalServerError, "")

	r := NewKeyResolver(time.Hour, http.DefaultClient)

	_, err := r.Resolve(context.Background(), srv.URL, Secret("cred"))
	require.Error(t, err)
	_, err = r.Resolve(context.Background(), srv.URL, Secret("cred"))
	require.Error(t, err)

	assert.Equal(t, int64(2), calls.Load(), "failed fetch must not be cached")
}

func TestParseECPublicKey_UnsupportedCurve(t *testing.T) {
	t.Parallel()
	_, err := parseECPublicKey("P-999", "AQ", "AQ")
	testutil.RequireErrorCode(t, err, gwerr.CodeUpstreamKeyFetch)
}

func TestParseECPublicKey_DefaultsToP256(t *testing.T) {
	t.Parallel()
	pub, err := parseECPublicKey("", "AQ", "AQ")
	require.NoError(t, err)
	assert.Equal(t, "P-256", pub.Curve.Params().Name)
}
