// Package testutil provides shared test helpers for the marketplace
// gateway.
//
// All helpers accept [testing.TB] for compatibility with both tests and
// benchmarks. Functions that halt the test on failure use [require] from
// testify; functions that record failures without stopping use [assert].
//
// Every helper calls t.Helper() so that test failure messages report the
// caller's file and line number rather than this package's.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerr "github.com/widgetforge/marketplace-gateway/pkg/errors"
)

// RequireErrorCode halts the test if err is nil, is not a *gwerr.Error,
// or does not carry the expected error code. This is the primary helper
// for validating gateway error responses.
//
// Example:
//
//	_, err := verifier.Verify(ctx, token)
//	testutil.RequireErrorCode(t, err, gwerr.CodeAuthExpired)
func RequireErrorCode(t testing.TB, err error, code gwerr.Code, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	gwErr, ok := gwerr.AsError(err)
	require.True(t, ok, "expected *gwerr.Error, got %T: %v", err, err)
	require.Equal(t, code, gwErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		gwErr.Code, code, gwErr.Message)
}

// AssertErrorCode records a test failure (without halting) if err is nil,
// is not a *gwerr.Error, or does not carry the expected error code.
// Use this in table-driven tests where you want to check all rows.
func AssertErrorCode(t testing.TB, err error, code gwerr.Code, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	gwErr, ok := gwerr.AsError(err)
	if !assert.True(t, ok, "expected *gwerr.Error, got %T: %v", err, err) {
		return false
	}
	return assert.Equal(t, code, gwErr.Code,
		"error code mismatch: got %q, want %q (message: %s)",
		gwErr.Code, code, gwErr.Message)
}

// GenerateES256Key generates an ephemeral ECDSA P-256 key pair for signing
// test tokens.
func GenerateES256Key(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

// SignToken signs the given claims as an ES256 JWT with kid "1", matching
// the key-id the gateway expects from the tenant key set.
func SignToken(t testing.TB, key *ecdsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = "1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

// IdentityClaims returns a claims map for a valid identity token with the
// given issuer, expiring one minute from now. Callers override or delete
// entries to construct failure cases.
func IdentityClaims(issuer string) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":       issuer,
		"exp":       time.Now().Add(time.Minute).Unix(),
		"user_id":   float64(1),
		"app_id":    float64(2),
		"widget_id": float64(3),
	}
}

// JWKSServer starts an httptest server that serves the public half of key
// as a JWKS document with kid "1" and alg ES256, and counts the requests it
// receives. The server is closed when the test finishes.
func JWKSServer(t testing.TB, key *ecdsa.PrivateKey) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, JWKSDocument(t, key))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// JWKSDocument renders the public half of key as a JWKS JSON document with
// kid "1" and alg ES256.
func JWKSDocument(t testing.TB, key *ecdsa.PrivateKey) string {
	t.Helper()
	pub := key.Public().(*ecdsa.PublicKey)
	doc := map[string]any{
		"keys": []map[string]string{
			{
				"kty": "EC",
				"kid": "1",
				"alg": "ES256",
				"use": "sig",
				"crv": "P-256",
				"x":   base64.RawURLEncoding.EncodeToString(pub.X.Bytes()),
				"y":   base64.RawURLEncoding.EncodeToString(pub.Y.Bytes()),
			},
		},
	}
	out, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(out)
}
