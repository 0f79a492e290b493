package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAuthHeader_ServiceOnly(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Bearer my-secret", BuildAuthHeader(Secret("my-secret"), ""))
}

func TestBuildAuthHeader_Composite(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Bearer my-secret:user-token",
		BuildAuthHeader(Secret("my-secret"), "user-token"))
}

// The upstream splits the composite on the first colon. Since credentials
// never contain a colon, both parts must round-trip exactly, even when the
// identity token itself contains colons.
func TestBuildAuthHeader_RoundTrip(t *testing.T) {
	t.Parallel()

	cred := Secret("svc-credential")
	identityToken := "header.payload:signature"

	value := BuildAuthHeader(cred, identityToken)
	require.True(t, strings.HasPrefix(value, "Bearer "))

	gotCred, gotToken, found := strings.Cut(strings.TrimPrefix(value, "Bearer "), ":")
	require.True(t, found)
	assert.Equal(t, cred.Value(), gotCred)
	assert.Equal(t, identityToken, gotToken)
}
