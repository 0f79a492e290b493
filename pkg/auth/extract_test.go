package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "valid bearer token", header: "Bearer abc123", want: "abc123"},
		{name: "empty header", header: "", want: ""},
		{name: "prefix only", header: "Bearer ", want: ""},
		{name: "lowercase scheme rejected", header: "bearer abc123", want: ""},
		{name: "no scheme", header: "abc123", want: ""},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "token containing spaces kept verbatim", header: "Bearer a b", want: "a b"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractBearerToken(tt.header))
		})
	}
}

func TestExtractToken_QueryParamTakesPrecedence(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/widgets?token=from-query", nil)
	r.Header.Set(HeaderAuthorization, "Bearer from-header")

	assert.Equal(t, "from-query", ExtractToken(r, "token"))
}

func TestExtractToken_HeaderFallback(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/widgets", nil)
	r.Header.Set(HeaderAuthorization, "Bearer from-header")

	assert.Equal(t, "from-header", ExtractToken(r, "token"))
}

func TestExtractToken_CustomQueryParam(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/widgets?auth_token=xyz&token=ignored", nil)

	assert.Equal(t, "xyz", ExtractToken(r, "auth_token"))
}

func TestExtractToken_EmptyParamUsesDefault(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/widgets?token=xyz", nil)

	assert.Equal(t, "xyz", ExtractToken(r, ""))
}

func TestExtractToken_Absent(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodGet, "/widgets", nil)

	assert.Equal(t, "", ExtractToken(r, "token"), "absence is not an error, just empty")
}
