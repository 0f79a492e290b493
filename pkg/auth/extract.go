package auth

import (
	"net/http"
	"strings"
)

// HeaderAuthorization is the standard authorization header carrying the
// bearer token, on both inbound requests and outbound tenant API calls.
const HeaderAuthorization = "Authorization"

// bearerPrefix is the standard "Bearer " prefix for authorization tokens.
// The prefix match is case-sensitive; the token begins at offset 7.
const bearerPrefix = "Bearer "

// ExtractBearerToken extracts the token from an authorization header value.
// Returns an empty string if the header is empty or does not carry the
// case-sensitive "Bearer " prefix.
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) <= len(bearerPrefix) {
		return ""
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return authHeader[len(bearerPrefix):]
}

// ExtractToken pulls a bearer token out of an inbound request. The
// designated URL query parameter is checked first; if it is not present,
// the Authorization header is checked for a Bearer token. An empty
// queryParam falls back to [DefaultTokenQueryParam].
//
// Returns an empty string (absent, not an error) if neither source yields
// a token — the caller decides whether absence is fatal.
func ExtractToken(r *http.Request, queryParam string) string {
	if queryParam == "" {
		queryParam = DefaultTokenQueryParam
	}
	if token := r.URL.Query().Get(queryParam); token != "" {
		return token
	}
	return ExtractBearerToken(r.Header.Get(HeaderAuthorization))
}
