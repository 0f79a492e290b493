package auth

// BuildAuthHeader constructs the Authorization header value for an upstream
// marketplace API call. With an empty identityToken the call authenticates
// as the service itself:
//
//	Bearer {credential}
//
// With a non-empty identityToken the call impersonates the end user via the
// colon-delimited composite form:
//
//	Bearer {credential}:{identityToken}
//
// The credential never contains a colon (enforced by [Config.Validate]), so
// the upstream can split the composite unambiguously on the first colon.
// The value is recomputed per call and must never be cached.
func BuildAuthHeader(credential Secret, identityToken string) string {
	if identityToken == "" {
		return bearerPrefix + string(credential)
	}
	return bearerPrefix + string(credential) + ":" + identityToken
}
