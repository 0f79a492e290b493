package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, VAL, UPSTREAM) and XXX is a three-digit numeric
// code.
//
// Error codes are designed to be:
//   - Stable: Codes do not change once assigned
//   - Unique: Each error condition has a distinct code
//   - Searchable: Codes can be used to find documentation and solutions
//   - Machine-readable: Suitable for automated error handling
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx      - Validation errors (400 Bad Request)
//	AUTH_xxx     - Authentication and token verification errors (401 Unauthorized)
//	UPSTREAM_xxx - Upstream tenant API errors (502 Bad Gateway / 504 Gateway Timeout)
//	CONF_xxx     - Configuration errors (500 Internal Server Error)
//	INT_xxx      - Internal errors (500 Internal Server Error)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when request input fails validation rules.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Used for token extraction and verification failures. Each
	// verification failure mode has a distinct code so callers and the
	// user-facing message mapping can distinguish them without string
	// matching.

	// CodeAuthMissing indicates no token was found in the request at all.
	// This is distinct from a present-but-invalid token: callers decide
	// whether absence is fatal.
	CodeAuthMissing Code = "AUTH_001"

	// CodeAuthInvalid indicates a general token verification failure
	// (malformed token, unextractable claims, or any failure without a
	// more specific code).
	CodeAuthInvalid Code = "AUTH_002"

	// CodeAuthExpired indicates the token's exp claim is in the past, or
	// its nbf claim is in the future, beyond the clock tolerance.
	CodeAuthExpired Code = "AUTH_003"

	// CodeAuthSignature indicates the token's signature did not verify
	// against the tenant's public key, or the token asserted a signing
	// algorithm other than ES256.
	CodeAuthSignature Code = "AUTH_004"

	// CodeAuthIssuer indicates the token's iss claim does not exactly
	// match the configured trusted issuer URL.
	CodeAuthIssuer Code = "AUTH_005"

	// CodeAuthAudience indicates the token's aud claim does not contain
	// the expected audience.
	CodeAuthAudience Code = "AUTH_006"

	// CodeAuthClaims indicates one or more of the mandatory identity
	// claims (user_id, app_id, widget_id) is missing or not a positive
	// integer.
	CodeAuthClaims Code = "AUTH_007"

	// Upstream errors (UPSTREAM_xxx) - HTTP 502/504
	// Used when calls to the tenant API fail.

	// CodeUpstreamKeyFetch indicates the public-key endpoint could not be
	// fetched, returned a malformed response, or contained no usable key.
	CodeUpstreamKeyFetch Code = "UPSTREAM_001"

	// CodeUpstreamStatus indicates the tenant API returned a non-success
	// HTTP status.
	CodeUpstreamStatus Code = "UPSTREAM_002"

	// CodeUpstreamTimeout indicates a call to the tenant API exceeded its
	// network timeout.
	CodeUpstreamTimeout Code = "UPSTREAM_003"

	// Configuration errors (CONF_xxx) - HTTP 500
	// Used for invalid or missing configuration at load time.

	// CodeConfiguration indicates a configuration loading or validation
	// failure.
	CodeConfiguration Code = "CONF_001"

	// Internal errors (INT_xxx) - HTTP 500
	// Used for unexpected internal failures.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
