// Package errors provides standardized error types and error handling utilities
// for the marketplace gateway. It defines the error codes for the token
// verification pipeline and the upstream tenant API client, along with helper
// functions for creating, wrapping, and inspecting errors.
//
// # Error Categories
//
// The package defines several error categories that map to the gateway's
// failure scenarios:
//
//   - Validation errors: Invalid input, missing required fields
//   - Authentication errors: Missing, expired, or invalid tokens, with a
//     distinct code per verification failure mode (signature, issuer,
//     audience, mandatory claims)
//   - Upstream errors: Public-key fetch failures, tenant API status errors,
//     network timeouts
//   - Configuration errors: Missing or invalid startup configuration
//   - Internal errors: Unexpected system failures
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_003") that can be
// used for error tracking, alerting, and client-side error handling. Error
// codes follow the pattern CATEGORY_XXX where CATEGORY is a short identifier
// and XXX is a numeric code.
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeAuthIssuer, "token issuer does not match tenant")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeUpstreamKeyFetch, "public-key request failed")
//
// Check error category:
//
//	if errors.IsAuth(err) {
//	    // respond 401
//	}
//
// Extract error details for logging:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Error("verification failed",
//	        "code", e.Code,
//	        "message", e.Message,
//	    )
//	}
package errors
