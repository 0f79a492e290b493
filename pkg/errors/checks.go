package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error.
// Returns the Error and true if successful, nil and false otherwise.
// This function traverses the error chain using errors.As.
//
// Example:
//
//	if e, ok := errors.AsError(err); ok {
//	    log.Printf("error code: %s, message: %s", e.Code, e.Message)
//	}
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error.
// If the error is not an *Error or is nil, returns an empty string.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode checks if an error has the specified error code.
// Returns false if the error is nil or not an *Error.
//
// Example:
//
//	if errors.HasCode(err, errors.CodeAuthExpired) {
//	    // prompt the caller to refresh its token
//	}
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsAuth checks if the error is an authentication or verification error
// (AUTH_xxx). Returns true if the error code's category is "AUTH".
//
// Example:
//
//	if errors.IsAuth(err) {
//	    // return 401 Unauthorized
//	}
func IsAuth(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "AUTH"
}

// IsAuthMissing reports whether the error indicates that no token was
// present at all, as opposed to a present-but-invalid token.
func IsAuthMissing(err error) bool {
	return HasCode(err, CodeAuthMissing)
}

// IsUpstream checks if the error originated from a call to the tenant
// API (UPSTREAM_xxx), including public-key fetches.
func IsUpstream(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "UPSTREAM"
}

// IsValidation checks if the error is a validation error (VAL_xxx).
func IsValidation(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "VAL"
}

// IsConfiguration checks if the error is a configuration error (CONF_xxx).
func IsConfiguration(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "CONF"
}
