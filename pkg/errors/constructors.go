package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the specified code and message.
// Use this for creating errors without an underlying cause.
//
// Example:
//
//	err := errors.New(errors.CodeAuthIssuer, "token issuer does not match tenant")
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the specified code and formatted message.
// Use this for creating errors with dynamic content in the message.
//
// Example:
//
//	err := errors.Newf(errors.CodeAuthClaims, "claim %q missing or not a positive integer", name)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
// The wrapped error becomes the Cause of the new error.
// If err is nil, Wrap returns nil.
//
// Example:
//
//	resp, err := client.Do(req)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeUpstreamKeyFetch, "public-key request failed")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message.
// The wrapped error becomes the Cause of the new error.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validation creates a new validation error.
// This is a convenience function equivalent to New(CodeValidation, message).
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// AuthMissing creates an error indicating no token was present in the
// request. Absence is distinct from a present-but-invalid token; callers
// decide whether it is fatal.
func AuthMissing(message string) *Error {
	return New(CodeAuthMissing, message)
}

// Unauthorized creates a general token verification error.
// Use a more specific AUTH_xxx code when the failure mode is known.
func Unauthorized(message string) *Error {
	return New(CodeAuthInvalid, message)
}

// KeyFetch creates an error indicating the tenant's public-key endpoint
// could not be fetched or did not contain a usable key.
func KeyFetch(message string) *Error {
	return New(CodeUpstreamKeyFetch, message)
}

// Configuration creates a configuration loading or validation error.
func Configuration(message string) *Error {
	return New(CodeConfiguration, message)
}

// Configurationf creates a configuration error with a formatted message.
func Configurationf(format string, args ...any) *Error {
	return Newf(CodeConfiguration, format, args...)
}

// Internal creates a new internal error.
// Use this for unexpected system failures that should not expose details to users.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// FromError converts a standard error to an Error.
// If the error is already an *Error, it is returned as-is.
// Otherwise, it is wrapped as an internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
