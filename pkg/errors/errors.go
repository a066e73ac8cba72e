// Package errors provides the request error taxonomy for the minutes service.
//
// Every failure that reaches an HTTP client is an *APIError carrying an
// ErrorCode. The code decides the HTTP status; the message is the
// human-readable text returned in the {"error": ...} body.
//
// Usage:
//
//	import mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
//
//	// Return a classified error
//	return mnerrors.BadRequest("Meeting transcript is required")
//
//	// Check for a kind
//	if mnerrors.IsRateLimited(err) {
//	    // handle quota exhaustion
//	}
package errors

import (
	"errors"
	"fmt"
)

// APIError is a classified, caller-visible request failure.
type APIError struct {
	Code    ErrorCode
	Message string
	// Status overrides the registry status when non-zero. Provider errors
	// use it to pass the upstream status code through.
	Status int
	Cause  error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code to send for this error.
func (e *APIError) HTTPStatus() int {
	if e.Status > 0 {
		return e.Status
	}
	return StatusFor(e.Code)
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(msg string) *APIError {
	return &APIError{Code: ErrUnauthorized, Message: msg}
}

// RateLimited reports an exhausted demo quota.
func RateLimited(msg string) *APIError {
	return &APIError{Code: ErrRateLimited, Message: msg}
}

// BadRequest reports malformed or missing input.
func BadRequest(msg string) *APIError {
	return &APIError{Code: ErrBadRequest, Message: msg}
}

// BadRequestf formats a BadRequest message.
func BadRequestf(format string, args ...interface{}) *APIError {
	return BadRequest(fmt.Sprintf(format, args...))
}

// Configuration reports a missing server secret or API key.
func Configuration(msg string) *APIError {
	return &APIError{Code: ErrConfiguration, Message: msg}
}

// Provider reports a failed call to a hosted AI provider. A status of zero
// means the provider gave none and the registry default (500) applies.
func Provider(status int, msg string, cause error) *APIError {
	return &APIError{Code: ErrProvider, Message: msg, Status: status, Cause: cause}
}

// Unparseable reports provider output that could not be coerced into the
// expected schema.
func Unparseable(msg string, cause error) *APIError {
	return &APIError{Code: ErrUnparseableResponse, Message: msg, Cause: cause}
}

// Internal wraps an unexpected failure.
func Internal(msg string, cause error) *APIError {
	return &APIError{Code: ErrInternal, Message: msg, Cause: cause}
}

// CodeOf returns the ErrorCode of the first *APIError in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrInternal
}

// As returns the first *APIError in err's chain.
func As(err error) (*APIError, bool) {
	var ae *APIError
	ok := errors.As(err, &ae)
	return ae, ok
}

// IsUnauthorized reports whether err is classified as ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return err != nil && CodeOf(err) == ErrUnauthorized
}

// IsRateLimited reports whether err is classified as ErrRateLimited.
func IsRateLimited(err error) bool {
	return err != nil && CodeOf(err) == ErrRateLimited
}

// IsBadRequest reports whether err is classified as ErrBadRequest.
func IsBadRequest(err error) bool {
	return err != nil && CodeOf(err) == ErrBadRequest
}

// IsConfiguration reports whether err is classified as ErrConfiguration.
func IsConfiguration(err error) bool {
	return err != nil && CodeOf(err) == ErrConfiguration
}

// IsProvider reports whether err is classified as ErrProvider.
func IsProvider(err error) bool {
	return err != nil && CodeOf(err) == ErrProvider
}

// IsUnparseable reports whether err is classified as ErrUnparseableResponse.
func IsUnparseable(err error) bool {
	return err != nil && CodeOf(err) == ErrUnparseableResponse
}
