package errors

import "net/http"

// ErrorCode classifies a request failure.
type ErrorCode string

const (
	ErrUnauthorized        ErrorCode = "unauthorized"
	ErrRateLimited         ErrorCode = "rate_limited"
	ErrBadRequest          ErrorCode = "bad_request"
	ErrConfiguration       ErrorCode = "configuration"
	ErrProvider            ErrorCode = "provider"
	ErrUnparseableResponse ErrorCode = "unparseable_response"
	ErrInternal            ErrorCode = "internal"
)

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code        ErrorCode
	Status      int
	Description string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrUnauthorized: {
		Code:        ErrUnauthorized,
		Status:      http.StatusUnauthorized,
		Description: "Missing or invalid credential",
	},
	ErrRateLimited: {
		Code:        ErrRateLimited,
		Status:      http.StatusTooManyRequests,
		Description: "Demo quota exhausted for this session",
	},
	ErrBadRequest: {
		Code:        ErrBadRequest,
		Status:      http.StatusBadRequest,
		Description: "Malformed or missing input",
	},
	ErrConfiguration: {
		Code:        ErrConfiguration,
		Status:      http.StatusInternalServerError,
		Description: "Server secret or provider API key not configured",
	},
	ErrProvider: {
		Code:        ErrProvider,
		Status:      http.StatusInternalServerError,
		Description: "Hosted AI provider call failed",
	},
	ErrUnparseableResponse: {
		Code:        ErrUnparseableResponse,
		Status:      http.StatusInternalServerError,
		Description: "Provider output could not be coerced to the expected schema",
	},
	ErrInternal: {
		Code:        ErrInternal,
		Status:      http.StatusInternalServerError,
		Description: "Unexpected internal failure",
	},
}

// StatusFor returns the HTTP status registered for code, or 500 for
// unknown codes.
func StatusFor(code ErrorCode) int {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Status
	}
	return http.StatusInternalServerError
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
