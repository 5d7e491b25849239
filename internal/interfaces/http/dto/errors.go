package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is used when request fields fail validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidTarget is used for a blank or malformed identifier
	ErrCodeInvalidTarget = "ERR_INVALID_TARGET"
	// ErrCodeRequestTooLarge is used when the body exceeds the limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Access error codes
const (
	// ErrCodeUnauthorized is used when the internal token is missing or wrong
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
)

// Sync error codes
const (
	// ErrCodeJobRunning is used when the job already runs elsewhere
	ErrCodeJobRunning = "ERR_JOB_RUNNING"
	// ErrCodeAuthFailed is used when no remote session could be opened
	ErrCodeAuthFailed = "ERR_AUTH_FAILED"
	// ErrCodeEnumerationFailed is used when the targets could not be listed
	ErrCodeEnumerationFailed = "ERR_ENUMERATION_FAILED"
	// ErrCodeCanceled is used when the pass was interrupted
	ErrCodeCanceled = "ERR_CANCELED"
	// ErrCodeUnavailable is used when a dependency does not answer
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidTarget:   http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeNotFound:     http.StatusNotFound,

	ErrCodeJobRunning:        http.StatusConflict,
	ErrCodeAuthFailed:        http.StatusBadGateway,
	ErrCodeEnumerationFailed: http.StatusInternalServerError,
	ErrCodeCanceled:          http.StatusServiceUnavailable,
	ErrCodeUnavailable:       http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
