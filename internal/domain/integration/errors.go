package integration

import (
	"context"
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// Pass-level errors
	ErrAuthFailed  = errors.New("integration: authentication failed")
	ErrEnumeration = errors.New("integration: target enumeration failed")
	ErrJobRunning  = errors.New("integration: job is already running")

	// Remote errors
	ErrRemoteHTTP     = errors.New("integration: remote request failed")
	ErrRemoteFault    = errors.New("integration: remote fault")
	ErrRemoteParse    = errors.New("integration: remote response could not be parsed")
	ErrSessionExpired = errors.New("integration: remote session expired")

	// Local errors
	ErrPersistence    = errors.New("integration: persistence failed")
	ErrRecordNotFound = errors.New("integration: record not found")
	ErrInvalidTarget  = errors.New("integration: invalid target")
)

// SessionExpiredFaultCode is the fault code Magento reports for an unknown or expired session.
const SessionExpiredFaultCode = "5"

// RemoteFault is a fault reported inside an otherwise delivered response.
type RemoteFault struct {
	Code    string
	Message string
}

// Error implements error
func (f *RemoteFault) Error() string {
	if f.Code == "" {
		return fmt.Sprintf("remote fault: %s", f.Message)
	}
	return fmt.Sprintf("remote fault %s: %s", f.Code, f.Message)
}

// Unwrap exposes ErrRemoteFault, plus ErrSessionExpired for session faults.
func (f *RemoteFault) Unwrap() []error {
	if f.Code == SessionExpiredFaultCode {
		return []error{ErrRemoteFault, ErrSessionExpired}
	}
	return []error{ErrRemoteFault}
}

// RemoteHTTPError is a non-successful transport-level response.
type RemoteHTTPError struct {
	StatusCode int
	Body       string
}

// Error implements error
func (e *RemoteHTTPError) Error() string {
	return fmt.Sprintf("remote returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap returns ErrRemoteHTTP
func (e *RemoteHTTPError) Unwrap() error {
	return ErrRemoteHTTP
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

// IsRecoverable reports whether a per-target error is worth retrying.
// Transport errors and remote faults are; parse, persistence and
// authentication errors are not.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRemoteParse) || errors.Is(err, ErrPersistence) || errors.Is(err, ErrAuthFailed) {
		return false
	}
	return errors.Is(err, ErrRemoteHTTP) || errors.Is(err, ErrRemoteFault)
}

// IsSessionExpired reports whether err means the session token must be re-acquired.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// ErrorCode maps an error to the stable code reported in SyncFailure.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELED"
	case errors.Is(err, ErrAuthFailed):
		return "AUTH_FAILED"
	case errors.Is(err, ErrSessionExpired):
		return "SESSION_EXPIRED"
	case errors.Is(err, ErrRemoteFault):
		return "REMOTE_FAULT"
	case errors.Is(err, ErrRemoteHTTP):
		return "REMOTE_HTTP"
	case errors.Is(err, ErrRemoteParse):
		return "REMOTE_PARSE"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE"
	case errors.Is(err, ErrInvalidTarget):
		return "INVALID_TARGET"
	default:
		return "UNKNOWN"
	}
}
