// Package domain defines the core domain models for the MtaaDAO realtime
// service.
package domain

import (
	"errors"
	"fmt"
)

// DomainError is a business error carrying a stable machine-readable code.
//
// Codes follow MT-<AREA>-<NNNN>; the last four digits mirror the HTTP
// status family the transport layer maps them to.
type DomainError struct {
	Code    string // Error code (e.g., "MT-SESS-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Session errors.
var (
	// ErrSessionNotFound covers both unknown and expired sessions; callers
	// re-authenticate in either case.
	ErrSessionNotFound = NewDomainError("MT-SESS-4040", "session not found")

	// ErrSessionValidation indicates session input failed validation.
	ErrSessionValidation = NewDomainError("MT-SESS-4001", "session validation failed")
)

// Notification errors.
var (
	ErrNotificationNotFound   = NewDomainError("MT-NTFY-4040", "notification not found")
	ErrNotificationValidation = NewDomainError("MT-NTFY-4001", "notification validation failed")
)

// Authentication errors.
var (
	ErrAuthRequired      = NewDomainError("MT-AUTH-4010", "authentication required")
	ErrAdminKeyInvalid   = NewDomainError("MT-AUTH-4011", "invalid admin key")
	ErrServiceKeyInvalid = NewDomainError("MT-AUTH-4012", "invalid service key")
	ErrAdminDisabled     = NewDomainError("MT-AUTH-4030", "admin api disabled")
	ErrServiceDisabled   = NewDomainError("MT-AUTH-4031", "service api disabled")
)

// System errors.
var (
	ErrInternalServer = NewDomainError("MT-SYS-5000", "internal server error")
	ErrStorageError   = NewDomainError("MT-SYS-5001", "storage error")
	ErrBadRequest     = NewDomainError("MT-SYS-4000", "bad request")
	ErrRateLimited    = NewDomainError("MT-SYS-4290", "too many requests")
)

// Argument errors.
var (
	ErrInvalidArgument = NewDomainError("MT-ARG-1001", "invalid argument")
	ErrMissingArgument = NewDomainError("MT-ARG-1002", "missing required argument")
)
