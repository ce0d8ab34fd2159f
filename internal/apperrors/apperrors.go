// Package apperrors defines the application error taxonomy shared by the
// sync, backup and import paths. Codes are grouped by range so callers can
// classify an error without knowing which provider produced it:
//
//	1xxx generic, 2xxx auth, 3xxx network/provider, 4xxx quota,
//	5xxx validation/import, 6xxx store.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an error class.
type ErrorCode int

const (
	// Generic (1000-1999)
	ErrInternal      ErrorCode = 1000
	ErrInvalidParams ErrorCode = 1001
	ErrNotFound      ErrorCode = 1004
	ErrForbidden     ErrorCode = 1003

	// Auth (2000-2999): expired or invalid provider credentials. The
	// provider moves to the error state and recovers on reconnect.
	ErrAuthFailed         ErrorCode = 2000
	ErrCredentialsExpired ErrorCode = 2001
	ErrNotConfigured      ErrorCode = 2002

	// Network/provider (3000-3999): transient, retried by the next
	// scheduled sync rather than in a tight loop.
	ErrNetwork             ErrorCode = 3000
	ErrTimeout             ErrorCode = 3001
	ErrRemoteNotFound      ErrorCode = 3002
	ErrProviderUnsupported ErrorCode = 3003
	ErrSyncInProgress      ErrorCode = 3004
	ErrProviderState       ErrorCode = 3005

	// Quota (4000-4999): surfaced per note as a warning, the sync pass
	// continues with the remaining notes.
	ErrQuotaExceeded   ErrorCode = 4000
	ErrFileTooLarge    ErrorCode = 4001

	// Validation/import (5000-5999)
	ErrValidation        ErrorCode = 5000
	ErrFileNotFound      ErrorCode = 5001
	ErrUnsupportedFormat ErrorCode = 5002
	ErrMalformedPayload  ErrorCode = 5003
	ErrPartialFailure    ErrorCode = 5004

	// Store (6000-6999)
	ErrStoreQuery    ErrorCode = 6000
	ErrStoreConflict ErrorCode = 6001
)

var messages = map[ErrorCode]string{
	ErrInternal:            "internal error",
	ErrInvalidParams:       "invalid parameters",
	ErrNotFound:            "resource not found",
	ErrForbidden:           "operation not permitted",
	ErrAuthFailed:          "authentication failed",
	ErrCredentialsExpired:  "credentials expired",
	ErrNotConfigured:       "provider not configured",
	ErrNetwork:             "network error",
	ErrTimeout:             "operation timed out",
	ErrRemoteNotFound:      "remote object not found",
	ErrProviderUnsupported: "unsupported sync provider",
	ErrSyncInProgress:      "sync already in progress",
	ErrProviderState:       "invalid provider state",
	ErrQuotaExceeded:       "storage quota exceeded",
	ErrFileTooLarge:        "file exceeds provider size limit",
	ErrValidation:          "validation failed",
	ErrFileNotFound:        "File not found",
	ErrUnsupportedFormat:   "Unsupported file format",
	ErrMalformedPayload:    "malformed backup payload",
	ErrPartialFailure:      "operation completed with failures",
	ErrStoreQuery:          "note store query failed",
	ErrStoreConflict:       "note was modified concurrently",
}

// Message returns the default message for a code.
func Message(code ErrorCode) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return "unknown error"
}

// AppError is the unified application error type.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches detail text and returns the error.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New creates an AppError with the default message for the code.
func New(code ErrorCode) *AppError {
	return &AppError{Code: code, Message: Message(code)}
}

// Newf creates an AppError with detail text.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: Message(code),
		Details: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps a cause into an AppError for the given code.
func Wrap(code ErrorCode, err error) *AppError {
	ae := &AppError{Code: code, Message: Message(code), Err: err}
	if err != nil {
		ae.Details = err.Error()
	}
	return ae
}

// CodeOf extracts the error code, or ErrInternal if err is not an AppError.
func CodeOf(err error) ErrorCode {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrInternal
}

func inRange(err error, lo, hi ErrorCode) bool {
	var ae *AppError
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Code >= lo && ae.Code <= hi
}

// IsAuth reports whether err is an authentication error.
func IsAuth(err error) bool { return inRange(err, 2000, 2999) }

// IsNetwork reports whether err is a transient network error.
func IsNetwork(err error) bool { return inRange(err, 3000, 3999) }

// IsQuota reports whether err is a quota/size-limit error.
func IsQuota(err error) bool { return inRange(err, 4000, 4999) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return inRange(err, 5000, 5999) }
