package domain

import (
	"fmt"
	"time"
)

// AppError is a domain error with a stable code, an HTTP status and optional
// structured details.
type AppError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    any       `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes.
const (
	ErrInvalidInput     = "INVALID_INPUT"     // 400
	ErrValidationFailed = "VALIDATION_FAILED" // 422
	ErrNotFound         = "NOT_FOUND"         // 404
	ErrUnauthorized     = "UNAUTHORIZED"      // 401
	ErrInternal         = "INTERNAL_ERROR"    // 500
	ErrStoreUnavailable = "STORE_UNAVAILABLE" // 503
	ErrUpstream         = "UPSTREAM_ERROR"    // 502, CDN purge failures
	ErrRateLimited      = "RATE_LIMITED"      // 429
)

// NewAppError creates a new AppError.
func NewAppError(code, message string, statusCode int, details any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
		Timestamp:  time.Now(),
	}
}

// NewAppErrorWithCause creates a new AppError wrapping an underlying error.
func NewAppErrorWithCause(code, message string, statusCode int, cause error, details any) *AppError {
	err := NewAppError(code, message, statusCode, details)
	err.Cause = cause
	return err
}

// IsNotFound reports whether err is a NOT_FOUND AppError. Rollback callers use
// this to distinguish a purged snapshot from a store failure.
func IsNotFound(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == ErrNotFound
	}
	return false
}

// IsValidationError reports whether err is a VALIDATION_FAILED AppError.
func IsValidationError(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == ErrValidationFailed
	}
	return false
}
