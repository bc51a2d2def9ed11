package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication
	ErrCodeAuthFailed   ErrorCode = "AUTH_FAILED"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Transport to the Absher backend
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// Backend reachable but rejected the request
	ErrCodeRequestRejected ErrorCode = "REQUEST_REJECTED"

	// Client-side validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Payment
	ErrCodePaymentDeclined ErrorCode = "PAYMENT_DECLINED"

	// Voice
	ErrCodePermissionDenied  ErrorCode = "PERMISSION_DENIED"
	ErrCodeNothingRecognized ErrorCode = "NOTHING_RECOGNIZED"

	// Workflow
	ErrCodeBusy     ErrorCode = "BUSY"
	ErrCodeConflict ErrorCode = "CONFLICT"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func AuthFailed() *AppError {
	return New(ErrCodeAuthFailed, "Invalid username or password")
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Network(cause error) *AppError {
	return Wrap(ErrCodeNetwork, "Backend unreachable", cause)
}

func Timeout(cause error) *AppError {
	return Wrap(ErrCodeTimeout, "Backend request timed out", cause)
}

func RequestRejected(detail string) *AppError {
	if detail == "" {
		detail = "The backend rejected the request"
	}
	return New(ErrCodeRequestRejected, detail)
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func PaymentDeclined(reason string) *AppError {
	if reason == "" {
		reason = "Payment was declined"
	}
	return New(ErrCodePaymentDeclined, reason)
}

func PermissionDenied(message string) *AppError {
	return New(ErrCodePermissionDenied, message)
}

func NothingRecognized() *AppError {
	return New(ErrCodeNothingRecognized, "No speech was recognized")
}

func Busy(what string) *AppError {
	return New(ErrCodeBusy, fmt.Sprintf("%s is already in progress", what))
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// UserMessage returns the message safe to show to an end user. For
// errors that never went through this package it stays generic.
func UserMessage(err error) string {
	if appErr, ok := AsAppError(err); ok && appErr.Message != "" {
		return appErr.Message
	}
	return "An unexpected error occurred"
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}
