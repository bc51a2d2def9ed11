package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Message not found")
		assert.Equal(t, "NOT_FOUND: Message not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "Database error")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "service_type", "reason": "missing"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"AuthFailed", func() *AppError { return AuthFailed() }, ErrCodeAuthFailed},
		{"Unauthorized", func() *AppError { return Unauthorized("test") }, ErrCodeUnauthorized},
		{"Network", func() *AppError { return Network(errors.New("refused")) }, ErrCodeNetwork},
		{"Timeout", func() *AppError { return Timeout(errors.New("deadline")) }, ErrCodeTimeout},
		{"RequestRejected", func() *AppError { return RequestRejected("bad request") }, ErrCodeRequestRejected},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("file", "not an image") }, ErrCodeValidation},
		{"MissingRequired", func() *AppError { return MissingRequired("service_type") }, ErrCodeMissingRequired},
		{"PaymentDeclined", func() *AppError { return PaymentDeclined("insufficient funds") }, ErrCodePaymentDeclined},
		{"PermissionDenied", func() *AppError { return PermissionDenied("microphone unavailable") }, ErrCodePermissionDenied},
		{"NothingRecognized", func() *AppError { return NothingRecognized() }, ErrCodeNothingRecognized},
		{"Busy", func() *AppError { return Busy("chat send") }, ErrCodeBusy},
		{"Conflict", func() *AppError { return Conflict("test") }, ErrCodeConflict},
		{"NotFound", func() *AppError { return NotFound("Session") }, ErrCodeNotFound},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
		{"Database", func() *AppError { return Database(errors.New("down")) }, ErrCodeDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor()
			assert.Equal(t, tt.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestDefaultMessages(t *testing.T) {
	t.Run("RequestRejected falls back to generic message", func(t *testing.T) {
		assert.Equal(t, "The backend rejected the request", RequestRejected("").Message)
	})

	t.Run("PaymentDeclined falls back to generic message", func(t *testing.T) {
		assert.Equal(t, "Payment was declined", PaymentDeclined("").Message)
	})
}

func TestHelpers(t *testing.T) {
	t.Run("IsAppError detects AppError", func(t *testing.T) {
		assert.True(t, IsAppError(AuthFailed()))
		assert.False(t, IsAppError(errors.New("plain")))
	})

	t.Run("IsAppError detects wrapped AppError", func(t *testing.T) {
		wrapped := fmt.Errorf("send chat: %w", Network(errors.New("refused")))
		assert.True(t, IsAppError(wrapped))
	})

	t.Run("GetCode returns code for AppError", func(t *testing.T) {
		assert.Equal(t, ErrCodePaymentDeclined, GetCode(PaymentDeclined("declined")))
	})

	t.Run("GetCode returns internal for unknown errors", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	})

	t.Run("HasCode matches code", func(t *testing.T) {
		assert.True(t, HasCode(NothingRecognized(), ErrCodeNothingRecognized))
		assert.False(t, HasCode(NothingRecognized(), ErrCodeTimeout))
		assert.False(t, HasCode(errors.New("plain"), ErrCodeTimeout))
	})
}
