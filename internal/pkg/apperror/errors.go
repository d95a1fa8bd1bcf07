package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyUsed        ErrorCode = "ALREADY_USED"
	ErrCodeExpired            ErrorCode = "EXPIRED"
	ErrCodeTooManyAttempts    ErrorCode = "TOO_MANY_ATTEMPTS"
	ErrCodeInvalidCode        ErrorCode = "INVALID_CODE"
	ErrCodeSessionExpired     ErrorCode = "SESSION_EXPIRED"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeSendFailure        ErrorCode = "SEND_FAILURE"
	ErrCodeThrottled          ErrorCode = "THROTTLED"
	ErrCodeUnavailable        ErrorCode = "UNAVAILABLE"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// AppError is the typed failure every service operation returns. The code
// maps 1:1 onto an HTTP status; AttemptsRemaining is set only for
// INVALID_CODE results.
type AppError struct {
	Code              ErrorCode
	Message           string
	HTTPStatus        int
	AttemptsRemaining *int
	Cause             error
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

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// InvalidCode builds the code-mismatch failure carrying how many attempts
// the caller has left.
func InvalidCode(message string, attemptsRemaining int) *AppError {
	e := New(ErrCodeInvalidCode, message)
	e.AttemptsRemaining = &attemptsRemaining
	return e
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeInvalidCredentials, ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTooManyAttempts, ErrCodeThrottled:
		return http.StatusTooManyRequests
	case ErrCodeAlreadyUsed, ErrCodeExpired, ErrCodeInvalidCode,
		ErrCodeSessionExpired, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnavailable, ErrCodeSendFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// From extracts the AppError from err, or wraps err as an internal error so
// the HTTP layer never leaks raw failure text.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, ErrCodeInternal, "internal server error")
}

func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool { return Is(err, ErrCodeNotFound) }

func IsConflict(err error) bool { return Is(err, ErrCodeConflict) }

func IsInvalidToken(err error) bool { return Is(err, ErrCodeInvalidToken) }
