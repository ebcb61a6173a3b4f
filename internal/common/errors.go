package common

import (
	"errors"
	"net/http"
)

// Error codes shared across packages.
const (
	CodeValidationFailed        = "VALIDATION_FAILED"
	CodeWebhookSignatureMissing = "WEBHOOK_SIGNATURE_MISSING"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeNotFound                = "NOT_FOUND"
	CodeConflict                = "CONFLICT"
	CodeInternal                = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// WebhookSignatureMissing is returned when a webhook arrives without its signature header.
func WebhookSignatureMissing() *AppError {
	return NewAppError(CodeWebhookSignatureMissing, "Webhook signature missing", http.StatusBadRequest, nil)
}

// Unauthorized builds a 401 error. The cause is kept for logs only.
func Unauthorized(message string, cause error) *AppError {
	return NewAppError(CodeUnauthorized, message, http.StatusUnauthorized, cause)
}
