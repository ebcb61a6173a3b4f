package common

import (
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

// ValidationFailed wraps the itemised field errors in a 400 AppError.
func ValidationFailed(errs []FieldError) *AppError {
	return &AppError{
		Code:       CodeValidationFailed,
		Message:    "Validation failed",
		HTTPStatus: http.StatusBadRequest,
		Details:    errs,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the process-wide validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Var reports whether value satisfies the validator tag.
func Var(value any, tag string) bool {
	return Validator().Var(value, tag) == nil
}
