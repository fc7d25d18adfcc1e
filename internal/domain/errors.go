package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")
)

// ValidationCode classifies a rejected request so callers can react without parsing messages.
type ValidationCode string

const (
	CodeInvalid             ValidationCode = "invalid"
	CodeRequired            ValidationCode = "required"
	CodeAccountsMustDiffer  ValidationCode = "accounts_must_differ"
	CodeFeeCategoryRequired ValidationCode = "fee_category_required"
	CodeAccountTypeMismatch ValidationCode = "account_type_mismatch"
	CodeUseTransfer         ValidationCode = "use_transfer"
	CodeInvalidCategory     ValidationCode = "invalid_category"
)

// ValidationError reports malformed or constraint-violating input. It is always
// returned before any row is written.
type ValidationError struct {
	Field   string
	Code    ValidationCode
	Message string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field string, code ValidationCode, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a referenced entity that does not exist or belongs to
// another user. The two cases are deliberately indistinguishable.
type NotFoundError struct {
	Entity string
	Field  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
