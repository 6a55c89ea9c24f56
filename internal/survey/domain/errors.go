package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrPartialWrite = errors.New("partial write")

	ErrSurveyNotFound    = fmt.Errorf("survey %w", ErrNotFound)
	ErrApprovalNotFound  = fmt.Errorf("content approval %w", ErrNotFound)
	ErrQuestionNotOwned  = fmt.Errorf("question does not belong to survey: %w", ErrConflict)
	ErrVersionMismatch   = fmt.Errorf("survey was modified by another request: %w", ErrConflict)
	ErrApprovalFrozen    = fmt.Errorf("approved content cannot be changed: %w", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("invalid approval transition: %w", ErrConflict)
)

// ValidationError carries a user facing message for rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
