package service

import (
	"errors"
	"fmt"

	"github.com/xmonx11/smartreminder/internal/domain"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrAccessDenied = errors.New("access denied")
	ErrValidation   = errors.New("invalid task")
	ErrConflict     = errors.New("schedule conflict")
)

// ValidationError names the offending input field. It matches ErrValidation
// and unwraps to the underlying parse error, if any.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports the existing schedule occupying the slot.
type ConflictError struct {
	With *domain.Task
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("You already have a schedule at %s (%s)", e.With.Time, e.With.Title)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
