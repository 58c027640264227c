package domain

import (
	"fmt"
)

// ValidationError means a workflow precondition was not met. It is surfaced
// before any mutation happens, so no compensation is required.
type ValidationError struct {
	msg string
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.msg
}

// NotFoundError means a referenced entity is absent
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DeniedError means an external authorization check refused the operation
type DeniedError struct {
	msg string
}

func NewDeniedError(format string, args ...interface{}) *DeniedError {
	return &DeniedError{msg: fmt.Sprintf(format, args...)}
}

func (e *DeniedError) Error() string {
	return e.msg
}

