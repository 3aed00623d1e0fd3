package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the caller did not present a valid API key.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrCardConflict is returned when a card is held by another employee.
	ErrCardConflict = errors.New("application: card already assigned")
)

// CardConflictError names the employee currently holding a card.
type CardConflictError struct {
	CardID     string
	HolderID   string
	HolderName string
}

// Error implements the error interface.
func (e *CardConflictError) Error() string {
	if e == nil {
		return ""
	}
	if e.HolderName == "" {
		return fmt.Sprintf("Card %s is already assigned to another employee", e.CardID)
	}
	return fmt.Sprintf("Card %s is already assigned to %s", e.CardID, e.HolderName)
}

// Is lets errors.Is match ErrCardConflict.
func (e *CardConflictError) Is(target error) bool {
	return target == ErrCardConflict
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
