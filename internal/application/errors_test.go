package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"card_id": "card_id is required"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected generic message, got %q", got)
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	if base.HasErrors() {
		t.Fatalf("expected empty error to report no fields")
	}
	base.add("first_name", "first_name is required")
	base.merge(&ValidationError{FieldErrors: map[string]string{"email": "email is required"}})
	base.merge(nil)

	if len(base.FieldErrors) != 2 || !base.HasErrors() {
		t.Fatalf("expected two field errors, got %#v", base.FieldErrors)
	}
}

func TestCardConflictError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("assign: %w", &CardConflictError{CardID: "C-1", HolderID: "emp-2", HolderName: "Bob Smith"})
	if !errors.Is(err, ErrCardConflict) {
		t.Fatalf("expected conflict to match ErrCardConflict")
	}

	var conflict *CardConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected errors.As to find CardConflictError")
	}
	if got := conflict.Error(); got != "Card C-1 is already assigned to Bob Smith" {
		t.Fatalf("unexpected message %q", got)
	}
	if ErrorKind(err) != "card_conflict" {
		t.Fatalf("expected card_conflict kind, got %q", ErrorKind(err))
	}
}
