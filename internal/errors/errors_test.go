package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap(ErrInternalServer, inner)

	if err.Code != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR, got %s", err.Code)
	}
	if !errors.Is(err, inner) {
		t.Error("expected wrapped error to unwrap to the internal error")
	}
	if !errors.Is(err, ErrInternalServer) {
		t.Error("expected wrapped error to match its sentinel")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("expected wrapped error not to match a different sentinel")
	}
}

func TestWithMessage(t *testing.T) {
	err := WithMessage(ErrInvalidInput, "amount must be greater than zero")

	if err.Message != "amount must be greater than zero" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.StatusCode != ErrInvalidInput.StatusCode {
		t.Errorf("expected status %d, got %d", ErrInvalidInput.StatusCode, err.StatusCode)
	}
	if ErrInvalidInput.Message != "Invalid input" {
		t.Error("sentinel message must not be mutated")
	}
}
