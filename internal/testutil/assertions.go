package testutil

import (
	"errors"
	"testing"

	apperrors "budgetbook/internal/errors"
)

// AssertAppError fails unless err unwraps to an *AppError carrying code.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("got nil, want %s", code)
	case !errors.As(err, &appErr):
		t.Fatalf("got %T (%v), want *AppError %s", err, err, code)
	case appErr.Code != code:
		t.Errorf("got %s (%s), want %s", appErr.Code, appErr.Message, code)
	}
}

// AssertNoError stops the test on any error.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
