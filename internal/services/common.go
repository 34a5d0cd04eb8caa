package services

import (
	"strings"
	"time"

	apperrors "budgetbook/internal/errors"
	"budgetbook/internal/money"
)

// today returns midnight UTC of the current day.
func today() time.Time {
	return dayOf(time.Now())
}

// dayOf truncates t to midnight UTC of its calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func requireAmount(field string, amount int64) error {
	if amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, field+" must be greater than zero")
	}
	if amount > money.MaxAmount {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, field+" exceeds the maximum allowed amount")
	}
	return nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, field+" is required")
	}
	return nil
}

// budgetRef turns an optional budget reference into the form stored on
// expenses and incomes: nil for "no budget".
func budgetRef(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
