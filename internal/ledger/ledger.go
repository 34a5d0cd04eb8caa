// Package ledger keeps Budget.Spent equal to the sum of the amounts of the
// expenses linked to each budget.
//
// Every adjustment is a single relative UPDATE (spent = spent + delta) issued
// inside the caller's transaction, so concurrent expense writes against the
// same budget never lose an update.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "budgetbook/internal/errors"
	"budgetbook/internal/logger"
	"budgetbook/internal/models"
	"budgetbook/internal/money"
	"budgetbook/internal/store"
)

// Policy decides what happens when an adjustment targets a budget that does
// not exist (deleted, never created, or owned by another user).
type Policy string

const (
	// PolicySkip keeps the expense write and reports a ConsistencyWarning.
	PolicySkip Policy = "skip"
	// PolicyFail rolls back the expense write and returns BUDGET_NOT_FOUND
	// when new spend would land on a missing budget.
	PolicyFail Policy = "fail"
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySkip, PolicyFail:
		return p, nil
	case "":
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown ledger policy %q", s)
	}
}

// ErrSpentOutOfRange is returned under every policy when an adjustment would
// push a budget's spent amount past money.MaxSpent in either direction.
var ErrSpentOutOfRange = apperrors.WithMessage(apperrors.ErrInvalidInput, "budget spent would exceed the maximum amount")

// ConsistencyWarning describes an adjustment that could not be applied while
// the surrounding write was allowed to commit. Budget.Spent has drifted from
// its expenses and can be repaired with Reconcile.
type ConsistencyWarning struct {
	UserID   string
	BudgetID string
	Delta    int64
	Reason   string
	Err      error
}

func (w *ConsistencyWarning) Error() string {
	msg := fmt.Sprintf("budget %s: spent not adjusted by %d: %s", w.BudgetID, w.Delta, w.Reason)
	if w.Err != nil {
		msg += ": " + w.Err.Error()
	}
	return msg
}

func (w *ConsistencyWarning) Unwrap() error { return w.Err }

// Reconciliation reports the outcome of recomputing a budget's spent amount.
type Reconciliation struct {
	BudgetID string `json:"budget_id"`
	Previous int64  `json:"previous"`
	Current  int64  `json:"current"`
	Drift    int64  `json:"drift"`
}

// Ledger applies spent adjustments under a missing-budget policy.
type Ledger struct {
	policy Policy
	// OnWarning, when set, receives every ConsistencyWarning after it is logged.
	OnWarning func(*ConsistencyWarning)
}

// New returns a Ledger using the given policy.
func New(policy Policy) *Ledger {
	if policy == "" {
		policy = PolicySkip
	}
	return &Ledger{policy: policy}
}

// Policy returns the configured missing-budget policy.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// Apply adds delta to the spent amount of budgetID. An empty budgetID or a
// zero delta is a no-op. tx should be the transaction that performs the
// expense write, so both commit or roll back together.
func (l *Ledger) Apply(ctx context.Context, tx *gorm.DB, userID, budgetID string, delta int64) error {
	if budgetID == "" || delta == 0 {
		return nil
	}

	// Releasing spend from a missing budget is always tolerated; otherwise an
	// expense linked to a vanished budget could never be deleted.
	if l.policy == PolicyFail && delta > 0 {
		return l.applyStrict(ctx, tx, userID, budgetID, delta)
	}
	return l.applyLenient(ctx, tx, userID, budgetID, delta)
}

func (l *Ledger) applyStrict(ctx context.Context, tx *gorm.DB, userID, budgetID string, delta int64) error {
	rows, err := adjust(ctx, tx, userID, budgetID, delta)
	switch {
	case err == ErrSpentOutOfRange:
		adjustmentsTotal.WithLabelValues(resultRejected).Inc()
		return err
	case err != nil:
		adjustmentsTotal.WithLabelValues(resultFailed).Inc()
		return store.Translate(err, apperrors.ErrBudgetNotFound)
	case rows == 0:
		adjustmentsTotal.WithLabelValues(resultRejected).Inc()
		return apperrors.ErrBudgetNotFound
	}
	adjustmentsTotal.WithLabelValues(resultApplied).Inc()
	return nil
}

func (l *Ledger) applyLenient(ctx context.Context, tx *gorm.DB, userID, budgetID string, delta int64) error {
	var rows int64
	// The savepoint lets a failed adjustment roll back on its own, leaving
	// the enclosing transaction usable for the expense write.
	err := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		var err error
		rows, err = adjust(ctx, sp, userID, budgetID, delta)
		return err
	})

	switch {
	case err == ErrSpentOutOfRange:
		adjustmentsTotal.WithLabelValues(resultRejected).Inc()
		return err
	case err != nil:
		adjustmentsTotal.WithLabelValues(resultFailed).Inc()
		l.warn(&ConsistencyWarning{UserID: userID, BudgetID: budgetID, Delta: delta, Reason: "adjustment failed", Err: err})
	case rows == 0:
		adjustmentsTotal.WithLabelValues(resultSkipped).Inc()
		l.warn(&ConsistencyWarning{UserID: userID, BudgetID: budgetID, Delta: delta, Reason: "budget not found"})
	default:
		adjustmentsTotal.WithLabelValues(resultApplied).Inc()
	}
	return nil
}

// Move re-targets spend when an expense changes amount or budget. The old
// amount is released from fromBudget and the new amount charged to toBudget;
// when both are the same budget a single adjustment of the difference is made.
func (l *Ledger) Move(ctx context.Context, tx *gorm.DB, userID, fromBudget, toBudget string, oldAmount, newAmount int64) error {
	if fromBudget == toBudget {
		return l.Apply(ctx, tx, userID, toBudget, newAmount-oldAmount)
	}
	if err := l.Apply(ctx, tx, userID, fromBudget, -oldAmount); err != nil {
		return err
	}
	return l.Apply(ctx, tx, userID, toBudget, newAmount)
}

// Reconcile recomputes spent for budgetID from its linked, non-deleted
// expenses and reports the drift that was corrected.
func (l *Ledger) Reconcile(ctx context.Context, tx *gorm.DB, userID, budgetID string) (*Reconciliation, error) {
	before, err := store.FindOwned[models.Budget](ctx, tx, userID, budgetID, apperrors.ErrBudgetNotFound)
	if err != nil {
		return nil, err
	}

	err = tx.WithContext(ctx).Model(&models.Budget{}).
		Where("id = ? AND user_id = ?", budgetID, userID).
		Update("spent", gorm.Expr(
			"(SELECT COALESCE(SUM(e.amount), 0) FROM expenses e "+
				"WHERE e.budget_id = budgets.id AND e.user_id = budgets.user_id AND e.deleted_at IS NULL)",
		)).Error
	if err != nil {
		return nil, store.Translate(err, apperrors.ErrBudgetNotFound)
	}

	after, err := store.FindOwned[models.Budget](ctx, tx, userID, budgetID, apperrors.ErrBudgetNotFound)
	if err != nil {
		return nil, err
	}

	rec := &Reconciliation{
		BudgetID: budgetID,
		Previous: before.Spent,
		Current:  after.Spent,
		Drift:    before.Spent - after.Spent,
	}
	if rec.Drift != 0 {
		reconciledDriftTotal.Inc()
		logger.Named("ledger").Infow("budget spent reconciled",
			"budget_id", budgetID,
			"user_id", userID,
			"previous", rec.Previous,
			"current", rec.Current,
		)
	}
	return rec, nil
}

func (l *Ledger) warn(w *ConsistencyWarning) {
	logger.Named("ledger").Warnw("budget spent not adjusted",
		"budget_id", w.BudgetID,
		"user_id", w.UserID,
		"delta", w.Delta,
		"reason", w.Reason,
		"error", w.Err,
	)
	if l.OnWarning != nil {
		l.OnWarning(w)
	}
}

// adjust reports the number of budgets updated. A budget that exists but whose
// spent would leave [-money.MaxSpent, money.MaxSpent] yields ErrSpentOutOfRange.
func adjust(ctx context.Context, tx *gorm.DB, userID, budgetID string, delta int64) (int64, error) {
	result := tx.WithContext(ctx).Model(&models.Budget{}).
		Where("id = ? AND user_id = ?", budgetID, userID).
		Where("spent + ? BETWEEN ? AND ?", delta, -money.MaxSpent, money.MaxSpent).
		Update("spent", gorm.Expr("spent + ?", delta))
	if result.Error != nil || result.RowsAffected > 0 {
		return result.RowsAffected, result.Error
	}

	var count int64
	err := tx.WithContext(ctx).Model(&models.Budget{}).
		Where("id = ? AND user_id = ?", budgetID, userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, ErrSpentOutOfRange
	}
	return 0, nil
}
