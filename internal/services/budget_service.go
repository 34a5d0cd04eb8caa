package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	apperrors "budgetbook/internal/errors"
	"budgetbook/internal/events"
	"budgetbook/internal/ledger"
	"budgetbook/internal/models"
	"budgetbook/internal/pagination"
	"budgetbook/internal/store"
)

// budgetService handles budget-related business logic.
type budgetService struct {
	db        *gorm.DB
	ledger    *ledger.Ledger
	publisher events.Publisher
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, l *ledger.Ledger, publisher events.Publisher) BudgetServicer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &budgetService{db: db, ledger: l, publisher: publisher}
}

// CreateBudget creates a new budget with nothing spent.
func (s *budgetService) CreateBudget(
	ctx context.Context,
	userID, name string,
	amount int64,
	category string,
	period models.BudgetPeriod,
) (*models.Budget, error) {
	if err := requireText("name", name); err != nil {
		return nil, err
	}
	if err := requireText("category", category); err != nil {
		return nil, err
	}
	if err := requireAmount("amount", amount); err != nil {
		return nil, err
	}
	if !period.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be 'monthly' or 'yearly'")
	}

	budget := &models.Budget{
		UserID:   userID,
		Name:     strings.TrimSpace(name),
		Amount:   amount,
		Spent:    0,
		Category: strings.TrimSpace(category),
		Period:   period,
	}
	if err := store.Insert(ctx, s.db, budget); err != nil {
		return nil, err
	}

	events.Notify(ctx, s.publisher, events.BudgetCreated, userID, budget.ID)
	return budget, nil
}

// GetUserBudgets returns a paginated list of budgets for the user, newest first.
func (s *budgetService) GetUserBudgets(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
	period *models.BudgetPeriod,
) (*pagination.PageResponse[models.Budget], error) {
	base := s.db.WithContext(ctx).Model(&models.Budget{}).Where("user_id = ?", userID)
	if period != nil {
		base = base.Where("period = ?", *period)
	}
	base = base.Order("created_at DESC")

	result, err := pagination.Find[models.Budget](base, page)
	if err != nil {
		return nil, store.Translate(err, nil)
	}
	return result, nil
}

// GetBudgetByID returns a budget by ID if it belongs to the user.
func (s *budgetService) GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error) {
	return store.FindOwned[models.Budget](ctx, s.db, userID, budgetID, apperrors.ErrBudgetNotFound)
}

// UpdateBudget updates a budget's user-editable fields.
func (s *budgetService) UpdateBudget(ctx context.Context, userID, budgetID string, update BudgetUpdate) (*models.Budget, error) {
	updates := make(map[string]interface{})
	if update.Name != nil {
		if err := requireText("name", *update.Name); err != nil {
			return nil, err
		}
		updates["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Category != nil {
		if err := requireText("category", *update.Category); err != nil {
			return nil, err
		}
		updates["category"] = strings.TrimSpace(*update.Category)
	}
	if update.Amount != nil {
		if err := requireAmount("amount", *update.Amount); err != nil {
			return nil, err
		}
		updates["amount"] = *update.Amount
	}
	if update.Period != nil {
		if !update.Period.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "period must be 'monthly' or 'yearly'")
		}
		updates["period"] = *update.Period
	}

	if err := store.Update[models.Budget](ctx, s.db, userID, budgetID, updates, apperrors.ErrBudgetNotFound); err != nil {
		return nil, err
	}

	budget, err := s.GetBudgetByID(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		events.Notify(ctx, s.publisher, events.BudgetUpdated, userID, budgetID)
	}
	return budget, nil
}

// DeleteBudget soft-deletes a budget and unlinks its expenses and incomes
// in the same transaction. Deleting a budget that does not exist is a no-op.
func (s *budgetService) DeleteBudget(ctx context.Context, userID, budgetID string) error {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", budgetID, userID).Delete(&models.Budget{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true

		if err := tx.Model(&models.Expense{}).
			Where("budget_id = ? AND user_id = ?", budgetID, userID).
			Update("budget_id", nil).Error; err != nil {
			return err
		}
		return tx.Model(&models.Income{}).
			Where("budget_id = ? AND user_id = ?", budgetID, userID).
			Update("budget_id", nil).Error
	})
	if err != nil {
		return store.Translate(err, nil)
	}

	if deleted {
		events.Notify(ctx, s.publisher, events.BudgetDeleted, userID, budgetID)
	}
	return nil
}

// GetBudgetProgress compares the budget's spent amount with its limit.
func (s *budgetService) GetBudgetProgress(ctx context.Context, userID, budgetID string) (*BudgetProgress, error) {
	budget, err := s.GetBudgetByID(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}

	var percentage float64
	if budget.Amount > 0 {
		percentage = float64(budget.Spent) / float64(budget.Amount) * 100
	}

	return &BudgetProgress{
		BudgetID:   budget.ID,
		Budgeted:   budget.Amount,
		Spent:      budget.Spent,
		Remaining:  budget.Amount - budget.Spent,
		Percentage: percentage,
		OverBudget: budget.Spent > budget.Amount,
	}, nil
}

// ReconcileBudget recomputes spent from the budget's linked expenses.
func (s *budgetService) ReconcileBudget(ctx context.Context, userID, budgetID string) (*ledger.Reconciliation, error) {
	var rec *ledger.Reconciliation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = s.ledger.Reconcile(ctx, tx, userID, budgetID)
		return err
	})
	if err != nil {
		return nil, store.Translate(err, apperrors.ErrBudgetNotFound)
	}

	if rec.Drift != 0 {
		events.Notify(ctx, s.publisher, events.BudgetReconciled, userID, budgetID)
	}
	return rec, nil
}

// DriftNotifier returns a ledger warning hook that announces each budget whose
// spent amount was left unadjusted, so a consumer can schedule a reconcile.
func DriftNotifier(pub events.Publisher) func(*ledger.ConsistencyWarning) {
	return func(w *ledger.ConsistencyWarning) {
		events.Notify(context.Background(), pub, events.BudgetDrifted, w.UserID, w.BudgetID)
	}
}
