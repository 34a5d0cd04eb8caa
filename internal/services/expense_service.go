package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "budgetbook/internal/errors"
	"budgetbook/internal/events"
	"budgetbook/internal/ledger"
	"budgetbook/internal/models"
	"budgetbook/internal/pagination"
	"budgetbook/internal/store"
)

// forUpdate locks the selected expense row until the transaction ends.
// SQLite ignores it and serializes writers instead.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// expenseService handles expense-related business logic. Each write and
// the matching ledger adjustment run in one transaction.
type expenseService struct {
	db        *gorm.DB
	ledger    *ledger.Ledger
	publisher events.Publisher
}

// NewExpenseService creates a new ExpenseServicer.
func NewExpenseService(db *gorm.DB, l *ledger.Ledger, publisher events.Publisher) ExpenseServicer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &expenseService{db: db, ledger: l, publisher: publisher}
}

// CreateExpense records an expense and charges its amount to the linked budget.
func (s *expenseService) CreateExpense(ctx context.Context, userID string, input ExpenseInput) (*models.Expense, error) {
	if err := requireAmount("amount", input.Amount); err != nil {
		return nil, err
	}
	if err := requireText("category", input.Category); err != nil {
		return nil, err
	}
	if err := requireText("description", input.Description); err != nil {
		return nil, err
	}

	date := input.Date
	if date.IsZero() {
		date = today()
	}

	expense := &models.Expense{
		UserID:      userID,
		Amount:      input.Amount,
		Category:    strings.TrimSpace(input.Category),
		Description: strings.TrimSpace(input.Description),
		Date:        date,
		ReceiptURL:  input.ReceiptURL,
		BudgetID:    budgetRef(input.BudgetID),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(expense).Error; err != nil {
			return err
		}
		return s.ledger.Apply(ctx, tx, userID, expense.LinkedBudgetID(), expense.Amount)
	})
	if err != nil {
		return nil, store.Translate(err, nil)
	}

	events.Notify(ctx, s.publisher, events.ExpenseCreated, userID, expense.ID)
	return expense, nil
}

// GetUserExpenses returns a paginated, filtered list of expenses, newest first.
func (s *expenseService) GetUserExpenses(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
	filter ExpenseFilter,
) (*pagination.PageResponse[models.Expense], error) {
	base := s.db.WithContext(ctx).Model(&models.Expense{}).Where("user_id = ?", userID)
	if filter.BudgetID != nil {
		base = base.Where("budget_id = ?", *filter.BudgetID)
	}
	if filter.Category != nil {
		base = base.Where("category = ?", *filter.Category)
	}
	if filter.FromDate != nil {
		base = base.Where("date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		base = base.Where("date <= ?", *filter.ToDate)
	}
	base = base.Order("date DESC").Order("created_at DESC")

	result, err := pagination.Find[models.Expense](base, page)
	if err != nil {
		return nil, store.Translate(err, nil)
	}
	return result, nil
}

// GetExpenseByID returns an expense by ID if it belongs to the user.
func (s *expenseService) GetExpenseByID(ctx context.Context, userID, expenseID string) (*models.Expense, error) {
	return store.FindOwned[models.Expense](ctx, s.db, userID, expenseID, apperrors.ErrExpenseNotFound)
}

// UpdateExpense edits an expense. Changes to the amount or the linked
// budget move the spent amount accordingly.
func (s *expenseService) UpdateExpense(ctx context.Context, userID, expenseID string, update ExpenseUpdate) (*models.Expense, error) {
	updates := make(map[string]interface{})
	if update.Amount != nil {
		if err := requireAmount("amount", *update.Amount); err != nil {
			return nil, err
		}
		updates["amount"] = *update.Amount
	}
	if update.Category != nil {
		if err := requireText("category", *update.Category); err != nil {
			return nil, err
		}
		updates["category"] = strings.TrimSpace(*update.Category)
	}
	if update.Description != nil {
		if err := requireText("description", *update.Description); err != nil {
			return nil, err
		}
		updates["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Date != nil {
		updates["date"] = *update.Date
	}
	if update.ReceiptURL != nil {
		if *update.ReceiptURL == "" {
			updates["receipt_url"] = nil
		} else {
			updates["receipt_url"] = *update.ReceiptURL
		}
	}
	if update.BudgetID != nil {
		updates["budget_id"] = budgetRef(update.BudgetID)
	}

	var expense *models.Expense
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := store.FindOwned[models.Expense](ctx, tx.Clauses(forUpdate), userID, expenseID, apperrors.ErrExpenseNotFound)
		if err != nil {
			return err
		}

		if err := store.Update[models.Expense](ctx, tx, userID, expenseID, updates, apperrors.ErrExpenseNotFound); err != nil {
			return err
		}

		newAmount := current.Amount
		if update.Amount != nil {
			newAmount = *update.Amount
		}
		newBudget := current.LinkedBudgetID()
		if update.BudgetID != nil {
			newBudget = derefString(budgetRef(update.BudgetID))
		}
		if err := s.ledger.Move(ctx, tx, userID, current.LinkedBudgetID(), newBudget, current.Amount, newAmount); err != nil {
			return err
		}

		expense, err = store.FindOwned[models.Expense](ctx, tx, userID, expenseID, apperrors.ErrExpenseNotFound)
		return err
	})
	if err != nil {
		return nil, store.Translate(err, apperrors.ErrExpenseNotFound)
	}

	if len(updates) > 0 {
		events.Notify(ctx, s.publisher, events.ExpenseUpdated, userID, expenseID)
	}
	return expense, nil
}

// DeleteExpense removes an expense and releases its amount from the linked
// budget. Deleting an expense that does not exist is a no-op, so a repeated
// delete never adjusts a budget twice.
func (s *expenseService) DeleteExpense(ctx context.Context, userID, expenseID string) error {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expense models.Expense
		err := tx.Clauses(forUpdate).Where("id = ? AND user_id = ?", expenseID, userID).First(&expense).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		result := tx.Delete(&expense)
		if result.Error != nil {
			return result.Error
		}
		// A concurrent delete won the race.
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true

		return s.ledger.Apply(ctx, tx, userID, expense.LinkedBudgetID(), -expense.Amount)
	})
	if err != nil {
		return store.Translate(err, nil)
	}

	if deleted {
		events.Notify(ctx, s.publisher, events.ExpenseDeleted, userID, expenseID)
	}
	return nil
}
