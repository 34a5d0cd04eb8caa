package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "budgetbook/internal/errors"
	"budgetbook/internal/events"
	"budgetbook/internal/models"
	"budgetbook/internal/pagination"
	"budgetbook/internal/store"
)

// incomeService handles income-related business logic. Incomes never touch
// a budget's spent amount, even when linked.
type incomeService struct {
	db        *gorm.DB
	publisher events.Publisher
}

// NewIncomeService creates a new IncomeServicer.
func NewIncomeService(db *gorm.DB, publisher events.Publisher) IncomeServicer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &incomeService{db: db, publisher: publisher}
}

// CreateIncome records an income.
func (s *incomeService) CreateIncome(ctx context.Context, userID string, input IncomeInput) (*models.Income, error) {
	if err := requireAmount("amount", input.Amount); err != nil {
		return nil, err
	}
	if err := requireText("source", input.Source); err != nil {
		return nil, err
	}

	date := input.Date
	if date.IsZero() {
		date = today()
	}

	income := &models.Income{
		UserID:    userID,
		Amount:    input.Amount,
		Source:    strings.TrimSpace(input.Source),
		Date:      date,
		Recurring: input.Recurring,
		BudgetID:  budgetRef(input.BudgetID),
	}
	if err := store.Insert(ctx, s.db, income); err != nil {
		return nil, err
	}

	events.Notify(ctx, s.publisher, events.IncomeCreated, userID, income.ID)
	return income, nil
}

// GetUserIncomes returns a paginated, filtered list of incomes, newest first.
func (s *incomeService) GetUserIncomes(
	ctx context.Context,
	userID string,
	page pagination.PageRequest,
	filter IncomeFilter,
) (*pagination.PageResponse[models.Income], error) {
	base := s.db.WithContext(ctx).Model(&models.Income{}).Where("user_id = ?", userID)
	if filter.Recurring != nil {
		base = base.Where("recurring = ?", *filter.Recurring)
	}
	if filter.FromDate != nil {
		base = base.Where("date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		base = base.Where("date <= ?", *filter.ToDate)
	}
	base = base.Order("date DESC").Order("created_at DESC")

	result, err := pagination.Find[models.Income](base, page)
	if err != nil {
		return nil, store.Translate(err, nil)
	}
	return result, nil
}

// GetIncomeByID returns an income by ID if it belongs to the user.
func (s *incomeService) GetIncomeByID(ctx context.Context, userID, incomeID string) (*models.Income, error) {
	return store.FindOwned[models.Income](ctx, s.db, userID, incomeID, apperrors.ErrIncomeNotFound)
}

// DeleteIncome soft-deletes an income. Deleting an income that does not
// exist is a no-op.
func (s *incomeService) DeleteIncome(ctx context.Context, userID, incomeID string) error {
	err := store.DeleteByID[models.Income](ctx, s.db, userID, incomeID, apperrors.ErrIncomeNotFound)
	if errors.Is(err, apperrors.ErrIncomeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	events.Notify(ctx, s.publisher, events.IncomeDeleted, userID, incomeID)
	return nil
}
