package services

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"budgetbook/internal/models"
	"budgetbook/internal/money"
	"budgetbook/internal/overview"
	"budgetbook/internal/store"
)

// overviewService assembles the dashboard overview.
type overviewService struct {
	db        *gorm.DB
	formatter *money.Formatter
}

// NewOverviewService creates a new OverviewServicer. Display strings use
// formatter, or the default currency label when formatter is nil.
func NewOverviewService(db *gorm.DB, formatter *money.Formatter) OverviewServicer {
	if formatter == nil {
		formatter = money.NewFormatter("")
	}
	return &overviewService{db: db, formatter: formatter}
}

// GetOverview fetches the user's budgets, expenses and incomes concurrently
// and summarizes them. Any failed fetch fails the whole overview.
func (s *overviewService) GetOverview(ctx context.Context, userID string) (*Overview, error) {
	var (
		budgets  []models.Budget
		expenses []models.Expense
		incomes  []models.Income
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = store.QueryAll[models.Budget](gctx, s.db, userID, store.ByCreatedDesc)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = store.QueryAll[models.Expense](gctx, s.db, userID, store.ByDateDesc)
		return err
	})
	g.Go(func() error {
		var err error
		incomes, err = store.QueryAll[models.Income](gctx, s.db, userID, store.ByDateDesc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := overview.Summarize(budgets, expenses, incomes)
	return &Overview{
		Summary: summary,
		Display: OverviewDisplay{
			TotalBudget:   s.formatter.Format(summary.TotalBudget),
			TotalExpenses: s.formatter.Format(summary.TotalExpenses),
			TotalIncome:   s.formatter.Format(summary.TotalIncome),
			Balance:       s.formatter.Format(summary.Balance),
		},
	}, nil
}
