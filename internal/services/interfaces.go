package services

import (
	"context"
	"time"

	"budgetbook/internal/ledger"
	"budgetbook/internal/models"
	"budgetbook/internal/overview"
	"budgetbook/internal/pagination"
)

// UserServicer defines the contract for authentication and profile logic.
type UserServicer interface {
	SignUp(ctx context.Context, identifier, password string) (*models.User, error)
	SignIn(ctx context.Context, identifier, password string) (*models.User, error)
	SignOut(ctx context.Context, userID string) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, name, avatarURL *string) (*models.Profile, error)
	StoreRefreshTokenHash(ctx context.Context, userID, tokenHash string) error
	GetRefreshTokenHash(ctx context.Context, userID string) (string, error)
}

// BudgetUpdate holds the user-editable budget fields. Nil fields are left
// unchanged. Spent is deliberately absent.
type BudgetUpdate struct {
	Name     *string
	Amount   *int64
	Category *string
	Period   *models.BudgetPeriod
}

// BudgetProgress compares a budget's spent amount with its limit.
type BudgetProgress struct {
	BudgetID   string  `json:"budget_id"`
	Budgeted   int64   `json:"budgeted"`
	Spent      int64   `json:"spent"`
	Remaining  int64   `json:"remaining"`
	Percentage float64 `json:"percentage"`
	OverBudget bool    `json:"over_budget"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(ctx context.Context, userID, name string, amount int64, category string, period models.BudgetPeriod) (*models.Budget, error)
	GetUserBudgets(ctx context.Context, userID string, page pagination.PageRequest, period *models.BudgetPeriod) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error)
	UpdateBudget(ctx context.Context, userID, budgetID string, update BudgetUpdate) (*models.Budget, error)
	DeleteBudget(ctx context.Context, userID, budgetID string) error
	GetBudgetProgress(ctx context.Context, userID, budgetID string) (*BudgetProgress, error)
	ReconcileBudget(ctx context.Context, userID, budgetID string) (*ledger.Reconciliation, error)
}

// ExpenseInput holds the fields of a new expense. A zero Date means today.
type ExpenseInput struct {
	Amount      int64
	Category    string
	Description string
	Date        time.Time
	ReceiptURL  *string
	BudgetID    *string
}

// ExpenseUpdate holds the editable expense fields. Nil fields are left
// unchanged; a BudgetID pointing at "" unlinks the expense from its budget.
type ExpenseUpdate struct {
	Amount      *int64
	Category    *string
	Description *string
	Date        *time.Time
	ReceiptURL  *string
	BudgetID    *string
}

// ExpenseFilter holds optional filter parameters for listing expenses.
type ExpenseFilter struct {
	BudgetID *string
	Category *string
	FromDate *time.Time
	ToDate   *time.Time
}

// ExpenseServicer defines the contract for expense-related business logic.
// Every write keeps the linked budget's spent amount in step.
type ExpenseServicer interface {
	CreateExpense(ctx context.Context, userID string, input ExpenseInput) (*models.Expense, error)
	GetUserExpenses(ctx context.Context, userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error)
	GetExpenseByID(ctx context.Context, userID, expenseID string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, userID, expenseID string, update ExpenseUpdate) (*models.Expense, error)
	DeleteExpense(ctx context.Context, userID, expenseID string) error
}

// IncomeInput holds the fields of a new income. A zero Date means today.
type IncomeInput struct {
	Amount    int64
	Source    string
	Date      time.Time
	Recurring bool
	BudgetID  *string
}

// IncomeFilter holds optional filter parameters for listing incomes.
type IncomeFilter struct {
	Recurring *bool
	FromDate  *time.Time
	ToDate    *time.Time
}

// IncomeServicer defines the contract for income-related business logic.
type IncomeServicer interface {
	CreateIncome(ctx context.Context, userID string, input IncomeInput) (*models.Income, error)
	GetUserIncomes(ctx context.Context, userID string, page pagination.PageRequest, filter IncomeFilter) (*pagination.PageResponse[models.Income], error)
	GetIncomeByID(ctx context.Context, userID, incomeID string) (*models.Income, error)
	DeleteIncome(ctx context.Context, userID, incomeID string) error
}

// OverviewDisplay carries the overview totals formatted for display.
type OverviewDisplay struct {
	TotalBudget   string `json:"total_budget"`
	TotalExpenses string `json:"total_expenses"`
	TotalIncome   string `json:"total_income"`
	Balance       string `json:"balance"`
}

// Overview is a user's financial summary plus its display strings.
type Overview struct {
	overview.Summary
	Display OverviewDisplay `json:"display"`
}

// OverviewServicer defines the contract for the dashboard overview.
type OverviewServicer interface {
	GetOverview(ctx context.Context, userID string) (*Overview, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
