package services

import (
	"testing"

	"gorm.io/gorm"

	"budgetbook/internal/ledger"
	"budgetbook/internal/logger"
	"budgetbook/internal/testutil"
)

func init() {
	logger.Init("test")
}

// ledgerServices wires the budget and expense services the way the API does.
type ledgerServices struct {
	db        *gorm.DB
	budgets   BudgetServicer
	expenses  ExpenseServicer
	incomes   IncomeServicer
	publisher *testutil.RecordingPublisher
}

func newLedgerServices(db *gorm.DB, policy ledger.Policy) *ledgerServices {
	l := ledger.New(policy)
	pub := &testutil.RecordingPublisher{}
	return &ledgerServices{
		db:        db,
		budgets:   NewBudgetService(db, l, pub),
		expenses:  NewExpenseService(db, l, pub),
		incomes:   NewIncomeService(db, pub),
		publisher: pub,
	}
}

func assertSpent(t *testing.T, db *gorm.DB, budgetID string, want int64) {
	t.Helper()
	if got := testutil.ReloadBudget(t, db, budgetID).Spent; got != want {
		t.Errorf("expected spent %d, got %d", want, got)
	}
}

func int64Ptr(v int64) *int64 { return &v }
