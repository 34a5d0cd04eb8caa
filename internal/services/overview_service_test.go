package services

import (
	"context"
	"testing"

	"budgetbook/internal/money"
	"budgetbook/internal/overview"
	"budgetbook/internal/testutil"
)

func TestGetOverview(t *testing.T) {
	ctx := context.Background()

	t.Run("balance_is_income_minus_expenses", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewOverviewService(db, money.NewFormatter("KSH"))
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestIncome(t, db, user.ID, 100000, testutil.Day(2025, 1, 1))
		testutil.CreateTestExpense(t, db, user.ID, nil, 20000, testutil.Day(2025, 1, 2))

		got, err := svc.GetOverview(ctx, user.ID)
		testutil.AssertNoError(t, err)

		if got.TotalIncome != 100000 || got.TotalExpenses != 20000 || got.Balance != 80000 {
			t.Errorf("unexpected totals %+v", got.Summary)
		}
		if got.Display.Balance != "KSH 800.00" {
			t.Errorf("expected display balance %q, got %q", "KSH 800.00", got.Display.Balance)
		}
	})

	t.Run("totals_and_recent_activity", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewOverviewService(db, nil)
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)

		b1 := testutil.CreateTestBudget(t, db, user.ID, 30000)
		testutil.CreateTestBudget(t, db, user.ID, 20000)
		testutil.CreateTestBudget(t, db, other.ID, 99999)

		for day := 1; day <= 4; day++ {
			testutil.CreateTestExpense(t, db, user.ID, &b1.ID, 1000, testutil.Day(2025, 3, day))
		}
		testutil.CreateTestIncome(t, db, user.ID, 5000, testutil.Day(2025, 3, 10))
		testutil.CreateTestIncome(t, db, user.ID, 5000, testutil.Day(2025, 2, 1))
		testutil.CreateTestExpense(t, db, other.ID, nil, 123456, testutil.Day(2025, 3, 30))

		got, err := svc.GetOverview(ctx, user.ID)
		testutil.AssertNoError(t, err)

		if got.TotalBudget != 50000 {
			t.Errorf("expected total budget 50000, got %d", got.TotalBudget)
		}
		if got.TotalExpenses != 4000 || got.TotalIncome != 10000 || got.Balance != 6000 {
			t.Errorf("unexpected totals %+v", got.Summary)
		}

		if len(got.RecentActivity) != overview.RecentActivityLimit {
			t.Fatalf("expected %d activities, got %d", overview.RecentActivityLimit, len(got.RecentActivity))
		}
		first := got.RecentActivity[0]
		if first.Kind != overview.KindIncome || !first.Date.Equal(testutil.Day(2025, 3, 10)) {
			t.Errorf("expected newest income first, got %+v", first)
		}
		for _, a := range got.RecentActivity {
			if a.Amount == 123456 {
				t.Error("overview includes another user's expense")
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewOverviewService(db, nil)
		user := testutil.CreateTestUser(t, db)

		got, err := svc.GetOverview(ctx, user.ID)
		testutil.AssertNoError(t, err)

		if got.Balance != 0 || got.RecentActivity == nil || len(got.RecentActivity) != 0 {
			t.Errorf("expected an empty overview, got %+v", got)
		}
	})
}
