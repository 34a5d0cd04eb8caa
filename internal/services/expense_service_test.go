package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgetbook/internal/events"
	"budgetbook/internal/ledger"
	"budgetbook/internal/models"
	"budgetbook/internal/money"
	"budgetbook/internal/pagination"
	"budgetbook/internal/testutil"
)

func TestCreateExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("charges_linked_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicySkip)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 50000)

		expense, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{
			Amount:      1250,
			Category:    "Food",
			Description: "Lunch",
			Date:        testutil.Day(2025, 3, 14),
			BudgetID:    &budget.ID,
		})
		testutil.AssertNoError(t, err)

		if expense.ID == "" {
			t.Fatal("expected expense ID")
		}
		if expense.LinkedBudgetID() != budget.ID {
			t.Errorf("expected link to %s, got %q", budget.ID, expense.LinkedBudgetID())
		}
		assertSpent(t, db, budget.ID, 1250)

		if types := svc.publisher.Types(); len(types) != 1 || types[0] != events.ExpenseCreated {
			t.Errorf("expected expense.created event, got %v", types)
		}
	})

	t.Run("without_budget_leaves_budgets_alone", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicySkip)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 50000)

		expense, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 900, Category: "Transport", Description: "Bus"})
		testutil.AssertNoError(t, err)

		if expense.BudgetID != nil {
			t.Errorf("expected no budget link, got %s", *expense.BudgetID)
		}
		assertSpent(t, db, budget.ID, 0)
	})

	t.Run("blank_budget_id_means_no_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicyFail)
		user := testutil.CreateTestUser(t, db)

		expense, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{
			Amount: 900, Category: "Transport", Description: "Bus", BudgetID: testutil.StringPtr("  "),
		})
		testutil.AssertNoError(t, err)
		if expense.BudgetID != nil {
			t.Errorf("expected no budget link, got %s", *expense.BudgetID)
		}
	})

	t.Run("defaults_date_to_today", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicySkip)
		user := testutil.CreateTestUser(t, db)

		expense, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 100, Category: "Food", Description: "Tea"})
		testutil.AssertNoError(t, err)
		if !expense.Date.Equal(today()) {
			t.Errorf("expected date %v, got %v", today(), expense.Date)
		}
	})

	invalid := []struct {
		name  string
		input ExpenseInput
	}{
		{"zero_amount", ExpenseInput{Amount: 0, Category: "Food", Description: "Tea"}},
		{"negative_amount", ExpenseInput{Amount: -100, Category: "Food", Description: "Tea"}},
		{"amount_above_maximum", ExpenseInput{Amount: money.MaxAmount + 1, Category: "Food", Description: "Tea"}},
		{"blank_category", ExpenseInput{Amount: 100, Category: " ", Description: "Tea"}},
		{"blank_description", ExpenseInput{Amount: 100, Category: "Food"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			svc := newLedgerServices(db, ledger.PolicySkip)
			user := testutil.CreateTestUser(t, db)

			_, err := svc.expenses.CreateExpense(ctx, user.ID, tt.input)
			testutil.AssertAppError(t, err, "INVALID_INPUT")
		})
	}

	t.Run("missing_budget_with_skip_policy", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		l := ledger.New(ledger.PolicySkip)
		var warnings []*ledger.ConsistencyWarning
		l.OnWarning = func(w *ledger.ConsistencyWarning) { warnings = append(warnings, w) }
		svc := NewExpenseService(db, l, nil)
		user := testutil.CreateTestUser(t, db)

		expense, err := svc.CreateExpense(ctx, user.ID, ExpenseInput{
			Amount: 400, Category: "Food", Description: "Snacks", BudgetID: testutil.StringPtr("gone"),
		})
		testutil.AssertNoError(t, err)

		if _, err := svc.GetExpenseByID(ctx, user.ID, expense.ID); err != nil {
			t.Fatalf("expected expense to be persisted: %v", err)
		}
		if len(warnings) != 1 || warnings[0].BudgetID != "gone" || warnings[0].Delta != 400 {
			t.Errorf("expected one consistency warning, got %+v", warnings)
		}
	})

	t.Run("missing_budget_with_fail_policy", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicyFail)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{
			Amount: 400, Category: "Food", Description: "Snacks", BudgetID: testutil.StringPtr("gone"),
		})
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")

		var count int64
		db.Model(&models.Expense{}).Where("user_id = ?", user.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected no expense to be persisted, found %d", count)
		}
		if len(svc.publisher.Events()) != 0 {
			t.Error("expected no event for a rejected expense")
		}
	})

	t.Run("other_users_budget_is_not_charged", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicyFail)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, owner.ID, 50000)

		_, err := svc.expenses.CreateExpense(ctx, other.ID, ExpenseInput{
			Amount: 400, Category: "Food", Description: "Snacks", BudgetID: &budget.ID,
		})
		testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")
		assertSpent(t, db, budget.ID, 0)
	})

	t.Run("ledger_failure_rolls_back_with_fail_policy", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicyFail)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 50000)
		testutil.FailUpdatesOn(t, db, "budgets", errors.New("disk full"))

		_, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{
			Amount: 400, Category: "Food", Description: "Snacks", BudgetID: &budget.ID,
		})
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")

		var count int64
		db.Model(&models.Expense{}).Where("user_id = ?", user.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected the expense insert to roll back, found %d", count)
		}
	})

	t.Run("saturated_budget_rejects_with_skip_policy", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicySkip)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 50000)
		testutil.AssertNoError(t, db.Model(budget).Update("spent", money.MaxSpent).Error)

		_, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{
			Amount: 1, Category: "Food", Description: "Snacks", BudgetID: &budget.ID,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")

		var count int64
		db.Model(&models.Expense{}).Where("user_id = ?", user.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected the expense insert to roll back, found %d", count)
		}
		assertSpent(t, db, budget.ID, money.MaxSpent)
	})

	t.Run("concurrent_creates_are_all_counted", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		sqlDB, err := db.DB()
		testutil.AssertNoError(t, err)
		sqlDB.SetMaxOpenConns(1)

		svc := newLedgerServices(db, ledger.PolicySkip)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 50000)

		const writers = 10
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{
					Amount: 100, Category: "Food", Description: "Coffee", BudgetID: &budget.ID,
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			testutil.AssertNoError(t, err)
		}
		assertSpent(t, db, budget.ID, writers*100)
	})
}

func TestDeleteExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("releases_linked_budget", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicySkip)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 50000)
		expense, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 3000, Category: "Food", Description: "Dinner", BudgetID: &budget.ID})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.expenses.DeleteExpense(ctx, user.ID, expense.ID))

		assertSpent(t, db, budget.ID, 0)
		_, err = svc.expenses.GetExpenseByID(ctx, user.ID, expense.ID)
		testutil.AssertAppError(t, err, "EXPENSE_NOT_FOUND")
	})

	t.Run("repeated_delete_adjusts_once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicySkip)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 50000)
		keep, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 700, Category: "Food", Description: "Keep", BudgetID: &budget.ID})
		testutil.AssertNoError(t, err)
		drop, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 300, Category: "Food", Description: "Drop", BudgetID: &budget.ID})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.expenses.DeleteExpense(ctx, user.ID, drop.ID))
		testutil.AssertNoError(t, svc.expenses.DeleteExpense(ctx, user.ID, drop.ID))

		assertSpent(t, db, budget.ID, keep.Amount)

		deletes := 0
		for _, typ := range svc.publisher.Types() {
			if typ == events.ExpenseDeleted {
				deletes++
			}
		}
		if deletes != 1 {
			t.Errorf("expected one expense.deleted event, got %d", deletes)
		}
	})

	t.Run("unlinked_expense_leaves_budgets_alone", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicySkip)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 50000)
		_, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 500, Category: "Food", Description: "Linked", BudgetID: &budget.ID})
		testutil.AssertNoError(t, err)
		loose, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 200, Category: "Food", Description: "Loose"})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.expenses.DeleteExpense(ctx, user.ID, loose.ID))
		assertSpent(t, db, budget.ID, 500)
	})

	t.Run("missing_budget_is_tolerated_with_fail_policy", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicyFail)
		user := testutil.CreateTestUser(t, db)
		expense := testutil.CreateTestExpense(t, db, user.ID, testutil.StringPtr("gone"), 500, testutil.Day(2025, 1, 2))

		testutil.AssertNoError(t, svc.expenses.DeleteExpense(ctx, user.ID, expense.ID))

		_, err := svc.expenses.GetExpenseByID(ctx, user.ID, expense.ID)
		testutil.AssertAppError(t, err, "EXPENSE_NOT_FOUND")
	})

	t.Run("other_users_expense_is_untouched", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicySkip)
		owner := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, owner.ID, 50000)
		expense, err := svc.expenses.CreateExpense(ctx, owner.ID, ExpenseInput{Amount: 500, Category: "Food", Description: "Mine", BudgetID: &budget.ID})
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.expenses.DeleteExpense(ctx, other.ID, expense.ID))

		_, err = svc.expenses.GetExpenseByID(ctx, owner.ID, expense.ID)
		testutil.AssertNoError(t, err)
		assertSpent(t, db, budget.ID, 500)
	})
}

func TestUpdateExpense(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*ledgerServices, *models.User, *models.Budget, *models.Expense) {
		t.Helper()
		db := testutil.SetupTestDB(t)
		svc := newLedgerServices(db, ledger.PolicySkip)
		user := testutil.CreateTestUser(t, db)
		budget := testutil.CreateTestBudget(t, db, user.ID, 50000)
		expense, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 1000, Category: "Food", Description: "Lunch", BudgetID: &budget.ID})
		testutil.AssertNoError(t, err)
		return svc, user, budget, expense
	}

	t.Run("amount_change_adjusts_difference", func(t *testing.T) {
		svc, user, budget, expense := setup(t)
		db := svc.db

		updated, err := svc.expenses.UpdateExpense(ctx, user.ID, expense.ID, ExpenseUpdate{Amount: int64Ptr(1600)})
		testutil.AssertNoError(t, err)

		if updated.Amount != 1600 {
			t.Errorf("expected amount 1600, got %d", updated.Amount)
		}
		assertSpent(t, db, budget.ID, 1600)

		_, err = svc.expenses.UpdateExpense(ctx, user.ID, expense.ID, ExpenseUpdate{Amount: int64Ptr(400)})
		testutil.AssertNoError(t, err)
		assertSpent(t, db, budget.ID, 400)
	})

	t.Run("moving_between_budgets", func(t *testing.T) {
		svc, user, budget, expense := setup(t)
		db := svc.db
		target := testutil.CreateTestBudget(t, db, user.ID, 20000)

		updated, err := svc.expenses.UpdateExpense(ctx, user.ID, expense.ID, ExpenseUpdate{
			Amount:   int64Ptr(1200),
			BudgetID: &target.ID,
		})
		testutil.AssertNoError(t, err)

		if updated.LinkedBudgetID() != target.ID {
			t.Errorf("expected link to %s, got %q", target.ID, updated.LinkedBudgetID())
		}
		assertSpent(t, db, budget.ID, 0)
		assertSpent(t, db, target.ID, 1200)
	})

	t.Run("unlinking_releases_budget", func(t *testing.T) {
		svc, user, budget, expense := setup(t)
		db := svc.db

		updated, err := svc.expenses.UpdateExpense(ctx, user.ID, expense.ID, ExpenseUpdate{BudgetID: testutil.StringPtr("")})
		testutil.AssertNoError(t, err)

		if updated.BudgetID != nil {
			t.Errorf("expected expense to be unlinked, got %s", *updated.BudgetID)
		}
		assertSpent(t, db, budget.ID, 0)
	})

	t.Run("text_only_change_leaves_spent", func(t *testing.T) {
		svc, user, budget, expense := setup(t)
		db := svc.db

		day := testutil.Day(2025, 2, 1)
		updated, err := svc.expenses.UpdateExpense(ctx, user.ID, expense.ID, ExpenseUpdate{
			Description: testutil.StringPtr("Team lunch"),
			Date:        &day,
			ReceiptURL:  testutil.StringPtr("https://example.com/r/1.png"),
		})
		testutil.AssertNoError(t, err)

		if updated.Description != "Team lunch" || !updated.Date.Equal(day) {
			t.Errorf("unexpected expense %+v", updated)
		}
		if updated.ReceiptURL == nil || *updated.ReceiptURL != "https://example.com/r/1.png" {
			t.Errorf("expected receipt URL to be set, got %v", updated.ReceiptURL)
		}
		assertSpent(t, db, budget.ID, 1000)
	})

	t.Run("invalid_amount", func(t *testing.T) {
		svc, user, budget, expense := setup(t)
		db := svc.db

		_, err := svc.expenses.UpdateExpense(ctx, user.ID, expense.ID, ExpenseUpdate{Amount: int64Ptr(-1)})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		assertSpent(t, db, budget.ID, 1000)

		_, err = svc.expenses.UpdateExpense(ctx, user.ID, expense.ID, ExpenseUpdate{Amount: int64Ptr(money.MaxAmount + 1)})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		assertSpent(t, db, budget.ID, 1000)
	})

	t.Run("other_user", func(t *testing.T) {
		svc, _, budget, expense := setup(t)
		db := svc.db
		other := testutil.CreateTestUser(t, db)

		_, err := svc.expenses.UpdateExpense(ctx, other.ID, expense.ID, ExpenseUpdate{Amount: int64Ptr(5)})
		testutil.AssertAppError(t, err, "EXPENSE_NOT_FOUND")
		assertSpent(t, db, budget.ID, 1000)
	})
}

func TestGetUserExpenses(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newLedgerServices(db, ledger.PolicySkip)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID, 50000)

	mustCreate := func(amount int64, category string, date time.Time, budgetID *string) {
		t.Helper()
		_, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{
			Amount: amount, Category: category, Description: category, Date: date, BudgetID: budgetID,
		})
		testutil.AssertNoError(t, err)
	}
	mustCreate(100, "Food", testutil.Day(2025, 1, 5), &budget.ID)
	mustCreate(200, "Transport", testutil.Day(2025, 1, 20), nil)
	mustCreate(300, "Food", testutil.Day(2025, 2, 3), nil)
	testutil.CreateTestExpense(t, db, other.ID, nil, 999, testutil.Day(2025, 1, 10))

	t.Run("newest_first", func(t *testing.T) {
		result, err := svc.expenses.GetUserExpenses(ctx, user.ID, pagination.PageRequest{}, ExpenseFilter{})
		testutil.AssertNoError(t, err)

		if result.TotalItems != 3 {
			t.Fatalf("expected 3 expenses, got %d", result.TotalItems)
		}
		if result.Data[0].Amount != 300 || result.Data[2].Amount != 100 {
			t.Errorf("expected date descending order, got %d..%d", result.Data[0].Amount, result.Data[2].Amount)
		}
	})

	t.Run("by_category", func(t *testing.T) {
		result, err := svc.expenses.GetUserExpenses(ctx, user.ID, pagination.PageRequest{}, ExpenseFilter{Category: testutil.StringPtr("Food")})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 2 {
			t.Errorf("expected 2 food expenses, got %d", result.TotalItems)
		}
	})

	t.Run("by_budget", func(t *testing.T) {
		result, err := svc.expenses.GetUserExpenses(ctx, user.ID, pagination.PageRequest{}, ExpenseFilter{BudgetID: &budget.ID})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 || result.Data[0].Amount != 100 {
			t.Errorf("expected the single linked expense, got %+v", result.Data)
		}
	})

	t.Run("by_date_range", func(t *testing.T) {
		from := testutil.Day(2025, 1, 10)
		to := testutil.Day(2025, 1, 31)
		result, err := svc.expenses.GetUserExpenses(ctx, user.ID, pagination.PageRequest{}, ExpenseFilter{FromDate: &from, ToDate: &to})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 || result.Data[0].Amount != 200 {
			t.Errorf("expected the January 20 expense, got %+v", result.Data)
		}
	})
}

func TestLedgerScenario(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newLedgerServices(db, ledger.PolicySkip)
	user := testutil.CreateTestUser(t, db)
	budget := testutil.CreateTestBudget(t, db, user.ID, 500)
	if err := db.Model(&models.Budget{}).Where("id = ?", budget.ID).Update("spent", 100).Error; err != nil {
		t.Fatalf("failed to seed spent: %v", err)
	}

	expense, err := svc.expenses.CreateExpense(ctx, user.ID, ExpenseInput{Amount: 50, Category: "Food", Description: "Snack", BudgetID: &budget.ID})
	testutil.AssertNoError(t, err)
	assertSpent(t, db, budget.ID, 150)

	testutil.AssertNoError(t, svc.expenses.DeleteExpense(ctx, user.ID, expense.ID))
	assertSpent(t, db, budget.ID, 100)
}
