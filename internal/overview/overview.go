// Package overview derives a user's financial summary from already-fetched
// budgets, expenses and incomes. It performs no I/O.
package overview

import (
	"math"
	"sort"
	"time"

	"budgetbook/internal/models"
)

// RecentActivityLimit is the number of items kept in Summary.RecentActivity.
const RecentActivityLimit = 5

// Kind tags an activity item as money going out or coming in.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// Activity is a single expense or income in the recent activity feed.
type Activity struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Label  string    `json:"label"`
	Amount int64     `json:"amount"`
	Date   time.Time `json:"date"`
}

// Summary holds the aggregated totals for one user.
type Summary struct {
	TotalBudget    int64      `json:"total_budget"`
	TotalExpenses  int64      `json:"total_expenses"`
	TotalIncome    int64      `json:"total_income"`
	Balance        int64      `json:"balance"`
	RecentActivity []Activity `json:"recent_activity"`
}

// Summarize computes totals and the recent activity feed.
//
// Activity is the union of expenses followed by incomes, sorted by date
// descending. Items with equal dates keep that input order.
func Summarize(budgets []models.Budget, expenses []models.Expense, incomes []models.Income) Summary {
	var s Summary

	for i := range budgets {
		s.TotalBudget = addClamped(s.TotalBudget, budgets[i].Amount)
	}

	activity := make([]Activity, 0, len(expenses)+len(incomes))
	for i := range expenses {
		e := &expenses[i]
		s.TotalExpenses = addClamped(s.TotalExpenses, e.Amount)
		activity = append(activity, Activity{
			ID:     e.ID,
			Kind:   KindExpense,
			Label:  e.Description,
			Amount: e.Amount,
			Date:   e.Date,
		})
	}
	for i := range incomes {
		in := &incomes[i]
		s.TotalIncome = addClamped(s.TotalIncome, in.Amount)
		activity = append(activity, Activity{
			ID:     in.ID,
			Kind:   KindIncome,
			Label:  in.Source,
			Amount: in.Amount,
			Date:   in.Date,
		})
	}
	s.Balance = addClamped(s.TotalIncome, -s.TotalExpenses)

	sort.SliceStable(activity, func(i, j int) bool {
		return activity[i].Date.After(activity[j].Date)
	})
	if len(activity) > RecentActivityLimit {
		activity = activity[:RecentActivityLimit]
	}
	s.RecentActivity = activity

	return s
}

// addClamped returns a+b, saturating at the int64 bounds. Totals are
// non-negative, so negating one never hits math.MinInt64.
func addClamped(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}
