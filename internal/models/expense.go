package models

import "time"

// Expense represents money spent by a user, optionally counted against a budget.
type Expense struct {
	Base
	UserID      string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount      int64     `gorm:"type:bigint;not null" json:"amount"`
	Category    string    `gorm:"not null" json:"category"`
	Description string    `gorm:"not null" json:"description"`
	Date        time.Time `gorm:"not null;index" json:"date"`
	ReceiptURL  *string   `json:"receipt_url,omitempty"`
	BudgetID    *string   `gorm:"type:uuid;index" json:"budget_id,omitempty"`
}

// LinkedBudgetID returns the budget this expense counts against, or "".
func (e *Expense) LinkedBudgetID() string {
	if e.BudgetID == nil {
		return ""
	}
	return *e.BudgetID
}
