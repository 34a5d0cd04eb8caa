package models

// BudgetPeriod represents the period type for a budget
type BudgetPeriod string

const (
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
)

// Valid reports whether p is a supported period.
func (p BudgetPeriod) Valid() bool {
	return p == BudgetPeriodMonthly || p == BudgetPeriodYearly
}

// Budget represents a spending limit for a category.
//
// Spent is the running sum of the amounts of all expenses linked to the
// budget. It is only ever changed by the ledger, never by user edits.
type Budget struct {
	Base
	UserID   string       `gorm:"type:uuid;not null;index" json:"user_id"`
	Name     string       `gorm:"not null" json:"name"`
	Amount   int64        `gorm:"type:bigint;not null" json:"amount"`
	Spent    int64        `gorm:"type:bigint;not null;default:0" json:"spent"`
	Category string       `gorm:"not null" json:"category"`
	Period   BudgetPeriod `gorm:"not null" json:"period"`
}
