package models

import "time"

// Income represents money received by a user.
// BudgetID is informational only and never affects a budget's spent amount.
type Income struct {
	Base
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount    int64     `gorm:"type:bigint;not null" json:"amount"`
	Source    string    `gorm:"not null" json:"source"`
	Date      time.Time `gorm:"not null;index" json:"date"`
	Recurring bool      `gorm:"not null;default:false" json:"recurring"`
	BudgetID  *string   `gorm:"type:uuid;index" json:"budget_id,omitempty"`
}
