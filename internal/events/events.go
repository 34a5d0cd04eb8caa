// Package events announces changes to a user's data so that other sessions
// and downstream consumers can refetch.
package events

import (
	"context"
	"encoding/json"
	"time"

	"budgetbook/internal/logger"
)

// Type identifies what changed. It doubles as the AMQP routing key.
type Type string

const (
	BudgetCreated    Type = "budget.created"
	BudgetUpdated    Type = "budget.updated"
	BudgetDeleted    Type = "budget.deleted"
	BudgetReconciled Type = "budget.reconciled"
	BudgetDrifted    Type = "budget.drifted"
	ExpenseCreated   Type = "expense.created"
	ExpenseUpdated   Type = "expense.updated"
	ExpenseDeleted   Type = "expense.deleted"
	IncomeCreated    Type = "income.created"
	IncomeDeleted    Type = "income.deleted"
	ProfileUpdated   Type = "profile.updated"
	SignedIn         Type = "session.signed_in"
	SignedOut        Type = "session.signed_out"
)

// Event is a change notification. It carries ids only; consumers fetch the
// current state themselves.
type Event struct {
	Type       Type      `json:"type"`
	UserID     string    `json:"user_id"`
	ResourceID string    `json:"resource_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ToJSON encodes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Notify stamps and publishes an event. Delivery failures are logged and
// never returned: a lost notification must not undo a committed write.
func Notify(ctx context.Context, pub Publisher, typ Type, userID, resourceID string) {
	if pub == nil {
		return
	}
	ev := Event{
		Type:       typ,
		UserID:     userID,
		ResourceID: resourceID,
		OccurredAt: time.Now().UTC(),
	}
	if err := pub.Publish(ctx, ev); err != nil {
		logger.Named("events").Warnw("failed to publish event",
			"error", err,
			"type", typ,
			"user_id", userID,
			"resource_id", resourceID,
		)
	}
}
