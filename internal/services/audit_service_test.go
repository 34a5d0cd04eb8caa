package services

import (
	"context"
	"testing"

	"budgetbook/internal/models"
	"budgetbook/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	t.Run("records_entry", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewAuditService(db)
		user := testutil.CreateTestUser(t, db)

		svc.Log(context.Background(), user.ID, "DELETE_EXPENSE", "expense", "exp-1", "10.0.0.1", map[string]interface{}{"amount": 1250})

		var entries []models.AuditLog
		testutil.AssertNoError(t, db.Where("user_id = ?", user.ID).Find(&entries).Error)
		if len(entries) != 1 {
			t.Fatalf("expected 1 audit entry, got %d", len(entries))
		}
		e := entries[0]
		if e.Action != "DELETE_EXPENSE" || e.ResourceType != "expense" || e.ResourceID != "exp-1" || e.IPAddress != "10.0.0.1" {
			t.Errorf("unexpected entry %+v", e)
		}
		if e.Changes != `{"amount":1250}` {
			t.Errorf("unexpected changes %q", e.Changes)
		}
	})

	t.Run("nil_changes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewAuditService(db)
		user := testutil.CreateTestUser(t, db)

		svc.Log(context.Background(), user.ID, "SIGN_OUT", "session", user.ID, "", nil)

		var entry models.AuditLog
		testutil.AssertNoError(t, db.Where("user_id = ?", user.ID).First(&entry).Error)
		if entry.Changes != "" {
			t.Errorf("expected empty changes, got %q", entry.Changes)
		}
	})

	t.Run("survives_cancelled_request", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewAuditService(db)
		user := testutil.CreateTestUser(t, db)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		svc.Log(ctx, user.ID, "DELETE_BUDGET", "budget", "b-1", "", nil)

		var count int64
		testutil.AssertNoError(t, db.Model(&models.AuditLog{}).Where("user_id = ?", user.ID).Count(&count).Error)
		if count != 1 {
			t.Errorf("expected entry despite cancelled context, got %d", count)
		}
	})

	t.Run("storage_failure_is_swallowed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewAuditService(db)
		testutil.TeardownTestDB(t, db)

		// Must not panic or return anything.
		svc.Log(context.Background(), "user", "CREATE_BUDGET", "budget", "b-1", "", nil)
	})
}
