package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"budgetbook/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestUser creates a user with a hashed password, unique email and profile.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user and profile with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	name, _, _ := strings.Cut(email, "@")
	profile := &models.Profile{ID: user.ID, Name: name}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}
	user.Profile = profile
	return user
}

// CreateTestBudget creates a monthly budget with the given amount (in cents)
// and zero spent.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string, amount int64) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Budget %d", nextID()),
		Amount:   amount,
		Category: "Food",
		Period:   models.BudgetPeriodMonthly,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestExpense inserts an expense directly, bypassing the ledger.
// budgetID may be nil.
func CreateTestExpense(t *testing.T, db *gorm.DB, userID string, budgetID *string, amount int64, date time.Time) *models.Expense {
	t.Helper()

	expense := &models.Expense{
		UserID:      userID,
		Amount:      amount,
		Category:    "Food",
		Description: fmt.Sprintf("Test Expense %d", nextID()),
		Date:        date,
		BudgetID:    budgetID,
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}

// CreateTestIncome inserts an income record.
func CreateTestIncome(t *testing.T, db *gorm.DB, userID string, amount int64, date time.Time) *models.Income {
	t.Helper()

	income := &models.Income{
		UserID: userID,
		Amount: amount,
		Source: fmt.Sprintf("Test Source %d", nextID()),
		Date:   date,
	}
	if err := db.Create(income).Error; err != nil {
		t.Fatalf("failed to create test income: %v", err)
	}
	return income
}

// ReloadBudget reads a budget back from the database, including soft-deleted rows.
func ReloadBudget(t *testing.T, db *gorm.DB, id string) *models.Budget {
	t.Helper()

	var budget models.Budget
	if err := db.Unscoped().First(&budget, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload budget %s: %v", id, err)
	}
	return &budget
}
