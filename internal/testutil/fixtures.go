package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"budgetwise/internal/models"
	"budgetwise/internal/recurrence"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Date returns midnight UTC on the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
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
	return user
}

// CreateTestBudget creates an empty monthly budget.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string, month time.Month, year int) *models.MonthlyBudget {
	t.Helper()

	budget := &models.MonthlyBudget{
		UserID:      userID,
		Name:        fmt.Sprintf("%s %d", month, year),
		Month:       int(month),
		Year:        year,
		TotalIncome: decimal.NewFromInt(3000),
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestCategory adds a category to a budget.
func CreateTestCategory(t *testing.T, db *gorm.DB, budgetID, name string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		BudgetID:     budgetID,
		Name:         name,
		Color:        "#3b82f6",
		Icon:         "tag",
		BudgetAmount: decimal.NewFromInt(500),
		Type:         categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestTransaction records a manual transaction in a budget.
func CreateTestTransaction(t *testing.T, db *gorm.DB, budget *models.MonthlyBudget, categoryID string, txType models.TransactionType, amount int64) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:      budget.UserID,
		BudgetID:    budget.ID,
		CategoryID:  categoryID,
		Type:        txType,
		Amount:      decimal.NewFromInt(amount),
		Description: fmt.Sprintf("Test Transaction %d", nextID()),
		Date:        recurrence.MonthStart(time.Month(budget.Month), budget.Year),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// CreateTestRecurrent creates an active recurring template whose cursor
// starts at its start date.
func CreateTestRecurrent(t *testing.T, db *gorm.DB, userID, categoryID string, iv recurrence.Interval, start time.Time) *models.RecurrentTransaction {
	t.Helper()

	r := &models.RecurrentTransaction{
		UserID:            userID,
		Type:              models.TransactionTypeExpense,
		Amount:            decimal.NewFromInt(1200),
		Description:       fmt.Sprintf("Test Recurrent %d", nextID()),
		CategoryID:        categoryID,
		StartDate:         start,
		IsActive:          true,
		NextExecutionDate: start,
	}
	r.SetInterval(iv)
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("failed to create test recurrent transaction: %v", err)
	}
	return r
}
