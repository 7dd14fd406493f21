package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tally/internal/models"
	"tally/internal/period"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Dec parses a decimal literal, panicking on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewUserID returns a unique user identifier.
func NewUserID() string {
	return fmt.Sprintf("user-%d", nextID())
}

// CreateTestAccount creates an active account with zero balance.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID string) *models.Account {
	t.Helper()
	return CreateTestAccountWithBalance(t, db, userID, "0")
}

// CreateTestAccountWithBalance creates an active account holding balance.
// The balance is written directly, bypassing the ledger.
func CreateTestAccountWithBalance(t *testing.T, db *gorm.DB, userID string, balance string) *models.Account {
	t.Helper()

	account := &models.Account{
		UserID:  userID,
		Name:    fmt.Sprintf("Test Account %d", nextID()),
		Balance: Dec(balance),
		Status:  models.AccountStatusActive,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategory creates a category of the given type.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestBudget creates a monthly budget starting on start with no
// categories.
func CreateTestBudget(t *testing.T, db *gorm.DB, userID string, start time.Time, total string) *models.Budget {
	t.Helper()

	start = period.Truncate(start)
	budget := &models.Budget{
		UserID:      userID,
		Name:        fmt.Sprintf("Test Budget %d", nextID()),
		PeriodType:  period.Monthly,
		StartDate:   start,
		EndDate:     period.EndDate(start, period.Monthly),
		TotalAmount: Dec(total),
	}
	if err := db.Omit("BudgetCategories").Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestBudgetCategory allocates amount of budget to category directly.
func CreateTestBudgetCategory(t *testing.T, db *gorm.DB, budgetID, categoryID string, allocated string) *models.BudgetCategory {
	t.Helper()

	bc := &models.BudgetCategory{
		BudgetID:        budgetID,
		CategoryID:      categoryID,
		AllocatedAmount: Dec(allocated),
	}
	if err := db.Create(bc).Error; err != nil {
		t.Fatalf("failed to create test budget category: %v", err)
	}
	return bc
}

// CreateTestExpense records an expense row directly, without touching the
// account balance or any budget.
func CreateTestExpense(t *testing.T, db *gorm.DB, userID, accountID, categoryID string, amount string, date time.Time) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:          userID,
		Type:            models.TransactionTypeExpense,
		Amount:          Dec(amount),
		SourceAccountID: &accountID,
		CategoryID:      &categoryID,
		Date:            date.UTC(),
	}
	if err := db.Create(tx).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return tx
}

// ReloadAccount reads an account back from the database, including
// soft-deleted rows.
func ReloadAccount(t *testing.T, db *gorm.DB, id string) *models.Account {
	t.Helper()

	var account models.Account
	if err := db.Unscoped().First(&account, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload account %s: %v", id, err)
	}
	return &account
}

// ReloadBudgetCategory reads a budget category back from the database.
func ReloadBudgetCategory(t *testing.T, db *gorm.DB, id string) *models.BudgetCategory {
	t.Helper()

	var bc models.BudgetCategory
	if err := db.First(&bc, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload budget category %s: %v", id, err)
	}
	return &bc
}
