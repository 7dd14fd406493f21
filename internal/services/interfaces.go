package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/period"
	"tally/internal/store"
)

// Options tunes the engine services.
type Options struct {
	// VerifyInvariants runs the consistency checker before every commit.
	VerifyInvariants bool
}

// DepositInput describes money entering an account.
type DepositInput struct {
	AccountID   string
	Amount      decimal.Decimal
	CategoryID  *string
	Date        time.Time
	Description string
}

// WithdrawInput describes money leaving an account.
type WithdrawInput struct {
	AccountID   string
	Amount      decimal.Decimal
	CategoryID  *string
	Date        time.Time
	Description string
}

// TransferInput describes money moving between two accounts of one user.
type TransferInput struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Date          time.Time
	Description   string
}

// LedgerResult is the state after a ledger operation committed. Transaction is
// nil when the operation recorded none.
type LedgerResult struct {
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Accounts    []models.Account    `json:"accounts"`
}

// Account returns the post-operation snapshot of id, if present.
func (r *LedgerResult) Account(id string) (models.Account, bool) {
	for _, a := range r.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return models.Account{}, false
}

// LedgerServicer mutates balances and records transactions atomically.
type LedgerServicer interface {
	Deposit(ctx context.Context, userID string, in DepositInput) (*LedgerResult, error)
	Withdraw(ctx context.Context, userID string, in WithdrawInput) (*LedgerResult, error)
	Transfer(ctx context.Context, userID string, in TransferInput) (*LedgerResult, error)
	AdjustBalance(ctx context.Context, userID, accountID string, newBalance decimal.Decimal) (*LedgerResult, error)
	DeleteAccount(ctx context.Context, userID, accountID string, transferToID *string) (*LedgerResult, error)
	ReverseTransaction(ctx context.Context, userID, transactionID, description string) (*LedgerResult, error)
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(ctx context.Context, userID, name, description string, initialBalance decimal.Decimal) (*models.Account, error)
	GetUserAccounts(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(ctx context.Context, userID, accountID string) (*models.Account, error)
	UpdateAccount(ctx context.Context, userID, accountID, name, description string) (*models.Account, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(ctx context.Context, userID, name string, categoryType models.CategoryType) (*models.Category, error)
	GetUserCategories(ctx context.Context, userID string, categoryType *models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error)
	UpdateCategory(ctx context.Context, userID, categoryID, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, userID, categoryID string) error
}

// TransactionServicer exposes the transaction record. Writes go through the
// LedgerServicer.
type TransactionServicer interface {
	GetUserTransactions(ctx context.Context, userID string, filter store.TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionByID(ctx context.Context, userID, transactionID string) (*models.Transaction, error)
	SpendingByCategory(ctx context.Context, userID string, from, to time.Time) ([]store.CategorySpending, error)
}

// CreateBudgetInput holds the fields of a new budget. The end date is derived.
type CreateBudgetInput struct {
	Name        string
	PeriodType  period.Type
	StartDate   time.Time
	TotalAmount decimal.Decimal
}

// UpdateBudgetInput holds optional budget changes; nil fields are left alone.
type UpdateBudgetInput struct {
	Name        *string
	PeriodType  *period.Type
	StartDate   *time.Time
	TotalAmount *decimal.Decimal
}

// BudgetCategorySummary is the usage of one allocation.
type BudgetCategorySummary struct {
	BudgetCategoryID string          `json:"budget_category_id"`
	CategoryID       string          `json:"category_id"`
	Allocated        decimal.Decimal `json:"allocated"`
	Spent            decimal.Decimal `json:"spent"`
	Remaining        decimal.Decimal `json:"remaining"`
	UsagePercentage  decimal.Decimal `json:"usage_percentage"`
}

// BudgetSummary is the usage of a whole budget.
type BudgetSummary struct {
	BudgetID        string                  `json:"budget_id"`
	StartDate       time.Time               `json:"start_date"`
	EndDate         time.Time               `json:"end_date"`
	TotalAmount     decimal.Decimal         `json:"total_amount"`
	Allocated       decimal.Decimal         `json:"allocated"`
	Unallocated     decimal.Decimal         `json:"unallocated"`
	Spent           decimal.Decimal         `json:"spent"`
	UsagePercentage decimal.Decimal         `json:"usage_percentage"`
	Categories      []BudgetCategorySummary `json:"categories"`
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(ctx context.Context, userID string, in CreateBudgetInput) (*models.Budget, error)
	GetUserBudgets(ctx context.Context, userID string, filter store.BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error)
	GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error)
	UpdateBudget(ctx context.Context, userID, budgetID string, in UpdateBudgetInput) (*models.Budget, error)
	DeleteBudget(ctx context.Context, userID, budgetID string) error

	AddBudgetCategory(ctx context.Context, userID, budgetID, categoryID string, allocated decimal.Decimal) (*models.BudgetCategory, error)
	UpdateBudgetCategoryAllocation(ctx context.Context, userID, budgetCategoryID string, allocated decimal.Decimal) (*models.BudgetCategory, error)
	ReassignBudgetCategory(ctx context.Context, userID, budgetCategoryID, categoryID string) (*models.BudgetCategory, error)
	DeleteBudgetCategory(ctx context.Context, userID, budgetCategoryID string) error

	RecomputeSpent(ctx context.Context, userID, budgetCategoryID string) (*models.BudgetCategory, error)
	RecomputeBudget(ctx context.Context, userID, budgetID string) (*models.Budget, error)
	CopyBudget(ctx context.Context, userID, sourceBudgetID, name string, start time.Time) (*models.Budget, error)
	RollForward(ctx context.Context, userID, budgetID string) (*models.Budget, error)
	GetBudgetSummary(ctx context.Context, userID, budgetID string) (*BudgetSummary, error)
}

// SpentRecomputer refreshes materialized spent amounts inside a caller's unit
// of work. The ledger calls it after every write that can move spent.
type SpentRecomputer interface {
	RecomputeCovering(ctx context.Context, repo store.Repository, userID, categoryID string, date time.Time) ([]models.BudgetCategory, error)
}

// ReconcileOptions controls a reconciliation sweep.
type ReconcileOptions struct {
	// Fix recomputes drifted spent amounts instead of only reporting them.
	Fix         bool
	Concurrency int
	PageSize    int
}

// Violation is one invariant found broken by a sweep.
type Violation struct {
	Invariant  string `json:"invariant"`
	ResourceID string `json:"resource_id"`
	Detail     string `json:"detail"`
	Fixed      bool   `json:"fixed"`
}

// ReconcileReport summarizes a reconciliation sweep.
type ReconcileReport struct {
	AccountsChecked int         `json:"accounts_checked"`
	BudgetsChecked  int         `json:"budgets_checked"`
	Violations      []Violation `json:"violations"`
}

// Clean reports whether the sweep found nothing left broken.
func (r *ReconcileReport) Clean() bool {
	for _, v := range r.Violations {
		if !v.Fixed {
			return false
		}
	}
	return true
}

// ReconcileServicer verifies stored state against the invariants.
type ReconcileServicer interface {
	Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
