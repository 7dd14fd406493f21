// Package store is the persistence collaborator of the ledger engine. A Store
// hands out Repositories scoped to a unit of work: every change made through
// the Repository passed to WithinUnitOfWork commits together or not at all.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/period"
)

// Store opens units of work.
type Store interface {
	// WithinUnitOfWork runs fn in one database transaction. A non-nil error
	// from fn rolls everything back. fn may be invoked more than once when the
	// database reports a serialization conflict, so it must not leak state
	// between attempts.
	WithinUnitOfWork(ctx context.Context, fn func(repo Repository) error) error

	// Reader returns a Repository for read-committed queries outside any
	// unit of work.
	Reader() Repository
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	CategoryID *string
	AccountID  *string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
}

// BudgetFilter holds optional filter parameters for listing budgets.
type BudgetFilter struct {
	PeriodType *period.Type
	ActiveOn   *time.Time
}

// CategorySpending is one row of the spending-by-category aggregate.
type CategorySpending struct {
	CategoryID string          `json:"category_id"`
	Total      decimal.Decimal `json:"total"`
	Count      int64           `json:"count"`
}

// Repository is the set of reads and writes the engine needs.
// Lookups of missing rows return the matching NotFound AppError.
type Repository interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountForUpdate(ctx context.Context, id string) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	SaveAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccounts(ctx context.Context, userID string, page pagination.PageRequest) ([]models.Account, int64, error)
	ForEachAccountPage(ctx context.Context, pageSize int, fn func([]models.Account) error) error

	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	FindReversal(ctx context.Context, transactionID string) (*models.Transaction, error)
	FindTransactions(ctx context.Context, categoryID string, from, toExclusive time.Time) ([]models.Transaction, error)
	ListTransactions(ctx context.Context, userID string, filter TransactionFilter, page pagination.PageRequest) ([]models.Transaction, int64, error)
	SpendingByCategory(ctx context.Context, userID string, from, toExclusive time.Time) ([]CategorySpending, error)

	GetCategory(ctx context.Context, id string) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	SaveCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
	CategoryInUse(ctx context.Context, id string) (bool, error)
	CategoryNameTaken(ctx context.Context, userID, name, excludeID string) (bool, error)
	ListCategories(ctx context.Context, userID string, categoryType *models.CategoryType, page pagination.PageRequest) ([]models.Category, int64, error)

	GetBudget(ctx context.Context, id string) (*models.Budget, error)
	GetBudgetForUpdate(ctx context.Context, id string) (*models.Budget, error)
	CreateBudget(ctx context.Context, budget *models.Budget) error
	SaveBudget(ctx context.Context, budget *models.Budget) error
	DeleteBudget(ctx context.Context, id string) error
	ListBudgets(ctx context.Context, userID string, filter BudgetFilter, page pagination.PageRequest) ([]models.Budget, int64, error)
	ForEachBudgetPage(ctx context.Context, pageSize int, fn func([]models.Budget) error) error

	ListBudgetCategories(ctx context.Context, budgetID string) ([]models.BudgetCategory, error)
	GetBudgetCategory(ctx context.Context, id string) (*models.BudgetCategory, error)
	CreateBudgetCategory(ctx context.Context, bc *models.BudgetCategory) error
	SaveBudgetCategory(ctx context.Context, bc *models.BudgetCategory) error
	DeleteBudgetCategory(ctx context.Context, id string) error
	FindBudgetCategoriesCovering(ctx context.Context, userID, categoryID string, date time.Time) ([]models.BudgetCategory, error)

	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}
