package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/period"
)

// GormStore implements Store on top of gorm. It works against PostgreSQL in
// production and SQLite in tests.
type GormStore struct {
	db          *gorm.DB
	txOptions   *sql.TxOptions
	maxAttempts int
	retryDelay  time.Duration
}

// Option configures a GormStore.
type Option func(*GormStore)

// WithIsolation sets the isolation level of every unit of work.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(s *GormStore) {
		s.txOptions = &sql.TxOptions{Isolation: level}
	}
}

// WithMaxAttempts bounds how often a unit of work is retried after a
// serialization failure.
func WithMaxAttempts(n int) Option {
	return func(s *GormStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the base pause between attempts. Each retry waits a
// random duration below base * 2^(attempt-1).
func WithRetryDelay(d time.Duration) Option {
	return func(s *GormStore) {
		s.retryDelay = d
	}
}

// NewGormStore creates a new Store backed by db.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	s := &GormStore{db: db, maxAttempts: 1, retryDelay: 10 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithinUnitOfWork implements Store.
func (s *GormStore) WithinUnitOfWork(ctx context.Context, fn func(repo Repository) error) error {
	var opts []*sql.TxOptions
	if s.txOptions != nil {
		opts = append(opts, s.txOptions)
	}

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormRepository{db: tx})
		}, opts...)
		if err == nil || !IsRetryable(err) || attempt == s.maxAttempts {
			return err
		}

		logger.Named("store").Warnw("unit of work conflict, retrying",
			"attempt", attempt,
			"error", err,
		)
		if err := backoff.WaitContext(ctx, backoff.ExponentialWithJitter(s.retryDelay, attempt-1)); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return err
}

// Reader implements Store.
func (s *GormStore) Reader() Repository {
	return &gormRepository{db: s.db}
}

// gormRepository is bound to either the root connection or an open transaction.
type gormRepository struct {
	db *gorm.DB
}

func (r *gormRepository) q(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// first loads one row into dest, mapping "no rows" onto notFound.
func first(q *gorm.DB, dest any, notFound *apperrors.AppError) error {
	if err := q.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func internal(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

// --- accounts ---

func (r *gormRepository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := first(r.q(ctx).Where("id = ?", id), &account, apperrors.ErrAccountNotFound); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetAccountForUpdate(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	q := r.q(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	if err := first(q, &account, apperrors.ErrAccountNotFound); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	return internal(r.q(ctx).Create(account).Error)
}

func (r *gormRepository) SaveAccount(ctx context.Context, account *models.Account) error {
	return internal(r.q(ctx).Model(account).Select("name", "description", "balance", "status", "updated_at").Updates(account).Error)
}

func (r *gormRepository) DeleteAccount(ctx context.Context, id string) error {
	return internal(r.q(ctx).Where("id = ?", id).Delete(&models.Account{}).Error)
}

func (r *gormRepository) ListAccounts(ctx context.Context, userID string, page pagination.PageRequest) ([]models.Account, int64, error) {
	page.Defaults()

	base := r.q(ctx).Model(&models.Account{}).Where("user_id = ?", userID)
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, internal(err)
	}

	var accounts []models.Account
	if err := base.Order("created_at ASC, id ASC").Scopes(pagination.Paginate(page)).Find(&accounts).Error; err != nil {
		return nil, 0, internal(err)
	}
	return accounts, total, nil
}

func (r *gormRepository) ForEachAccountPage(ctx context.Context, pageSize int, fn func([]models.Account) error) error {
	var batch []models.Account
	res := r.q(ctx).FindInBatches(&batch, pageSize, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	return batchError(res.Error)
}

// batchError passes AppErrors raised by a batch callback through untouched.
func batchError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return internal(err)
}

// --- transactions ---

func (r *gormRepository) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	return internal(r.q(ctx).Create(tx).Error)
}

func (r *gormRepository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := first(r.q(ctx).Where("id = ?", id), &tx, apperrors.ErrTransactionNotFound); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *gormRepository) FindReversal(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var txs []models.Transaction
	if err := r.q(ctx).Where("reverses_id = ?", transactionID).Limit(1).Find(&txs).Error; err != nil {
		return nil, internal(err)
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// FindTransactions returns every transaction in categoryID dated within
// [from, toExclusive), plus any reversal pointing at one of them so callers
// can tell which of the originals no longer count.
func (r *gormRepository) FindTransactions(ctx context.Context, categoryID string, from, toExclusive time.Time) ([]models.Transaction, error) {
	inWindow := r.q(ctx).Model(&models.Transaction{}).Select("id").
		Where("category_id = ? AND date >= ? AND date < ?", categoryID, from, toExclusive)

	var txs []models.Transaction
	err := r.q(ctx).
		Where("category_id = ? AND date >= ? AND date < ?", categoryID, from, toExclusive).
		Or("reverses_id IN (?)", inWindow).
		Order("date ASC, id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, internal(err)
	}
	return txs, nil
}

func (r *gormRepository) ListTransactions(ctx context.Context, userID string, filter TransactionFilter, page pagination.PageRequest) ([]models.Transaction, int64, error) {
	page.Defaults()

	base := applyTransactionFilters(r.q(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID), filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, internal(err)
	}

	var txs []models.Transaction
	if err := base.Order("date DESC, id DESC").Scopes(pagination.Paginate(page)).Find(&txs).Error; err != nil {
		return nil, 0, internal(err)
	}
	return txs, total, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.AccountID != nil {
		q = q.Where("(source_account_id = ? OR destination_account_id = ?)", *f.AccountID, *f.AccountID)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	return q
}

func (r *gormRepository) SpendingByCategory(ctx context.Context, userID string, from, toExclusive time.Time) ([]CategorySpending, error) {
	reversed := r.q(ctx).Model(&models.Transaction{}).Select("reverses_id").Where("reverses_id IS NOT NULL")

	var rows []CategorySpending
	err := r.q(ctx).Model(&models.Transaction{}).
		Select("category_id, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("user_id = ? AND type = ? AND category_id IS NOT NULL AND reverses_id IS NULL", userID, models.TransactionTypeExpense).
		Where("date >= ? AND date < ?", from, toExclusive).
		Where("id NOT IN (?)", reversed).
		Group("category_id").
		Order("category_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, internal(err)
	}
	return rows, nil
}

// --- categories ---

func (r *gormRepository) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := first(r.q(ctx).Where("id = ?", id), &category, apperrors.ErrCategoryNotFound); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *gormRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	return internal(r.q(ctx).Create(category).Error)
}

func (r *gormRepository) SaveCategory(ctx context.Context, category *models.Category) error {
	return internal(r.q(ctx).Model(category).Select("name", "updated_at").Updates(category).Error)
}

func (r *gormRepository) DeleteCategory(ctx context.Context, id string) error {
	return internal(r.q(ctx).Where("id = ?", id).Delete(&models.Category{}).Error)
}

func (r *gormRepository) CategoryInUse(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.q(ctx).Model(&models.Transaction{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
		return false, internal(err)
	}
	if n > 0 {
		return true, nil
	}
	if err := r.q(ctx).Model(&models.BudgetCategory{}).Where("category_id = ?", id).Count(&n).Error; err != nil {
		return false, internal(err)
	}
	return n > 0, nil
}

func (r *gormRepository) CategoryNameTaken(ctx context.Context, userID, name, excludeID string) (bool, error) {
	var n int64
	q := r.q(ctx).Model(&models.Category{}).Where("user_id = ? AND name = ?", userID, name)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, internal(err)
	}
	return n > 0, nil
}

func (r *gormRepository) ListCategories(ctx context.Context, userID string, categoryType *models.CategoryType, page pagination.PageRequest) ([]models.Category, int64, error) {
	page.Defaults()

	base := r.q(ctx).Model(&models.Category{}).Where("user_id = ?", userID)
	if categoryType != nil {
		base = base.Where("type = ?", *categoryType)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, internal(err)
	}

	var categories []models.Category
	if err := base.Order("name ASC, id ASC").Scopes(pagination.Paginate(page)).Find(&categories).Error; err != nil {
		return nil, 0, internal(err)
	}
	return categories, total, nil
}

// --- budgets ---

func (r *gormRepository) GetBudget(ctx context.Context, id string) (*models.Budget, error) {
	var budget models.Budget
	q := r.q(ctx).Preload("BudgetCategories", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	}).Where("id = ?", id)
	if err := first(q, &budget, apperrors.ErrBudgetNotFound); err != nil {
		return nil, err
	}
	return &budget, nil
}

// GetBudgetForUpdate locks the budget row; allocation changes to the same
// budget serialize on it.
func (r *gormRepository) GetBudgetForUpdate(ctx context.Context, id string) (*models.Budget, error) {
	var budget models.Budget
	q := r.q(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
	if err := first(q, &budget, apperrors.ErrBudgetNotFound); err != nil {
		return nil, err
	}
	cats, err := r.ListBudgetCategories(ctx, id)
	if err != nil {
		return nil, err
	}
	budget.BudgetCategories = cats
	return &budget, nil
}

func (r *gormRepository) CreateBudget(ctx context.Context, budget *models.Budget) error {
	return internal(r.q(ctx).Omit("BudgetCategories").Create(budget).Error)
}

func (r *gormRepository) SaveBudget(ctx context.Context, budget *models.Budget) error {
	return internal(r.q(ctx).Model(budget).Omit("BudgetCategories").
		Select("name", "period_type", "start_date", "end_date", "total_amount", "updated_at").
		Updates(budget).Error)
}

// DeleteBudget removes the children explicitly; SQLite only honours the
// cascade constraint when foreign keys are enabled.
func (r *gormRepository) DeleteBudget(ctx context.Context, id string) error {
	if err := r.q(ctx).Where("budget_id = ?", id).Delete(&models.BudgetCategory{}).Error; err != nil {
		return internal(err)
	}
	return internal(r.q(ctx).Where("id = ?", id).Delete(&models.Budget{}).Error)
}

func (r *gormRepository) ListBudgets(ctx context.Context, userID string, filter BudgetFilter, page pagination.PageRequest) ([]models.Budget, int64, error) {
	page.Defaults()

	base := r.q(ctx).Model(&models.Budget{}).Where("user_id = ?", userID)
	if filter.PeriodType != nil {
		base = base.Where("period_type = ?", *filter.PeriodType)
	}
	if filter.ActiveOn != nil {
		d := period.Truncate(*filter.ActiveOn)
		base = base.Where("start_date <= ? AND end_date >= ?", d, d)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, internal(err)
	}

	var budgets []models.Budget
	if err := base.Preload("BudgetCategories").Order("start_date DESC, id ASC").
		Scopes(pagination.Paginate(page)).Find(&budgets).Error; err != nil {
		return nil, 0, internal(err)
	}
	return budgets, total, nil
}

func (r *gormRepository) ForEachBudgetPage(ctx context.Context, pageSize int, fn func([]models.Budget) error) error {
	var batch []models.Budget
	res := r.q(ctx).Preload("BudgetCategories").FindInBatches(&batch, pageSize, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	return batchError(res.Error)
}

// --- budget categories ---

func (r *gormRepository) ListBudgetCategories(ctx context.Context, budgetID string) ([]models.BudgetCategory, error) {
	var cats []models.BudgetCategory
	if err := r.q(ctx).Where("budget_id = ?", budgetID).Order("created_at ASC, id ASC").Find(&cats).Error; err != nil {
		return nil, internal(err)
	}
	return cats, nil
}

func (r *gormRepository) GetBudgetCategory(ctx context.Context, id string) (*models.BudgetCategory, error) {
	var bc models.BudgetCategory
	if err := first(r.q(ctx).Where("id = ?", id), &bc, apperrors.ErrBudgetCategoryNotFound); err != nil {
		return nil, err
	}
	return &bc, nil
}

func (r *gormRepository) CreateBudgetCategory(ctx context.Context, bc *models.BudgetCategory) error {
	return internal(r.q(ctx).Create(bc).Error)
}

func (r *gormRepository) SaveBudgetCategory(ctx context.Context, bc *models.BudgetCategory) error {
	return internal(r.q(ctx).Model(bc).
		Select("category_id", "allocated_amount", "spent_amount", "updated_at").
		Updates(bc).Error)
}

func (r *gormRepository) DeleteBudgetCategory(ctx context.Context, id string) error {
	return internal(r.q(ctx).Where("id = ?", id).Delete(&models.BudgetCategory{}).Error)
}

func (r *gormRepository) FindBudgetCategoriesCovering(ctx context.Context, userID, categoryID string, date time.Time) ([]models.BudgetCategory, error) {
	d := period.Truncate(date)

	var cats []models.BudgetCategory
	err := r.q(ctx).Model(&models.BudgetCategory{}).
		Joins("JOIN budgets ON budgets.id = budget_categories.budget_id").
		Where("budget_categories.category_id = ? AND budgets.user_id = ?", categoryID, userID).
		Where("budgets.start_date <= ? AND budgets.end_date >= ?", d, d).
		Order("budget_categories.id ASC").
		Find(&cats).Error
	if err != nil {
		return nil, internal(err)
	}
	return cats, nil
}

// --- audit ---

func (r *gormRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return internal(r.q(ctx).Create(entry).Error)
}
