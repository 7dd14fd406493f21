package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/safe"
	"github.com/shopspring/decimal"

	"tally/internal/consistency"
	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/metrics"
	"tally/internal/models"
	"tally/internal/period"
	"tally/internal/store"
)

// engine holds what the ledger and budget services share: the store, the
// checker and the metrics recorder.
type engine struct {
	store    store.Store
	checker  *consistency.Checker
	recorder *metrics.Recorder
	opts     Options
	name     string
}

// run executes fn as one unit of work and records its outcome.
func (e *engine) run(ctx context.Context, operation string, fn func(repo store.Repository) error) error {
	started := time.Now()
	err := e.store.WithinUnitOfWork(ctx, fn)
	e.recorder.Operation(ctx, operation, outcomeOf(err), time.Since(started))

	var violation *apperrors.ConsistencyViolationError
	if errors.As(err, &violation) {
		logger.Named(e.name).Errorw("invariant violated, unit of work rolled back",
			"consistency_violation", true,
			"operation", operation,
			"invariant", violation.Invariant,
			"detail", violation.Detail,
		)
		e.recorder.Violation(ctx, violation.Invariant)
	}
	return err
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

// verifySpent checks each budget category against the transaction record.
func (e *engine) verifySpent(ctx context.Context, repo store.Repository, bcs []models.BudgetCategory) error {
	if !e.opts.VerifyInvariants {
		return nil
	}
	for _, bc := range bcs {
		budget, err := repo.GetBudget(ctx, bc.BudgetID)
		if err != nil {
			return err
		}
		txs, err := transactionsInWindow(ctx, repo, *budget, bc.CategoryID)
		if err != nil {
			return err
		}
		if err := e.checker.CheckSpent(*budget, bc, txs); err != nil {
			return err
		}
	}
	return nil
}

func transactionsInWindow(ctx context.Context, repo store.Repository, budget models.Budget, categoryID string) ([]models.Transaction, error) {
	w := budget.Window()
	return repo.FindTransactions(ctx, categoryID, w.Start, w.ExclusiveEnd())
}

func requirePositive(amount decimal.Decimal, field string) error {
	if !amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, field+" must be greater than zero")
	}
	return requireMoneyScale(amount, field)
}

func requireNonNegative(amount decimal.Decimal, field string) error {
	if amount.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, field+" must not be negative")
	}
	return requireMoneyScale(amount, field)
}

func requireMoneyScale(amount decimal.Decimal, field string) error {
	if !models.FitsMoneyScale(amount) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("%s must have at most %d decimal places", field, models.MoneyScale))
	}
	return nil
}

// normalizeDate defaults a missing date to now and stores everything in UTC.
func normalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// ownedAccount loads an account, optionally locking it, and hides accounts
// that belong to someone else.
func ownedAccount(ctx context.Context, repo store.Repository, userID, accountID string, lock bool) (*models.Account, error) {
	if accountID == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account id is required")
	}
	get := repo.GetAccount
	if lock {
		get = repo.GetAccountForUpdate
	}
	account, err := get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, apperrors.ErrAccountNotFound
	}
	return account, nil
}

func requireActive(account *models.Account) error {
	if !account.IsActive() {
		return &apperrors.InactiveAccountError{AccountID: account.ID, Status: string(account.Status)}
	}
	return nil
}

func ownedCategory(ctx context.Context, repo store.Repository, userID, categoryID string) (*models.Category, error) {
	category, err := repo.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category.UserID != userID {
		return nil, apperrors.ErrCategoryNotFound
	}
	return category, nil
}

// categoryOfType loads the category and requires it to be of want.
func categoryOfType(ctx context.Context, repo store.Repository, userID, categoryID string, want models.CategoryType) (*models.Category, error) {
	category, err := ownedCategory(ctx, repo, userID, categoryID)
	if err != nil {
		return nil, err
	}
	if category.Type != want {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidCategoryType,
			"category "+category.Name+" is "+string(category.Type)+", expected "+string(want))
	}
	return category, nil
}

func ownedBudget(ctx context.Context, repo store.Repository, userID, budgetID string, lock bool) (*models.Budget, error) {
	get := repo.GetBudget
	if lock {
		get = repo.GetBudgetForUpdate
	}
	budget, err := get(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if budget.UserID != userID {
		return nil, apperrors.ErrBudgetNotFound
	}
	return budget, nil
}

// UsagePercentage is spent as a percentage of allocated, rounded to two
// places. Zero allocation yields zero.
func UsagePercentage(allocated, spent decimal.Decimal) decimal.Decimal {
	return safe.PercentageOrZero(spent, allocated).Round(2)
}

func startOf(t time.Time) time.Time {
	return period.Truncate(t.UTC())
}
