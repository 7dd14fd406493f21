package services

import (
	"context"
	"time"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/period"
	"tally/internal/store"
)

// transactionService serves reads over the transaction record.
type transactionService struct {
	store store.Store
}

// NewTransactionService creates a new TransactionServicer.
func NewTransactionService(st store.Store) TransactionServicer {
	return &transactionService{store: st}
}

// GetUserTransactions retrieves a filtered, paginated list of transactions,
// newest first.
func (s *transactionService) GetUserTransactions(ctx context.Context, userID string, filter store.TransactionFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	if filter.FromDate != nil && filter.ToDate != nil && filter.FromDate.After(*filter.ToDate) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_date must not be after to_date")
	}

	txs, total, err := s.store.Reader().ListTransactions(ctx, userID, filter, page)
	if err != nil {
		return nil, err
	}
	result := pagination.NewPageResponse(txs, page.Page, page.PageSize, total)
	return &result, nil
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(ctx context.Context, userID, transactionID string) (*models.Transaction, error) {
	tx, err := s.store.Reader().GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, apperrors.ErrTransactionNotFound
	}
	return tx, nil
}

// SpendingByCategory totals non-reversed expenses per category for the
// calendar days from..to inclusive.
func (s *transactionService) SpendingByCategory(ctx context.Context, userID string, from, to time.Time) ([]store.CategorySpending, error) {
	start, end := period.Truncate(from.UTC()), period.Truncate(to.UTC())
	if start.After(end) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to")
	}
	return s.store.Reader().SpendingByCategory(ctx, userID, start, end.AddDate(0, 0, 1))
}
