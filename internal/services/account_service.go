package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/store"
)

// accountService handles account-related business logic. Balances are only
// changed through the ledger.
type accountService struct {
	store store.Store
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(st store.Store) AccountServicer {
	return &accountService{store: st}
}

// CreateAccount creates a new account for a user. A positive initial balance
// is recorded as an income transaction in the same unit of work.
func (s *accountService) CreateAccount(ctx context.Context, userID, name, description string, initialBalance decimal.Decimal) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if err := requireNonNegative(initialBalance, "initial balance"); err != nil {
		return nil, err
	}

	var account *models.Account
	err := s.store.WithinUnitOfWork(ctx, func(repo store.Repository) error {
		account = &models.Account{
			UserID:      userID,
			Name:        name,
			Description: description,
			Balance:     initialBalance,
			Status:      models.AccountStatusActive,
		}
		if err := repo.CreateAccount(ctx, account); err != nil {
			return err
		}

		if initialBalance.IsPositive() {
			tx := &models.Transaction{
				UserID:               userID,
				Type:                 models.TransactionTypeIncome,
				Amount:               initialBalance,
				DestinationAccountID: &account.ID,
				Description:          "Initial balance",
				Date:                 time.Now().UTC(),
			}
			if err := repo.InsertTransaction(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetUserAccounts retrieves a paginated list of open accounts for a user.
func (s *accountService) GetUserAccounts(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	accounts, total, err := s.store.Reader().ListAccounts(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, total)
	return &result, nil
}

// GetAccountByID retrieves an account by ID for a specific user
func (s *accountService) GetAccountByID(ctx context.Context, userID, accountID string) (*models.Account, error) {
	return ownedAccount(ctx, s.store.Reader(), userID, accountID, false)
}

// UpdateAccount renames an account or changes its description.
func (s *accountService) UpdateAccount(ctx context.Context, userID, accountID, name, description string) (*models.Account, error) {
	var account *models.Account
	err := s.store.WithinUnitOfWork(ctx, func(repo store.Repository) error {
		var err error
		account, err = ownedAccount(ctx, repo, userID, accountID, true)
		if err != nil {
			return err
		}
		if err := requireActive(account); err != nil {
			return err
		}
		if name = strings.TrimSpace(name); name != "" {
			account.Name = name
		}
		account.Description = description
		return repo.SaveAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}
