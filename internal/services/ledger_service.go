package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/consistency"
	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/metrics"
	"tally/internal/models"
	"tally/internal/store"
)

// ledgerService owns every balance mutation. Each public method is exactly
// one unit of work.
type ledgerService struct {
	engine
	spent SpentRecomputer
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(st store.Store, spent SpentRecomputer, checker *consistency.Checker, recorder *metrics.Recorder, opts Options) LedgerServicer {
	return &ledgerService{
		engine: engine{store: st, checker: checker, recorder: recorder, opts: opts, name: "ledger"},
		spent:  spent,
	}
}

// Deposit adds money to an account and records an income transaction.
func (s *ledgerService) Deposit(ctx context.Context, userID string, in DepositInput) (*LedgerResult, error) {
	if err := requirePositive(in.Amount, "amount"); err != nil {
		return nil, err
	}

	var result *LedgerResult
	err := s.run(ctx, "deposit", func(repo store.Repository) error {
		account, err := ownedAccount(ctx, repo, userID, in.AccountID, true)
		if err != nil {
			return err
		}
		if err := requireActive(account); err != nil {
			return err
		}
		if in.CategoryID != nil {
			if _, err := categoryOfType(ctx, repo, userID, *in.CategoryID, models.CategoryTypeIncome); err != nil {
				return err
			}
		}

		account.Balance = account.Balance.Add(in.Amount)
		if err := repo.SaveAccount(ctx, account); err != nil {
			return err
		}

		tx := &models.Transaction{
			UserID:               userID,
			Type:                 models.TransactionTypeIncome,
			Amount:               in.Amount,
			DestinationAccountID: &account.ID,
			CategoryID:           in.CategoryID,
			Date:                 normalizeDate(in.Date),
			Description:          in.Description,
		}
		if err := repo.InsertTransaction(ctx, tx); err != nil {
			return err
		}

		if err := s.verifyAccounts(*account); err != nil {
			return err
		}
		result = newLedgerResult(tx, *account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Withdraw removes money from an account, records an expense transaction and
// refreshes the spent amount of every budget covering it.
func (s *ledgerService) Withdraw(ctx context.Context, userID string, in WithdrawInput) (*LedgerResult, error) {
	if err := requirePositive(in.Amount, "amount"); err != nil {
		return nil, err
	}

	var result *LedgerResult
	err := s.run(ctx, "withdraw", func(repo store.Repository) error {
		account, err := ownedAccount(ctx, repo, userID, in.AccountID, true)
		if err != nil {
			return err
		}
		if err := requireActive(account); err != nil {
			return err
		}
		if in.CategoryID != nil {
			if _, err := categoryOfType(ctx, repo, userID, *in.CategoryID, models.CategoryTypeExpense); err != nil {
				return err
			}
		}
		if account.Balance.LessThan(in.Amount) {
			return &apperrors.InsufficientBalanceError{AccountID: account.ID, Balance: account.Balance, Requested: in.Amount}
		}

		account.Balance = account.Balance.Sub(in.Amount)
		if err := repo.SaveAccount(ctx, account); err != nil {
			return err
		}

		tx := &models.Transaction{
			UserID:          userID,
			Type:            models.TransactionTypeExpense,
			Amount:          in.Amount,
			SourceAccountID: &account.ID,
			CategoryID:      in.CategoryID,
			Date:            normalizeDate(in.Date),
			Description:     in.Description,
		}
		if err := repo.InsertTransaction(ctx, tx); err != nil {
			return err
		}

		if err := s.refreshSpent(ctx, repo, userID, tx.CategoryID, tx.Date); err != nil {
			return err
		}
		if err := s.verifyAccounts(*account); err != nil {
			return err
		}
		result = newLedgerResult(tx, *account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transfer moves money between two accounts of the same user.
func (s *ledgerService) Transfer(ctx context.Context, userID string, in TransferInput) (*LedgerResult, error) {
	if in.FromAccountID == in.ToAccountID {
		return nil, apperrors.ErrSameAccountTransfer
	}
	if err := requirePositive(in.Amount, "amount"); err != nil {
		return nil, err
	}

	var result *LedgerResult
	err := s.run(ctx, "transfer", func(repo store.Repository) error {
		locked, err := lockAccounts(ctx, repo, userID, in.FromAccountID, in.ToAccountID)
		if err != nil {
			return err
		}
		tx, err := s.transfer(ctx, repo, userID, locked[in.FromAccountID], locked[in.ToAccountID], in.Amount,
			normalizeDate(in.Date), in.Description, nil)
		if err != nil {
			return err
		}
		result = newLedgerResult(tx, *locked[in.FromAccountID], *locked[in.ToAccountID])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// transfer applies a transfer between two already locked accounts and
// verifies it before returning.
func (s *ledgerService) transfer(ctx context.Context, repo store.Repository, userID string, from, to *models.Account,
	amount decimal.Decimal, date time.Time, description string, reverses *string) (*models.Transaction, error) {
	if err := requireActive(from); err != nil {
		return nil, err
	}
	if err := requireActive(to); err != nil {
		return nil, err
	}
	if from.Balance.LessThan(amount) {
		return nil, &apperrors.InsufficientBalanceError{AccountID: from.ID, Balance: from.Balance, Requested: amount}
	}

	before := map[string]models.Account{from.ID: *from, to.ID: *to}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	if err := repo.SaveAccount(ctx, from); err != nil {
		return nil, err
	}
	if err := repo.SaveAccount(ctx, to); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		UserID:               userID,
		Type:                 models.TransactionTypeTransfer,
		Amount:               amount,
		SourceAccountID:      &from.ID,
		DestinationAccountID: &to.ID,
		ReversesID:           reverses,
		Date:                 date,
		Description:          description,
	}
	if err := repo.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}

	if err := s.verifyAccounts(*from, *to); err != nil {
		return nil, err
	}
	if s.opts.VerifyInvariants {
		after := map[string]models.Account{from.ID: *from, to.ID: *to}
		if err := s.checker.CheckTransfer(*tx, before, after); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// AdjustBalance overwrites a balance without recording a transaction.
func (s *ledgerService) AdjustBalance(ctx context.Context, userID, accountID string, newBalance decimal.Decimal) (*LedgerResult, error) {
	if err := requireNonNegative(newBalance, "balance"); err != nil {
		return nil, err
	}

	var result *LedgerResult
	err := s.run(ctx, "adjust_balance", func(repo store.Repository) error {
		account, err := ownedAccount(ctx, repo, userID, accountID, true)
		if err != nil {
			return err
		}
		if err := requireActive(account); err != nil {
			return err
		}

		previous := account.Balance
		account.Balance = newBalance
		if err := repo.SaveAccount(ctx, account); err != nil {
			return err
		}
		if err := s.verifyAccounts(*account); err != nil {
			return err
		}

		logger.Named(s.name).Warnw("account balance overridden",
			"user_id", userID,
			"account_id", account.ID,
			"previous_balance", previous.String(),
			"new_balance", newBalance.String(),
		)
		result = newLedgerResult(nil, *account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteAccount closes an account. A remaining balance is first moved to
// transferToID in the same unit of work.
func (s *ledgerService) DeleteAccount(ctx context.Context, userID, accountID string, transferToID *string) (*LedgerResult, error) {
	if transferToID != nil && *transferToID == accountID {
		return nil, apperrors.ErrSameAccountTransfer
	}

	var result *LedgerResult
	err := s.run(ctx, "delete_account", func(repo store.Repository) error {
		var (
			account *models.Account
			target  *models.Account
		)
		if transferToID != nil {
			locked, err := lockAccounts(ctx, repo, userID, accountID, *transferToID)
			if err != nil {
				return err
			}
			account, target = locked[accountID], locked[*transferToID]
		} else {
			var err error
			if account, err = ownedAccount(ctx, repo, userID, accountID, true); err != nil {
				return err
			}
		}
		if err := requireActive(account); err != nil {
			return err
		}

		var tx *models.Transaction
		if account.Balance.IsPositive() {
			if target == nil {
				return apperrors.ErrBalanceRequiresTarget
			}
			var err error
			tx, err = s.transfer(ctx, repo, userID, account, target, account.Balance, time.Now().UTC(),
				fmt.Sprintf("Closing transfer from %s", account.Name), nil)
			if err != nil {
				return err
			}
		}

		account.Status = models.AccountStatusClosed
		if err := repo.SaveAccount(ctx, account); err != nil {
			return err
		}
		if err := repo.DeleteAccount(ctx, account.ID); err != nil {
			return err
		}

		accounts := []models.Account{*account}
		if tx != nil {
			accounts = append(accounts, *target)
		}
		result = newLedgerResult(tx, accounts...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReverseTransaction records the compensating transaction for transactionID
// and undoes its balance effect.
func (s *ledgerService) ReverseTransaction(ctx context.Context, userID, transactionID, description string) (*LedgerResult, error) {
	var result *LedgerResult
	err := s.run(ctx, "reverse", func(repo store.Repository) error {
		original, err := repo.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if original.UserID != userID {
			return apperrors.ErrTransactionNotFound
		}
		if original.IsReversal() {
			return apperrors.ErrNotReversible
		}
		existing, err := repo.FindReversal(ctx, original.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.ErrAlreadyReversed
		}

		if description == "" {
			description = "Reversal of " + original.ID
		}
		now := time.Now().UTC()

		switch original.Type {
		case models.TransactionTypeTransfer:
			locked, err := lockAccounts(ctx, repo, userID, *original.DestinationAccountID, *original.SourceAccountID)
			if err != nil {
				return err
			}
			from, to := locked[*original.DestinationAccountID], locked[*original.SourceAccountID]
			tx, err := s.transfer(ctx, repo, userID, from, to, original.Amount, now, description, &original.ID)
			if err != nil {
				return err
			}
			result = newLedgerResult(tx, *from, *to)
			return nil

		case models.TransactionTypeIncome:
			account, err := ownedAccount(ctx, repo, userID, *original.DestinationAccountID, true)
			if err != nil {
				return err
			}
			if err := requireActive(account); err != nil {
				return err
			}
			if account.Balance.LessThan(original.Amount) {
				return &apperrors.InsufficientBalanceError{AccountID: account.ID, Balance: account.Balance, Requested: original.Amount}
			}
			account.Balance = account.Balance.Sub(original.Amount)
			tx := &models.Transaction{
				UserID:          userID,
				Type:            models.TransactionTypeExpense,
				Amount:          original.Amount,
				SourceAccountID: &account.ID,
				CategoryID:      original.CategoryID,
				ReversesID:      &original.ID,
				Date:            now,
				Description:     description,
			}
			if err := s.applyReversal(ctx, repo, userID, account, tx, original); err != nil {
				return err
			}
			result = newLedgerResult(tx, *account)
			return nil

		case models.TransactionTypeExpense:
			account, err := ownedAccount(ctx, repo, userID, *original.SourceAccountID, true)
			if err != nil {
				return err
			}
			if err := requireActive(account); err != nil {
				return err
			}
			account.Balance = account.Balance.Add(original.Amount)
			tx := &models.Transaction{
				UserID:               userID,
				Type:                 models.TransactionTypeIncome,
				Amount:               original.Amount,
				DestinationAccountID: &account.ID,
				CategoryID:           original.CategoryID,
				ReversesID:           &original.ID,
				Date:                 now,
				Description:          description,
			}
			if err := s.applyReversal(ctx, repo, userID, account, tx, original); err != nil {
				return err
			}
			result = newLedgerResult(tx, *account)
			return nil
		}
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown transaction type "+string(original.Type))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ledgerService) applyReversal(ctx context.Context, repo store.Repository, userID string,
	account *models.Account, tx, original *models.Transaction) error {
	if err := repo.SaveAccount(ctx, account); err != nil {
		return err
	}
	if err := repo.InsertTransaction(ctx, tx); err != nil {
		return err
	}
	if original.Type == models.TransactionTypeExpense {
		if err := s.refreshSpent(ctx, repo, userID, original.CategoryID, original.Date); err != nil {
			return err
		}
	}
	return s.verifyAccounts(*account)
}

// refreshSpent recomputes the budget categories whose window covers date.
func (s *ledgerService) refreshSpent(ctx context.Context, repo store.Repository, userID string, categoryID *string, date time.Time) error {
	if categoryID == nil || s.spent == nil {
		return nil
	}
	bcs, err := s.spent.RecomputeCovering(ctx, repo, userID, *categoryID, date)
	if err != nil {
		return err
	}
	return s.verifySpent(ctx, repo, bcs)
}

func (s *ledgerService) verifyAccounts(accounts ...models.Account) error {
	if !s.opts.VerifyInvariants {
		return nil
	}
	return s.checker.CheckAccounts(accounts...)
}

// lockAccounts locks the given accounts in ascending id order so that two
// transfers over the same pair can never deadlock.
func lockAccounts(ctx context.Context, repo store.Repository, userID string, ids ...string) (map[string]*models.Account, error) {
	ordered := append([]string(nil), ids...)
	sort.Strings(ordered)

	locked := make(map[string]*models.Account, len(ordered))
	for _, id := range ordered {
		account, err := ownedAccount(ctx, repo, userID, id, true)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	return locked, nil
}

func newLedgerResult(tx *models.Transaction, accounts ...models.Account) *LedgerResult {
	result := &LedgerResult{Accounts: accounts}
	if tx != nil {
		snapshot := *tx
		result.Transaction = &snapshot
	}
	return result
}
