package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/store"
	"tally/internal/testutil"
)

func init() {
	logger.Init("test")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped serialization failure", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithinUnitOfWork(t *testing.T) {
	ctx := context.Background()

	t.Run("rolls back every write on error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		st := store.NewGormStore(db)
		userID := testutil.NewUserID()

		err := st.WithinUnitOfWork(ctx, func(repo store.Repository) error {
			if err := repo.CreateAccount(ctx, &models.Account{UserID: userID, Name: "A", Balance: testutil.Dec("5"), Status: models.AccountStatusActive}); err != nil {
				return err
			}
			return errors.New("abort")
		})
		if err == nil {
			t.Fatal("expected the unit of work to fail")
		}

		var n int64
		db.Model(&models.Account{}).Where("user_id = ?", userID).Count(&n)
		if n != 0 {
			t.Errorf("expected no accounts after rollback, got %d", n)
		}
	})

	t.Run("retries serialization failures", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		st := store.NewGormStore(db, store.WithMaxAttempts(3), store.WithRetryDelay(time.Millisecond))

		attempts := 0
		err := st.WithinUnitOfWork(ctx, func(repo store.Repository) error {
			attempts++
			if attempts < 3 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		testutil.AssertNoError(t, err)
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		st := store.NewGormStore(db, store.WithMaxAttempts(2), store.WithRetryDelay(time.Millisecond))

		attempts := 0
		err := st.WithinUnitOfWork(ctx, func(repo store.Repository) error {
			attempts++
			return &pgconn.PgError{Code: "40P01"}
		})
		if !store.IsRetryable(err) {
			t.Errorf("expected the last conflict to surface, got %v", err)
		}
		if attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", attempts)
		}
	})

	t.Run("stops retrying when the context is cancelled", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		st := store.NewGormStore(db, store.WithMaxAttempts(3), store.WithRetryDelay(time.Hour))

		cancelled, cancel := context.WithCancel(ctx)
		attempts := 0
		err := st.WithinUnitOfWork(cancelled, func(repo store.Repository) error {
			attempts++
			cancel()
			return &pgconn.PgError{Code: "40001"}
		})
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled in the chain, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
	})

	t.Run("does not retry business errors", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		st := store.NewGormStore(db, store.WithMaxAttempts(5))

		attempts := 0
		_ = st.WithinUnitOfWork(ctx, func(repo store.Repository) error {
			attempts++
			_, err := repo.GetAccount(ctx, "missing")
			return err
		})
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
	})
}

func TestRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := store.NewGormStore(testutil.SetupTestDB(t)).Reader()

	_, err := repo.GetAccount(ctx, "missing")
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")

	_, err = repo.GetBudget(ctx, "missing")
	testutil.AssertAppError(t, err, "BUDGET_NOT_FOUND")

	_, err = repo.GetTransaction(ctx, "missing")
	testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
}

func TestFindTransactionsIncludesLateReversals(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	repo := store.NewGormStore(db).Reader()

	userID := testutil.NewUserID()
	account := testutil.CreateTestAccountWithBalance(t, db, userID, "100")
	category := testutil.CreateTestCategory(t, db, userID, models.CategoryTypeExpense)

	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	april := march.AddDate(0, 1, 0)
	inside := testutil.CreateTestExpense(t, db, userID, account.ID, category.ID, "30", march.AddDate(0, 0, 9))
	testutil.CreateTestExpense(t, db, userID, account.ID, category.ID, "12", april.AddDate(0, 0, 2))

	reversal := &models.Transaction{
		UserID:               userID,
		Type:                 models.TransactionTypeIncome,
		Amount:               testutil.Dec("30"),
		DestinationAccountID: &account.ID,
		CategoryID:           &category.ID,
		ReversesID:           &inside.ID,
		Date:                 april.AddDate(0, 1, 0),
	}
	if err := db.Create(reversal).Error; err != nil {
		t.Fatalf("create reversal: %v", err)
	}

	txs, err := repo.FindTransactions(ctx, category.ID, march, april)
	testutil.AssertNoError(t, err)
	if len(txs) != 2 {
		t.Fatalf("expected the March expense and its reversal, got %d rows", len(txs))
	}
	if txs[0].ID != inside.ID || txs[1].ID != reversal.ID {
		t.Errorf("unexpected rows: %s, %s", txs[0].ID, txs[1].ID)
	}
}
