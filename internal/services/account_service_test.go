package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/testutil"
)

func TestCreateAccount(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAccountService(env.store)

		account, err := svc.CreateAccount(env.ctx, env.userID, "Savings", "My savings", decimal.Zero)
		testutil.AssertNoError(t, err)

		if account.ID == "" {
			t.Fatal("expected account ID")
		}
		if account.Name != "Savings" {
			t.Errorf("expected name Savings, got %s", account.Name)
		}
		if account.Status != models.AccountStatusActive {
			t.Errorf("expected active account, got %s", account.Status)
		}
		if n := env.countTransactions(t); n != 0 {
			t.Errorf("expected no transactions, got %d", n)
		}
	})

	t.Run("with_initial_balance", func(t *testing.T) {
		env := newTestEnv(t)
		svc := NewAccountService(env.store)

		account, err := svc.CreateAccount(env.ctx, env.userID, "Checking", "", testutil.Dec("50"))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, account.Balance, "50", "balance")

		var tx models.Transaction
		if err := env.db.Where("destination_account_id = ?", account.ID).First(&tx).Error; err != nil {
			t.Fatalf("expected initial balance transaction: %v", err)
		}
		if tx.Type != models.TransactionTypeIncome {
			t.Errorf("expected income, got %s", tx.Type)
		}
		testutil.AssertDecimal(t, tx.Amount, "50", "initial amount")
	})

	t.Run("empty_name", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := NewAccountService(env.store).CreateAccount(env.ctx, env.userID, "  ", "", decimal.Zero)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("negative_initial_balance", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := NewAccountService(env.store).CreateAccount(env.ctx, env.userID, "x", "", testutil.Dec("-1"))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetUserAccounts(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAccountService(env.store)
	for i := 0; i < 3; i++ {
		testutil.CreateTestAccount(t, env.db, env.userID)
	}
	testutil.CreateTestAccount(t, env.db, testutil.NewUserID())

	closed := testutil.CreateTestAccount(t, env.db, env.userID)
	_, err := env.ledger.DeleteAccount(env.ctx, env.userID, closed.ID, nil)
	testutil.AssertNoError(t, err)

	page, err := svc.GetUserAccounts(env.ctx, env.userID, pagination.PageRequest{Page: 1, PageSize: 2})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 3 {
		t.Errorf("expected 3 open accounts, got %d", page.TotalItems)
	}
	if len(page.Data) != 2 || page.TotalPages != 2 {
		t.Errorf("expected 2 items over 2 pages, got %d items, %d pages", len(page.Data), page.TotalPages)
	}
}

func TestGetAccountByID(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAccountService(env.store)
	account := testutil.CreateTestAccount(t, env.db, env.userID)

	got, err := svc.GetAccountByID(env.ctx, env.userID, account.ID)
	testutil.AssertNoError(t, err)
	if got.ID != account.ID {
		t.Errorf("expected %s, got %s", account.ID, got.ID)
	}

	_, err = svc.GetAccountByID(env.ctx, testutil.NewUserID(), account.ID)
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}

func TestUpdateAccount(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAccountService(env.store)
	account := testutil.CreateTestAccountWithBalance(t, env.db, env.userID, "12")

	updated, err := svc.UpdateAccount(env.ctx, env.userID, account.ID, "Renamed", "new description")
	testutil.AssertNoError(t, err)
	if updated.Name != "Renamed" || updated.Description != "new description" {
		t.Errorf("unexpected account %+v", updated)
	}
	testutil.AssertDecimal(t, testutil.ReloadAccount(t, env.db, account.ID).Balance, "12", "balance")
}
