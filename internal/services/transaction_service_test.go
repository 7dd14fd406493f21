package services

import (
	"testing"
	"time"

	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/store"
	"tally/internal/testutil"
)

func TestGetUserTransactions(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTransactionService(env.store)
	a := testutil.CreateTestAccountWithBalance(t, env.db, env.userID, "100")
	b := testutil.CreateTestAccount(t, env.db, env.userID)
	food := testutil.CreateTestCategory(t, env.db, env.userID, models.CategoryTypeExpense)

	_, err := env.ledger.Withdraw(env.ctx, env.userID, WithdrawInput{AccountID: a.ID, Amount: testutil.Dec("10"), CategoryID: &food.ID, Date: env.march})
	testutil.AssertNoError(t, err)
	_, err = env.ledger.Transfer(env.ctx, env.userID, TransferInput{FromAccountID: a.ID, ToAccountID: b.ID, Amount: testutil.Dec("20"), Date: env.midMarch})
	testutil.AssertNoError(t, err)
	_, err = env.ledger.Deposit(env.ctx, env.userID, DepositInput{AccountID: b.ID, Amount: testutil.Dec("5"), Date: env.midMarch.AddDate(0, 0, 1)})
	testutil.AssertNoError(t, err)

	all, err := svc.GetUserTransactions(env.ctx, env.userID, store.TransactionFilter{}, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if all.TotalItems != 3 {
		t.Fatalf("expected 3 transactions, got %d", all.TotalItems)
	}
	if all.Data[0].Type != models.TransactionTypeIncome {
		t.Errorf("expected newest first, got %s", all.Data[0].Type)
	}

	t.Run("by_account", func(t *testing.T) {
		page, err := svc.GetUserTransactions(env.ctx, env.userID, store.TransactionFilter{AccountID: &b.ID}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 2 {
			t.Errorf("expected 2 transactions touching b, got %d", page.TotalItems)
		}
	})

	t.Run("by_type", func(t *testing.T) {
		expense := models.TransactionTypeExpense
		page, err := svc.GetUserTransactions(env.ctx, env.userID, store.TransactionFilter{Type: &expense}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 1 {
			t.Errorf("expected 1 expense, got %d", page.TotalItems)
		}
	})

	t.Run("inverted_range", func(t *testing.T) {
		from, to := env.midMarch, env.march
		_, err := svc.GetUserTransactions(env.ctx, env.userID, store.TransactionFilter{FromDate: &from, ToDate: &to}, pagination.PageRequest{})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("by_id", func(t *testing.T) {
		got, err := svc.GetTransactionByID(env.ctx, env.userID, all.Data[0].ID)
		testutil.AssertNoError(t, err)
		if got.ID != all.Data[0].ID {
			t.Errorf("expected %s, got %s", all.Data[0].ID, got.ID)
		}

		_, err = svc.GetTransactionByID(env.ctx, testutil.NewUserID(), all.Data[0].ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})
}

func TestSpendingByCategory(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTransactionService(env.store)
	account := testutil.CreateTestAccountWithBalance(t, env.db, env.userID, "1000")
	food := testutil.CreateTestCategory(t, env.db, env.userID, models.CategoryTypeExpense)
	rent := testutil.CreateTestCategory(t, env.db, env.userID, models.CategoryTypeExpense)

	withdraw := func(category *models.Category, amount string, date time.Time) string {
		t.Helper()
		result, err := env.ledger.Withdraw(env.ctx, env.userID, WithdrawInput{AccountID: account.ID, Amount: testutil.Dec(amount), CategoryID: &category.ID, Date: date})
		testutil.AssertNoError(t, err)
		return result.Transaction.ID
	}
	withdraw(food, "10", env.march)
	withdraw(food, "15", env.midMarch)
	reversed := withdraw(food, "99", env.midMarch)
	withdraw(rent, "500", time.Date(2025, 3, 31, 20, 0, 0, 0, time.UTC))
	withdraw(rent, "1", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))

	_, err := env.ledger.ReverseTransaction(env.ctx, env.userID, reversed, "")
	testutil.AssertNoError(t, err)

	rows, err := svc.SpendingByCategory(env.ctx, env.userID, env.march, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	testutil.AssertNoError(t, err)

	totals := map[string]string{}
	for _, row := range rows {
		totals[row.CategoryID] = row.Total.String()
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 categories, got %v", totals)
	}
	for _, row := range rows {
		switch row.CategoryID {
		case food.ID:
			testutil.AssertDecimal(t, row.Total, "25", "food total")
			if row.Count != 2 {
				t.Errorf("expected 2 food expenses, got %d", row.Count)
			}
		case rent.ID:
			testutil.AssertDecimal(t, row.Total, "500", "rent total")
		}
	}
}
