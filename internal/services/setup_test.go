package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"tally/internal/consistency"
	"tally/internal/logger"
	"tally/internal/metrics"
	"tally/internal/models"
	"tally/internal/store"
	"tally/internal/testutil"
)

func init() {
	logger.Init("test")
}

// testEnv wires the engine services against an isolated SQLite database.
type testEnv struct {
	db       *gorm.DB
	store    *store.GormStore
	ledger   LedgerServicer
	budgets  BudgetEngine
	userID   string
	ctx      context.Context
	march    time.Time
	midMarch time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	st := store.NewGormStore(db)
	checker := consistency.NewChecker()
	recorder := metrics.MustRecorder()
	opts := Options{VerifyInvariants: true}

	budgets := NewBudgetService(st, checker, recorder, opts)
	return &testEnv{
		db:       db,
		store:    st,
		ledger:   NewLedgerService(st, budgets, checker, recorder, opts),
		budgets:  budgets,
		userID:   testutil.NewUserID(),
		ctx:      context.Background(),
		march:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		midMarch: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) countTransactions(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&models.Transaction{}).Count(&n).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

func strPtr(s string) *string { return &s }
