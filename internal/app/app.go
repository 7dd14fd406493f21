// Package app wires configuration, storage and services into a runnable
// ledger. Both the HTTP server and the operator CLI start from here.
package app

import (
	"fmt"

	"tally/internal/config"
	"tally/internal/consistency"
	"tally/internal/database"
	"tally/internal/handlers"
	"tally/internal/metrics"
	"tally/internal/services"
	"tally/internal/store"
)

// App holds the assembled services over one database.
type App struct {
	Config  *config.Config
	Manager *database.Manager

	Accounts     services.AccountServicer
	Ledger       services.LedgerServicer
	Categories   services.CategoryServicer
	Transactions services.TransactionServicer
	Budgets      services.BudgetServicer
	Reconcile    services.ReconcileServicer
	Audit        services.AuditServicer
}

// New opens the database, applies migrations and builds the services.
func New(cfg *config.Config) (*App, error) {
	manager, err := database.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := manager.RunMigrations(); err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	recorder, err := metrics.NewRecorder(nil)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("failed to create metrics recorder: %w", err)
	}

	a := Build(manager.Store(), recorder, services.Options{VerifyInvariants: cfg.VerifyInvariants})
	a.Config = cfg
	a.Manager = manager
	return a, nil
}

// Build assembles the services over an already opened store.
func Build(st store.Store, recorder *metrics.Recorder, opts services.Options) *App {
	checker := consistency.NewChecker()
	budgets := services.NewBudgetService(st, checker, recorder, opts)

	return &App{
		Accounts:     services.NewAccountService(st),
		Ledger:       services.NewLedgerService(st, budgets, checker, recorder, opts),
		Categories:   services.NewCategoryService(st),
		Transactions: services.NewTransactionService(st),
		Budgets:      budgets,
		Reconcile:    services.NewReconcileService(st, budgets, checker, recorder),
		Audit:        services.NewAuditService(st),
	}
}

// Handlers returns the HTTP handlers over the app's services.
func (a *App) Handlers(reconcileConcurrency int) handlers.Handlers {
	return handlers.Handlers{
		Accounts:     handlers.NewAccountHandler(a.Accounts, a.Audit),
		Ledger:       handlers.NewLedgerHandler(a.Ledger, a.Audit),
		Transactions: handlers.NewTransactionHandler(a.Transactions),
		Categories:   handlers.NewCategoryHandler(a.Categories, a.Audit),
		Budgets:      handlers.NewBudgetHandler(a.Budgets, a.Audit),
		Periods:      handlers.NewPeriodHandler(),
		Operator:     handlers.NewOperatorHandler(a.Reconcile, reconcileConcurrency),
	}
}

// Close releases the database.
func (a *App) Close() error {
	if a.Manager == nil {
		return nil
	}
	return a.Manager.Close()
}
