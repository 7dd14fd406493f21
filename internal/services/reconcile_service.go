package services

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"tally/internal/consistency"
	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/metrics"
	"tally/internal/models"
	"tally/internal/store"
)

const defaultReconcilePageSize = 100

// reconcileService sweeps stored state for invariant violations.
type reconcileService struct {
	store    store.Store
	budgets  BudgetServicer
	checker  *consistency.Checker
	recorder *metrics.Recorder
}

// NewReconcileService creates a new ReconcileServicer. budgets performs the
// recomputation when a sweep runs with Fix.
func NewReconcileService(st store.Store, budgets BudgetServicer, checker *consistency.Checker, recorder *metrics.Recorder) ReconcileServicer {
	return &reconcileService{store: st, budgets: budgets, checker: checker, recorder: recorder}
}

// report collects violations from concurrent budget checks.
type report struct {
	mu sync.Mutex
	ReconcileReport
}

func (r *report) add(v Violation) {
	r.mu.Lock()
	r.Violations = append(r.Violations, v)
	r.mu.Unlock()
}

// Reconcile checks every account and budget. Budgets within a page are
// checked concurrently, bounded by opts.Concurrency.
func (s *reconcileService) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = defaultReconcilePageSize
	}

	log := logger.Named("reconcile")
	rep := &report{ReconcileReport: ReconcileReport{Violations: []Violation{}}}
	reader := s.store.Reader()

	err := reader.ForEachAccountPage(ctx, opts.PageSize, func(accounts []models.Account) error {
		for _, a := range accounts {
			rep.AccountsChecked++
			if err := s.checker.CheckAccounts(a); err != nil {
				s.record(ctx, rep, a.ID, err, false)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = reader.ForEachBudgetPage(ctx, opts.PageSize, func(budgets []models.Budget) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for i := range budgets {
			budget := budgets[i]
			rep.BudgetsChecked++
			g.Go(func() error {
				return s.checkBudget(gctx, reader, rep, budget, opts.Fix)
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}

	log.Infow("reconciliation finished",
		"accounts_checked", rep.AccountsChecked,
		"budgets_checked", rep.BudgetsChecked,
		"violations", len(rep.Violations),
		"fix", opts.Fix,
	)
	result := rep.ReconcileReport
	return &result, nil
}

func (s *reconcileService) checkBudget(ctx context.Context, reader store.Repository, rep *report, budget models.Budget, fix bool) error {
	if err := s.checker.CheckBudgetAllocation(budget); err != nil {
		s.record(ctx, rep, budget.ID, err, false)
	}

	for _, bc := range budget.BudgetCategories {
		txs, err := transactionsInWindow(ctx, reader, budget, bc.CategoryID)
		if err != nil {
			return err
		}
		violation := s.checker.CheckSpent(budget, bc, txs)
		if violation == nil {
			continue
		}

		fixed := false
		if fix {
			if _, err := s.budgets.RecomputeSpent(ctx, budget.UserID, bc.ID); err != nil {
				if !apperrors.IsNotFound(err) {
					return err
				}
			} else {
				fixed = true
			}
		}
		s.record(ctx, rep, bc.ID, violation, fixed)
	}
	return nil
}

func (s *reconcileService) record(ctx context.Context, rep *report, resourceID string, err error, fixed bool) {
	var violation *apperrors.ConsistencyViolationError
	if !errors.As(err, &violation) {
		return
	}
	logger.Named("reconcile").Errorw("invariant violated in stored state",
		"consistency_violation", true,
		"invariant", violation.Invariant,
		"resource_id", resourceID,
		"detail", violation.Detail,
		"fixed", fixed,
	)
	s.recorder.Violation(ctx, violation.Invariant)
	rep.add(Violation{
		Invariant:  violation.Invariant,
		ResourceID: resourceID,
		Detail:     violation.Detail,
		Fixed:      fixed,
	})
}
