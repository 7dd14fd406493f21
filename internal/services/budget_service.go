package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/consistency"
	apperrors "tally/internal/errors"
	"tally/internal/metrics"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/period"
	"tally/internal/store"
)

// BudgetEngine is the budget service as seen by its owner: the public
// operations plus the in-transaction recomputation the ledger calls.
type BudgetEngine interface {
	BudgetServicer
	SpentRecomputer
}

// budgetService handles budget-related business logic.
type budgetService struct {
	engine
}

// NewBudgetService creates a new BudgetEngine.
func NewBudgetService(st store.Store, checker *consistency.Checker, recorder *metrics.Recorder, opts Options) BudgetEngine {
	return &budgetService{
		engine: engine{store: st, checker: checker, recorder: recorder, opts: opts, name: "budget"},
	}
}

// CreateBudget creates a budget; the end date is derived from the period.
func (s *budgetService) CreateBudget(ctx context.Context, userID string, in CreateBudgetInput) (*models.Budget, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name is required")
	}
	if !in.PeriodType.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid period type")
	}
	if err := requirePositive(in.TotalAmount, "total amount"); err != nil {
		return nil, err
	}

	start := startOf(normalizeDate(in.StartDate))
	budget := &models.Budget{
		UserID:      userID,
		Name:        name,
		PeriodType:  in.PeriodType,
		StartDate:   start,
		EndDate:     period.EndDate(start, in.PeriodType),
		TotalAmount: in.TotalAmount,
	}

	err := s.run(ctx, "create_budget", func(repo store.Repository) error {
		return repo.CreateBudget(ctx, budget)
	})
	if err != nil {
		return nil, err
	}
	return budget, nil
}

// GetUserBudgets retrieves a paginated list of budgets for a user.
func (s *budgetService) GetUserBudgets(ctx context.Context, userID string, filter store.BudgetFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Budget], error) {
	page.Defaults()

	budgets, total, err := s.store.Reader().ListBudgets(ctx, userID, filter, page)
	if err != nil {
		return nil, err
	}
	resp := pagination.NewPageResponse(budgets, page.Page, page.PageSize, total)
	return &resp, nil
}

// GetBudgetByID retrieves a budget with its categories.
func (s *budgetService) GetBudgetByID(ctx context.Context, userID, budgetID string) (*models.Budget, error) {
	return ownedBudget(ctx, s.store.Reader(), userID, budgetID, false)
}

// UpdateBudget changes a budget. A new period or start re-derives the window
// and recomputes every category's spent amount.
func (s *budgetService) UpdateBudget(ctx context.Context, userID, budgetID string, in UpdateBudgetInput) (*models.Budget, error) {
	var result *models.Budget
	err := s.run(ctx, "update_budget", func(repo store.Repository) error {
		budget, err := ownedBudget(ctx, repo, userID, budgetID, true)
		if err != nil {
			return err
		}

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "budget name is required")
			}
			budget.Name = name
		}

		if in.TotalAmount != nil {
			if err := requirePositive(*in.TotalAmount, "total amount"); err != nil {
				return err
			}
			if allocated := budget.Allocated(); allocated.GreaterThan(*in.TotalAmount) {
				return &apperrors.OverAllocationError{BudgetID: budget.ID, Requested: allocated, MaxAllowed: *in.TotalAmount}
			}
			budget.TotalAmount = *in.TotalAmount
		}

		windowChanged := false
		if in.PeriodType != nil {
			if !in.PeriodType.Valid() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid period type")
			}
			windowChanged = windowChanged || *in.PeriodType != budget.PeriodType
			budget.PeriodType = *in.PeriodType
		}
		if in.StartDate != nil {
			start := startOf(*in.StartDate)
			windowChanged = windowChanged || !start.Equal(budget.StartDate)
			budget.StartDate = start
		}
		budget.EndDate = period.EndDate(budget.StartDate, budget.PeriodType)

		if err := repo.SaveBudget(ctx, budget); err != nil {
			return err
		}
		if windowChanged {
			if err := s.recomputeAll(ctx, repo, budget); err != nil {
				return err
			}
		}
		if err := s.verifyAllocation(*budget); err != nil {
			return err
		}

		result, err = repo.GetBudget(ctx, budget.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteBudget deletes a budget and its categories.
func (s *budgetService) DeleteBudget(ctx context.Context, userID, budgetID string) error {
	return s.run(ctx, "delete_budget", func(repo store.Repository) error {
		if _, err := ownedBudget(ctx, repo, userID, budgetID, true); err != nil {
			return err
		}
		return repo.DeleteBudget(ctx, budgetID)
	})
}

// AddBudgetCategory allocates part of a budget to an expense category and
// computes its spent amount from the existing transactions.
func (s *budgetService) AddBudgetCategory(ctx context.Context, userID, budgetID, categoryID string, allocated decimal.Decimal) (*models.BudgetCategory, error) {
	if err := requireNonNegative(allocated, "allocated amount"); err != nil {
		return nil, err
	}

	var result *models.BudgetCategory
	err := s.run(ctx, "add_budget_category", func(repo store.Repository) error {
		budget, err := ownedBudget(ctx, repo, userID, budgetID, true)
		if err != nil {
			return err
		}
		if _, err := categoryOfType(ctx, repo, userID, categoryID, models.CategoryTypeExpense); err != nil {
			return err
		}
		for _, existing := range budget.BudgetCategories {
			if existing.CategoryID == categoryID {
				return apperrors.ErrDuplicateBudgetCategory
			}
		}

		capacity := budget.TotalAmount.Sub(budget.Allocated())
		if allocated.GreaterThan(capacity) {
			return &apperrors.OverAllocationError{BudgetID: budget.ID, Requested: allocated, MaxAllowed: capacity}
		}

		bc := &models.BudgetCategory{
			BudgetID:        budget.ID,
			CategoryID:      categoryID,
			AllocatedAmount: allocated,
		}
		if err := repo.CreateBudgetCategory(ctx, bc); err != nil {
			return err
		}
		if err := s.recompute(ctx, repo, *budget, bc); err != nil {
			return err
		}

		budget.BudgetCategories = append(budget.BudgetCategories, *bc)
		if err := s.verifyAllocation(*budget); err != nil {
			return err
		}
		if err := s.verifySpent(ctx, repo, []models.BudgetCategory{*bc}); err != nil {
			return err
		}
		result = bc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateBudgetCategoryAllocation changes one allocation, bounded by what the
// other allocations leave of the budget total.
func (s *budgetService) UpdateBudgetCategoryAllocation(ctx context.Context, userID, budgetCategoryID string, allocated decimal.Decimal) (*models.BudgetCategory, error) {
	if err := requireNonNegative(allocated, "allocated amount"); err != nil {
		return nil, err
	}

	var result *models.BudgetCategory
	err := s.run(ctx, "update_budget_category", func(repo store.Repository) error {
		budget, bc, err := s.ownedBudgetCategory(ctx, repo, userID, budgetCategoryID)
		if err != nil {
			return err
		}

		others := budget.Allocated().Sub(bc.AllocatedAmount)
		capacity := budget.TotalAmount.Sub(others)
		if allocated.GreaterThan(capacity) {
			return &apperrors.OverAllocationError{BudgetID: budget.ID, Requested: allocated, MaxAllowed: capacity}
		}

		bc.AllocatedAmount = allocated
		if err := repo.SaveBudgetCategory(ctx, bc); err != nil {
			return err
		}

		replaceCategory(budget, *bc)
		if err := s.verifyAllocation(*budget); err != nil {
			return err
		}
		result = bc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReassignBudgetCategory points an allocation at a different expense category.
func (s *budgetService) ReassignBudgetCategory(ctx context.Context, userID, budgetCategoryID, categoryID string) (*models.BudgetCategory, error) {
	var result *models.BudgetCategory
	err := s.run(ctx, "reassign_budget_category", func(repo store.Repository) error {
		budget, bc, err := s.ownedBudgetCategory(ctx, repo, userID, budgetCategoryID)
		if err != nil {
			return err
		}
		if _, err := categoryOfType(ctx, repo, userID, categoryID, models.CategoryTypeExpense); err != nil {
			return err
		}
		for _, other := range budget.BudgetCategories {
			if other.ID != bc.ID && other.CategoryID == categoryID {
				return apperrors.ErrDuplicateBudgetCategory
			}
		}

		bc.CategoryID = categoryID
		if err := s.recompute(ctx, repo, *budget, bc); err != nil {
			return err
		}
		if err := s.verifySpent(ctx, repo, []models.BudgetCategory{*bc}); err != nil {
			return err
		}
		result = bc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteBudgetCategory removes an allocation. Transactions are untouched.
func (s *budgetService) DeleteBudgetCategory(ctx context.Context, userID, budgetCategoryID string) error {
	return s.run(ctx, "delete_budget_category", func(repo store.Repository) error {
		if _, _, err := s.ownedBudgetCategory(ctx, repo, userID, budgetCategoryID); err != nil {
			return err
		}
		return repo.DeleteBudgetCategory(ctx, budgetCategoryID)
	})
}

// RecomputeSpent rebuilds one category's spent amount from the transactions.
func (s *budgetService) RecomputeSpent(ctx context.Context, userID, budgetCategoryID string) (*models.BudgetCategory, error) {
	var result *models.BudgetCategory
	err := s.run(ctx, "recompute_spent", func(repo store.Repository) error {
		budget, bc, err := s.ownedBudgetCategory(ctx, repo, userID, budgetCategoryID)
		if err != nil {
			return err
		}
		if err := s.recompute(ctx, repo, *budget, bc); err != nil {
			return err
		}
		result = bc
		return s.verifySpent(ctx, repo, []models.BudgetCategory{*bc})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecomputeBudget rebuilds every category of a budget.
func (s *budgetService) RecomputeBudget(ctx context.Context, userID, budgetID string) (*models.Budget, error) {
	var result *models.Budget
	err := s.run(ctx, "recompute_budget", func(repo store.Repository) error {
		budget, err := ownedBudget(ctx, repo, userID, budgetID, true)
		if err != nil {
			return err
		}
		if err := s.recomputeAll(ctx, repo, budget); err != nil {
			return err
		}
		result = budget
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CopyBudget clones a budget and its allocations into a new window starting
// at start. Spent amounts reflect the new window.
func (s *budgetService) CopyBudget(ctx context.Context, userID, sourceBudgetID, name string, start time.Time) (*models.Budget, error) {
	if start.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "start date is required")
	}

	var result *models.Budget
	err := s.run(ctx, "copy_budget", func(repo store.Repository) error {
		source, err := ownedBudget(ctx, repo, userID, sourceBudgetID, false)
		if err != nil {
			return err
		}
		result, err = s.copyInto(ctx, repo, source, name, startOf(start))
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RollForward copies a budget into the period that follows it.
func (s *budgetService) RollForward(ctx context.Context, userID, budgetID string) (*models.Budget, error) {
	var result *models.Budget
	err := s.run(ctx, "roll_forward", func(repo store.Repository) error {
		source, err := ownedBudget(ctx, repo, userID, budgetID, false)
		if err != nil {
			return err
		}
		next := period.Next(source.Window())
		result, err = s.copyInto(ctx, repo, source, source.Name, next.Start)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *budgetService) copyInto(ctx context.Context, repo store.Repository, source *models.Budget, name string, start time.Time) (*models.Budget, error) {
	if strings.TrimSpace(name) == "" {
		name = source.Name
	}

	budget := &models.Budget{
		UserID:      source.UserID,
		Name:        strings.TrimSpace(name),
		PeriodType:  source.PeriodType,
		StartDate:   start,
		EndDate:     period.EndDate(start, source.PeriodType),
		TotalAmount: source.TotalAmount,
	}
	if err := repo.CreateBudget(ctx, budget); err != nil {
		return nil, err
	}

	for _, src := range source.BudgetCategories {
		bc := &models.BudgetCategory{
			BudgetID:        budget.ID,
			CategoryID:      src.CategoryID,
			AllocatedAmount: src.AllocatedAmount,
		}
		if err := repo.CreateBudgetCategory(ctx, bc); err != nil {
			return nil, err
		}
		if err := s.recompute(ctx, repo, *budget, bc); err != nil {
			return nil, err
		}
		budget.BudgetCategories = append(budget.BudgetCategories, *bc)
	}

	if err := s.verifyAllocation(*budget); err != nil {
		return nil, err
	}
	if err := s.verifySpent(ctx, repo, budget.BudgetCategories); err != nil {
		return nil, err
	}
	return budget, nil
}

// GetBudgetSummary reports allocation and usage per category.
func (s *budgetService) GetBudgetSummary(ctx context.Context, userID, budgetID string) (*BudgetSummary, error) {
	budget, err := ownedBudget(ctx, s.store.Reader(), userID, budgetID, false)
	if err != nil {
		return nil, err
	}

	summary := &BudgetSummary{
		BudgetID:    budget.ID,
		StartDate:   budget.StartDate,
		EndDate:     budget.EndDate,
		TotalAmount: budget.TotalAmount,
		Allocated:   budget.Allocated(),
		Spent:       decimal.Zero,
		Categories:  make([]BudgetCategorySummary, 0, len(budget.BudgetCategories)),
	}
	summary.Unallocated = budget.TotalAmount.Sub(summary.Allocated)

	for _, bc := range budget.BudgetCategories {
		summary.Spent = summary.Spent.Add(bc.SpentAmount)
		summary.Categories = append(summary.Categories, BudgetCategorySummary{
			BudgetCategoryID: bc.ID,
			CategoryID:       bc.CategoryID,
			Allocated:        bc.AllocatedAmount,
			Spent:            bc.SpentAmount,
			Remaining:        bc.Remaining(),
			UsagePercentage:  UsagePercentage(bc.AllocatedAmount, bc.SpentAmount),
		})
	}
	summary.UsagePercentage = UsagePercentage(budget.TotalAmount, summary.Spent)
	return summary, nil
}

// RecomputeCovering implements SpentRecomputer. It runs inside the caller's
// unit of work and returns the refreshed budget categories.
func (s *budgetService) RecomputeCovering(ctx context.Context, repo store.Repository, userID, categoryID string, date time.Time) ([]models.BudgetCategory, error) {
	bcs, err := repo.FindBudgetCategoriesCovering(ctx, userID, categoryID, date)
	if err != nil {
		return nil, err
	}

	for i := range bcs {
		budget, err := repo.GetBudget(ctx, bcs[i].BudgetID)
		if err != nil {
			return nil, err
		}
		if err := s.recompute(ctx, repo, *budget, &bcs[i]); err != nil {
			return nil, err
		}
	}
	return bcs, nil
}

// recompute sets bc.SpentAmount from the transaction record and saves it.
func (s *budgetService) recompute(ctx context.Context, repo store.Repository, budget models.Budget, bc *models.BudgetCategory) error {
	txs, err := transactionsInWindow(ctx, repo, budget, bc.CategoryID)
	if err != nil {
		return err
	}
	bc.SpentAmount = consistency.SpentFrom(budget, bc.CategoryID, txs)
	if err := repo.SaveBudgetCategory(ctx, bc); err != nil {
		return err
	}
	s.recorder.Recomputed(ctx, 1)
	return nil
}

func (s *budgetService) recomputeAll(ctx context.Context, repo store.Repository, budget *models.Budget) error {
	for i := range budget.BudgetCategories {
		if err := s.recompute(ctx, repo, *budget, &budget.BudgetCategories[i]); err != nil {
			return err
		}
	}
	return s.verifySpent(ctx, repo, budget.BudgetCategories)
}

// ownedBudgetCategory loads a budget category and its locked parent budget.
func (s *budgetService) ownedBudgetCategory(ctx context.Context, repo store.Repository, userID, budgetCategoryID string) (*models.Budget, *models.BudgetCategory, error) {
	bc, err := repo.GetBudgetCategory(ctx, budgetCategoryID)
	if err != nil {
		return nil, nil, err
	}
	budget, err := ownedBudget(ctx, repo, userID, bc.BudgetID, true)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil, apperrors.ErrBudgetCategoryNotFound
		}
		return nil, nil, err
	}
	return budget, bc, nil
}

func (s *budgetService) verifyAllocation(budget models.Budget) error {
	if !s.opts.VerifyInvariants {
		return nil
	}
	return s.checker.CheckBudgetAllocation(budget)
}

func replaceCategory(budget *models.Budget, bc models.BudgetCategory) {
	for i := range budget.BudgetCategories {
		if budget.BudgetCategories[i].ID == bc.ID {
			budget.BudgetCategories[i] = bc
			return
		}
	}
	budget.BudgetCategories = append(budget.BudgetCategories, bc)
}
