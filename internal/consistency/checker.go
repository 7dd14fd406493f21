package consistency

import (
	"fmt"

	apperrors "tally/internal/errors"
	"tally/internal/models"
)

// Invariant names reported in violations and metrics.
const (
	InvariantBalanceNonNegative = "account_balance_non_negative"
	InvariantAllocationInTotal  = "budget_allocation_within_total"
	InvariantSpentMatches       = "budget_category_spent_matches_transactions"
	InvariantTransferBalanced   = "transfer_is_balanced"
)

// Checker turns predicate failures into ConsistencyViolationErrors.
type Checker struct{}

// NewChecker returns a Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// CheckAccounts fails on the first account with a negative balance.
func (c *Checker) CheckAccounts(accounts ...models.Account) error {
	for _, a := range accounts {
		if !AccountBalanceNonNegative(a) {
			return &apperrors.ConsistencyViolationError{
				Invariant: InvariantBalanceNonNegative,
				Detail:    fmt.Sprintf("account %s has balance %s", a.ID, a.Balance),
			}
		}
	}
	return nil
}

// CheckTransfer verifies a transfer moved the same amount out and in.
func (c *Checker) CheckTransfer(tx models.Transaction, before, after map[string]models.Account) error {
	if TransferIsBalanced(tx, before, after) {
		return nil
	}
	return &apperrors.ConsistencyViolationError{
		Invariant: InvariantTransferBalanced,
		Detail:    fmt.Sprintf("transfer %s of %s is not balanced", tx.ID, tx.Amount),
	}
}

// CheckBudgetAllocation requires budget.BudgetCategories to be loaded.
func (c *Checker) CheckBudgetAllocation(budget models.Budget) error {
	if BudgetAllocationWithinTotal(budget) {
		return nil
	}
	return &apperrors.ConsistencyViolationError{
		Invariant: InvariantAllocationInTotal,
		Detail:    fmt.Sprintf("budget %s allocates %s of %s", budget.ID, budget.Allocated(), budget.TotalAmount),
	}
}

// CheckSpent compares a budget category against the transaction set.
func (c *Checker) CheckSpent(budget models.Budget, bc models.BudgetCategory, txs []models.Transaction) error {
	if BudgetCategorySpentMatchesTransactions(budget, bc, txs) {
		return nil
	}
	return &apperrors.ConsistencyViolationError{
		Invariant: InvariantSpentMatches,
		Detail: fmt.Sprintf("budget category %s records spent %s, transactions sum to %s",
			bc.ID, bc.SpentAmount, SpentFrom(budget, bc.CategoryID, txs)),
	}
}
