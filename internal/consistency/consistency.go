// Package consistency holds the ledger invariants as pure predicates. Nothing
// here touches storage: callers hand in the entities they loaded and get a
// yes/no answer, or a ConsistencyViolationError from Checker.
package consistency

import (
	"github.com/shopspring/decimal"

	"tally/internal/models"
)

// AccountBalanceNonNegative reports whether the account balance is >= 0.
func AccountBalanceNonNegative(account models.Account) bool {
	return !account.Balance.IsNegative()
}

// BudgetAllocationWithinTotal reports whether the allocations loaded on the
// budget sum to at most its total.
func BudgetAllocationWithinTotal(budget models.Budget) bool {
	for _, bc := range budget.BudgetCategories {
		if bc.AllocatedAmount.IsNegative() {
			return false
		}
	}
	return budget.Allocated().LessThanOrEqual(budget.TotalAmount)
}

// SpentFrom is the single definition of a budget category's spent amount:
// the sum of expense transactions in categoryID dated inside the budget
// window, skipping reversals and anything a reversal in txs points at.
func SpentFrom(budget models.Budget, categoryID string, txs []models.Transaction) decimal.Decimal {
	reversed := make(map[string]struct{})
	for _, tx := range txs {
		if tx.ReversesID != nil {
			reversed[*tx.ReversesID] = struct{}{}
		}
	}

	window := budget.Window()
	spent := decimal.Zero
	for _, tx := range txs {
		if tx.Type != models.TransactionTypeExpense || tx.IsReversal() {
			continue
		}
		if tx.CategoryID == nil || *tx.CategoryID != categoryID {
			continue
		}
		if !window.Contains(tx.Date) {
			continue
		}
		if _, ok := reversed[tx.ID]; ok {
			continue
		}
		spent = spent.Add(tx.Amount)
	}
	return spent
}

// BudgetCategorySpentMatchesTransactions reports whether the materialized
// spent amount equals what the transaction set says it should be.
func BudgetCategorySpentMatchesTransactions(budget models.Budget, bc models.BudgetCategory, txs []models.Transaction) bool {
	return bc.SpentAmount.Equal(SpentFrom(budget, bc.CategoryID, txs))
}

// TransferIsBalanced verifies that the source lost exactly the transferred
// amount and the destination gained exactly the same.
func TransferIsBalanced(tx models.Transaction, before, after map[string]models.Account) bool {
	if tx.Type != models.TransactionTypeTransfer || tx.SourceAccountID == nil || tx.DestinationAccountID == nil {
		return false
	}
	src, dst := *tx.SourceAccountID, *tx.DestinationAccountID
	if src == dst {
		return false
	}

	srcBefore, ok1 := before[src]
	srcAfter, ok2 := after[src]
	dstBefore, ok3 := before[dst]
	dstAfter, ok4 := after[dst]
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return false
	}

	debited := srcBefore.Balance.Sub(srcAfter.Balance)
	credited := dstAfter.Balance.Sub(dstBefore.Balance)
	return debited.Equal(tx.Amount) && credited.Equal(tx.Amount)
}
