package models

import (
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/period"
)

// Budget is a spending plan over one period window. It exclusively owns its
// BudgetCategories.
type Budget struct {
	Base
	UserID      string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Name        string          `gorm:"not null" json:"name"`
	PeriodType  period.Type     `gorm:"type:varchar(16);not null" json:"period_type"`
	StartDate   time.Time       `gorm:"not null;index" json:"start_date"`
	EndDate     time.Time       `gorm:"not null;index" json:"end_date"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;check:chk_budgets_total_positive,total_amount > 0" json:"total_amount"`

	BudgetCategories []BudgetCategory `gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE" json:"budget_categories,omitempty"`
}

// Window returns the budget's inclusive date range.
func (b Budget) Window() period.Window {
	return period.Window{Start: b.StartDate, End: b.EndDate, Type: b.PeriodType}
}

// Allocated sums the allocations of the loaded BudgetCategories.
func (b Budget) Allocated() decimal.Decimal {
	sum := decimal.Zero
	for _, bc := range b.BudgetCategories {
		sum = sum.Add(bc.AllocatedAmount)
	}
	return sum
}

// BudgetCategory allocates part of a budget to one expense category.
// SpentAmount is derived from the transaction record and never set by callers.
type BudgetCategory struct {
	Base
	BudgetID        string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_budget_categories_budget_category" json:"budget_id"`
	CategoryID      string          `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_budget_categories_budget_category" json:"category_id"`
	AllocatedAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0;check:chk_budget_categories_allocated_non_negative,allocated_amount >= 0" json:"allocated_amount"`
	SpentAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0;check:chk_budget_categories_spent_non_negative,spent_amount >= 0" json:"spent_amount"`
}

// Remaining is the unspent part of the allocation; negative when overspent.
func (bc BudgetCategory) Remaining() decimal.Decimal {
	return bc.AllocatedAmount.Sub(bc.SpentAmount)
}
