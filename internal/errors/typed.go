package errors

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Detailer is implemented by errors that carry structured data a caller can
// use to render a precise message.
type Detailer interface {
	Details() map[string]any
}

// InsufficientBalanceError is returned when a withdrawal, transfer or reversal
// asks for more than the account holds.
type InsufficientBalanceError struct {
	AccountID string
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

// Shortfall is the amount missing to complete the operation.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Balance)
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s, short by %s",
		money(e.Balance), money(e.Requested), money(e.Shortfall()))
}

func (e *InsufficientBalanceError) Unwrap() error {
	return WithMessage(ErrInsufficientBalance, e.Error())
}

// Details implements Detailer.
func (e *InsufficientBalanceError) Details() map[string]any {
	return map[string]any{
		"account_id": e.AccountID,
		"balance":    money(e.Balance),
		"requested":  money(e.Requested),
		"shortfall":  money(e.Shortfall()),
	}
}

// OverAllocationError is returned when an allocation (or a budget total change)
// would push the allocated sum past the budget total.
type OverAllocationError struct {
	BudgetID   string
	Requested  decimal.Decimal
	MaxAllowed decimal.Decimal
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("allocation of %s exceeds the remaining budget capacity; maximum allowed is %s",
		money(e.Requested), money(e.MaxAllowed))
}

func (e *OverAllocationError) Unwrap() error {
	return WithMessage(ErrOverAllocation, e.Error())
}

// Details implements Detailer.
func (e *OverAllocationError) Details() map[string]any {
	return map[string]any{
		"budget_id":   e.BudgetID,
		"requested":   money(e.Requested),
		"max_allowed": money(e.MaxAllowed),
	}
}

// InactiveAccountError is returned when a ledger operation targets a closed account.
type InactiveAccountError struct {
	AccountID string
	Status    string
}

func (e *InactiveAccountError) Error() string {
	return fmt.Sprintf("account %s is %s", e.AccountID, e.Status)
}

func (e *InactiveAccountError) Unwrap() error {
	return WithMessage(ErrInactiveAccount, e.Error())
}

// Details implements Detailer.
func (e *InactiveAccountError) Details() map[string]any {
	return map[string]any{"account_id": e.AccountID, "status": e.Status}
}

// ConsistencyViolationError signals a logic defect: an invariant did not hold
// after a write. The surrounding unit of work must roll back.
type ConsistencyViolationError struct {
	Invariant string
	Detail    string
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("consistency violation (%s): %s", e.Invariant, e.Detail)
}

// Unwrap keeps the public message generic; the detail is only logged.
func (e *ConsistencyViolationError) Unwrap() error {
	return ErrConsistencyViolation
}

// Details implements Detailer.
func (e *ConsistencyViolationError) Details() map[string]any {
	return map[string]any{"invariant": e.Invariant}
}

// money renders an amount with at least two decimal places, keeping any
// finer digits so sub-cent differences are never shown as zero.
func money(d decimal.Decimal) string {
	if d.Exponent() < -2 {
		return d.String()
	}
	return d.StringFixed(2)
}
