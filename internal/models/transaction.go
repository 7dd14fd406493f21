package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// Transaction is one immutable monetary event. Corrections are recorded as a
// new transaction whose ReversesID points at the original.
type Transaction struct {
	Base
	UserID               string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Type                 TransactionType `gorm:"type:varchar(16);not null;index:idx_transactions_category_type_date,priority:2" json:"type"`
	Amount               decimal.Decimal `gorm:"type:decimal(20,4);not null;check:chk_transactions_amount_positive,amount > 0" json:"amount"`
	SourceAccountID      *string         `gorm:"type:varchar(36);index" json:"source_account_id,omitempty"`
	DestinationAccountID *string         `gorm:"type:varchar(36);index" json:"destination_account_id,omitempty"`
	CategoryID           *string         `gorm:"type:varchar(36);index:idx_transactions_category_type_date,priority:1" json:"category_id,omitempty"`
	ReversesID           *string         `gorm:"type:varchar(36);uniqueIndex" json:"reverses_id,omitempty"`
	Date                 time.Time       `gorm:"not null;index:idx_transactions_category_type_date,priority:3" json:"date"`
	Description          string          `json:"description"`
}

// IsReversal reports whether t compensates an earlier transaction.
func (t Transaction) IsReversal() bool {
	return t.ReversesID != nil
}
