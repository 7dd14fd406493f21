package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountStatus represents the lifecycle state of an account
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusClosed AccountStatus = "closed"
)

// Account represents a monetary account owned by a user. Its balance is only
// ever changed by the ledger engine.
type Account struct {
	Base
	UserID      string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0;check:chk_accounts_balance_non_negative,balance >= 0" json:"balance"`
	Status      AccountStatus   `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

// IsActive reports whether the account accepts ledger operations.
func (a Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
