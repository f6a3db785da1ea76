package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount is a named store of funds with a cached running balance.
type BankAccount struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	AccountName   string          `gorm:"not null" json:"account_name"`
	AccountNumber string          `gorm:"size:64;not null;uniqueIndex" json:"account_number"`
	BankName      string          `gorm:"not null" json:"bank_name"`
	Balance       decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"balance"`
	Currency      string          `gorm:"size:3;not null;default:USD" json:"currency"`
	Status        string          `gorm:"size:16;not null;default:Active;index" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for BankAccount
func (BankAccount) TableName() string {
	return "bank_accounts"
}

// Account status constants
const (
	AccountStatusActive   = "Active"
	AccountStatusInactive = "Inactive"
)

// DefaultCurrency is applied when an account is created without one.
const DefaultCurrency = "USD"

// IsActive returns true if the account may take part in bank operations
func (a *BankAccount) IsActive() bool {
	return a.Status == AccountStatusActive
}

// DisplayName is the label used on generated ledger entries.
func (a *BankAccount) DisplayName() string {
	if a.AccountName == "" {
		return a.BankName
	}
	return a.BankName + " (" + a.AccountName + ")"
}

// ReconciliationReport compares an account's cached balance against the net
// of the ledger entries that reference it.
type ReconciliationReport struct {
	AccountID     uint            `json:"account_id"`
	CachedBalance decimal.Decimal `json:"cached_balance"`
	LedgerNet     decimal.Decimal `json:"ledger_net"`
	// Difference is cached - ledger net: initial funding plus any
	// administrative overrides and edits made after the fact.
	Difference decimal.Decimal `json:"difference"`
	Entries    int             `json:"entries"`
}
