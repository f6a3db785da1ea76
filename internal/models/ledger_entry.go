package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry represents one recorded financial movement (income, expense,
// salary or bank movement).
type LedgerEntry struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Category      Category        `json:"category" gorm:"size:32;not null;index"`
	Title         string          `json:"title" gorm:"not null;default:''"`
	EntryType     string          `json:"type" gorm:"column:type;size:100"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(15,2);not null"`
	Status        string          `json:"status" gorm:"size:32;not null;default:Pending;index"`
	ReferenceID   *uint           `json:"reference_id,omitempty" gorm:"index"`
	Date          time.Time       `json:"date" gorm:"type:date;not null;index"`
	PaymentMethod string          `json:"payment_method" gorm:"size:100"`
	// AccountID is a weak reference: no foreign key, tolerant of deleted accounts.
	AccountID   *uint     `json:"account_id,omitempty" gorm:"index"`
	ToAccountID *uint     `json:"to_account_id,omitempty" gorm:"index"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (LedgerEntry) TableName() string {
	return "finance"
}

// Ledger entry status values. The vocabulary is open; only these are produced
// by the system itself.
const (
	EntryStatusPaid     = "Paid"
	EntryStatusPending  = "Pending"
	EntryStatusOverdue  = "Overdue"
	EntryStatusApproved = "Approved"
)

// Bank operation entry types
const (
	EntryTypeDeposit    = "Deposit"
	EntryTypeWithdrawal = "Withdrawal"
	EntryTypeTransfer   = "Transfer"
)

// PaymentMethodBankTransfer is recorded on entries generated by bank operations.
const PaymentMethodBankTransfer = "Bank Transfer"

// DateLayout is the calendar-date wire format.
const DateLayout = "2006-01-02"

// LedgerEntryResponse is the JSON response format for ledger entries
type LedgerEntryResponse struct {
	ID            uint            `json:"id"`
	Category      Category        `json:"category"`
	Title         string          `json:"title"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	ReferenceID   *uint           `json:"reference_id,omitempty"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"payment_method"`
	AccountID     *uint           `json:"account_id,omitempty"`
	ToAccountID   *uint           `json:"to_account_id,omitempty"`
	Description   *string         `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ToResponse converts LedgerEntry to LedgerEntryResponse
func (e *LedgerEntry) ToResponse() LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:            e.ID,
		Category:      e.Category,
		Title:         e.Title,
		Type:          e.EntryType,
		Amount:        e.Amount,
		Status:        e.Status,
		ReferenceID:   e.ReferenceID,
		Date:          e.Date.Format(DateLayout),
		PaymentMethod: e.PaymentMethod,
		AccountID:     e.AccountID,
		ToAccountID:   e.ToAccountID,
		Description:   e.Description,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
