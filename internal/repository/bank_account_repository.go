package repository

import (
	"context"

	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/shopspring/decimal"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BankAccountRepository defines the interface for bank account data access
type BankAccountRepository interface {
	Create(ctx context.Context, account *models.BankAccount) error
	FindByID(ctx context.Context, id uint) (*models.BankAccount, error)
	List(ctx context.Context) ([]models.BankAccount, error)
	Update(ctx context.Context, account *models.BankAccount) error
	UpdateStatus(ctx context.Context, id uint, status string) error
	Delete(ctx context.Context, id uint) error
	LockByID(ctx context.Context, id uint) (*models.BankAccount, error)
	AdjustBalance(ctx context.Context, id uint, delta decimal.Decimal) (*models.BankAccount, error)
}

type bankAccountRepository struct {
	db *gorm.DB
}

// NewBankAccountRepository creates a new bank account repository
func NewBankAccountRepository(db *gorm.DB) BankAccountRepository {
	return &bankAccountRepository{db: db}
}

func (r *bankAccountRepository) Create(ctx context.Context, account *models.BankAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *bankAccountRepository) FindByID(ctx context.Context, id uint) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *bankAccountRepository) List(ctx context.Context) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	err := r.db.WithContext(ctx).Order("id ASC").Find(&accounts).Error
	return accounts, err
}

// Update replaces the editable fields, balance included. This is the
// administrative override path and is not tracked by the ledger.
func (r *bankAccountRepository) Update(ctx context.Context, account *models.BankAccount) error {
	result := r.db.WithContext(ctx).
		Model(&models.BankAccount{}).
		Where("id = ?", account.ID).
		Select("account_name", "account_number", "bank_name", "balance", "currency", "status").
		Updates(account)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *bankAccountRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.BankAccount{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *bankAccountRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.BankAccount{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LockByID reads the account with a row lock held until the surrounding
// transaction ends. Only meaningful inside Transactor.WithinTransaction.
func (r *bankAccountRepository) LockByID(ctx context.Context, id uint) (*models.BankAccount, error) {
	var account models.BankAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// AdjustBalance adds delta to the cached balance in a single
// read-modify-write statement and returns the updated row.
func (r *bankAccountRepository) AdjustBalance(ctx context.Context, id uint, delta decimal.Decimal) (*models.BankAccount, error) {
	var account models.BankAccount
	result := r.db.WithContext(ctx).
		Model(&account).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &account, nil
}
