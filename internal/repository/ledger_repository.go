package repository

import (
	"context"
	"time"

	"github.com/schoolledger/ledger-api/internal/models"

	"gorm.io/gorm"
)

// LedgerFilter narrows a ledger listing. Nil fields are not applied.
type LedgerFilter struct {
	Category  *models.Category
	From      *time.Time
	To        *time.Time
	AccountID *uint
}

// LedgerRepository defines the interface for ledger entry data access
type LedgerRepository interface {
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter LedgerFilter) ([]models.LedgerEntry, error)
	FindByAccount(ctx context.Context, accountID uint) ([]models.LedgerEntry, error)
	ResetAll(ctx context.Context) error
}

// ledgerRepository handles database operations for the finance table
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ledgerRepository) FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Update writes only the supplied columns. Returns gorm.ErrRecordNotFound when
// no row has the id.
func (r *ledgerRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ledgerRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.LedgerEntry{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns entries newest first: date descending, then id descending
func (r *ledgerRepository) List(ctx context.Context, filter LedgerFilter) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.LedgerEntry{})

	if filter.Category != nil {
		query = query.Where("LOWER(category) IN ?", filter.Category.Spellings())
	}
	if filter.From != nil {
		query = query.Where("date >= ?", filter.From.Format(models.DateLayout))
	}
	if filter.To != nil {
		query = query.Where("date <= ?", filter.To.Format(models.DateLayout))
	}
	if filter.AccountID != nil {
		query = query.Where("account_id = ?", *filter.AccountID)
	}

	var entries []models.LedgerEntry
	err := query.Order("date DESC").Order("id DESC").Find(&entries).Error
	return entries, err
}

// FindByAccount returns every entry that moved money in or out of the account,
// including transfers received from other accounts.
func (r *ledgerRepository) FindByAccount(ctx context.Context, accountID uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("account_id = ? OR to_account_id = ?", accountID, accountID).
		Order("date ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// ResetAll wipes the finance table and restarts its id sequence
func (r *ledgerRepository) ResetAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("TRUNCATE TABLE finance RESTART IDENTITY").Error
}
