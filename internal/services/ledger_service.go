package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/schoolledger/ledger-api/internal/repository"
	"github.com/schoolledger/ledger-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// LedgerEntryInput is the payload for recording a ledger entry
type LedgerEntryInput struct {
	Category      string           `json:"category" validate:"required"`
	Title         string           `json:"title" validate:"max=255"`
	Type          string           `json:"type" validate:"max=100"`
	Amount        *decimal.Decimal `json:"amount" validate:"required,gte=0"`
	Status        string           `json:"status" validate:"max=32"`
	ReferenceID   *uint            `json:"reference_id"`
	Date          *string          `json:"date"`
	PaymentMethod string           `json:"payment_method" validate:"max=100"`
	AccountID     *uint            `json:"account_id"`
	Description   *string          `json:"description"`
}

// LedgerEntryPatch carries the fields of a partial update. Nil fields are left
// unchanged. The linked account cannot be changed after creation.
type LedgerEntryPatch struct {
	Category      *string          `json:"category"`
	Title         *string          `json:"title" validate:"omitempty,max=255"`
	Type          *string          `json:"type" validate:"omitempty,max=100"`
	Amount        *decimal.Decimal `json:"amount" validate:"omitempty,gte=0"`
	Status        *string          `json:"status" validate:"omitempty,max=32"`
	ReferenceID   *uint            `json:"reference_id"`
	Date          *string          `json:"date"`
	PaymentMethod *string          `json:"payment_method" validate:"omitempty,max=100"`
	Description   *string          `json:"description"`
}

// LedgerQuery is the raw listing filter as received from callers
type LedgerQuery struct {
	Category  string
	From      string
	To        string
	AccountID *uint
}

// LedgerService records financial entries and applies their balance effect
type LedgerService struct {
	repo      repository.LedgerRepository
	tx        repository.Transactor
	validator *Validator
	now       func() time.Time
}

// NewLedgerService creates a new ledger service
func NewLedgerService(repo repository.LedgerRepository, tx repository.Transactor, v *Validator) *LedgerService {
	return &LedgerService{
		repo:      repo,
		tx:        tx,
		validator: v,
		now:       time.Now,
	}
}

// Create records an entry. When the entry names an account, the entry and the
// account's balance change commit together or not at all.
func (s *LedgerService) Create(ctx context.Context, in LedgerEntryInput) (*models.LedgerEntry, error) {
	entry, err := s.buildEntry(in)
	if err != nil {
		return nil, err
	}

	if entry.AccountID == nil {
		if err := s.repo.Create(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to create ledger entry: %w", err)
		}
		return entry, nil
	}

	return s.AddLedgerEntryWithAccount(ctx, entry)
}

// AddLedgerEntryWithAccount inserts the entry and then applies the category's
// balance delta to entry.AccountID inside one unit of work.
func (s *LedgerService) AddLedgerEntryWithAccount(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if entry.AccountID == nil {
		return nil, newValidationError("account_id is required")
	}

	var balance decimal.Decimal
	err := s.tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Ledger.Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to create ledger entry: %w", err)
		}

		account, err := tx.BankAccount.LockByID(ctx, *entry.AccountID)
		if err != nil {
			return translateError(err, fmt.Sprintf("bank account %d", *entry.AccountID))
		}

		delta, ok := BalanceDelta(entry.Category, entry.Amount)
		if !ok {
			balance = account.Balance
			return nil
		}
		if !account.IsActive() {
			return fmt.Errorf("bank account %d is %s: %w", account.ID, strings.ToLower(account.Status), ErrInvalidState)
		}

		updated, err := tx.BankAccount.AdjustBalance(ctx, account.ID, delta)
		if err != nil {
			return translateError(err, fmt.Sprintf("bank account %d", account.ID))
		}
		balance = updated.Balance
		return nil
	})
	if err != nil {
		logger.Warn("[LedgerService] ledger entry rolled back", "account_id", *entry.AccountID, "category", entry.Category, "error", err)
		return nil, err
	}

	logger.Info("[LedgerService] ledger entry recorded",
		"entry_id", entry.ID,
		"account_id", *entry.AccountID,
		"category", entry.Category,
		"amount", entry.Amount.String(),
		"balance", balance.String(),
	)
	return entry, nil
}

// Update changes only the supplied fields. The linked account's balance is
// not recomputed; use Reconcile on the bank service to surface drift.
func (s *LedgerService) Update(ctx context.Context, id uint, patch LedgerEntryPatch) (*models.LedgerEntry, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if patch.Category != nil {
		category, err := models.ParseCategory(*patch.Category)
		if err != nil {
			return nil, newValidationError("%s", err.Error())
		}
		fields["category"] = category
	}
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Type != nil {
		fields["type"] = *patch.Type
	}
	if patch.Amount != nil {
		fields["amount"] = *patch.Amount
	}
	if patch.Status != nil {
		fields["status"] = *patch.Status
	}
	if patch.ReferenceID != nil {
		fields["reference_id"] = *patch.ReferenceID
	}
	if patch.Date != nil {
		date, err := parseDate(patch.Date, s.now())
		if err != nil {
			return nil, err
		}
		fields["date"] = date
	}
	if patch.PaymentMethod != nil {
		fields["payment_method"] = *patch.PaymentMethod
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}

	what := fmt.Sprintf("ledger entry %d", id)
	if len(fields) > 0 {
		if err := s.repo.Update(ctx, id, fields); err != nil {
			return nil, translateError(err, what)
		}
	}

	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateError(err, what)
	}
	return entry, nil
}

// Delete removes an entry. Any balance change it caused stays in place.
func (s *LedgerService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return translateError(err, fmt.Sprintf("ledger entry %d", id))
	}
	return nil
}

// FindByID returns a single entry
func (s *LedgerService) FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("ledger entry %d", id))
	}
	return entry, nil
}

// List returns entries newest first, filtered by category, inclusive date
// range and account.
func (s *LedgerService) List(ctx context.Context, query LedgerQuery) ([]models.LedgerEntry, error) {
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// ResetAll wipes every ledger entry and restarts the id sequence. Account
// balances are left untouched.
func (s *LedgerService) ResetAll(ctx context.Context) error {
	if err := s.repo.ResetAll(ctx); err != nil {
		return fmt.Errorf("failed to reset ledger: %w", err)
	}
	logger.Warn("[LedgerService] ledger wiped")
	return nil
}

func (s *LedgerService) buildEntry(in LedgerEntryInput) (*models.LedgerEntry, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	category, err := models.ParseCategory(in.Category)
	if err != nil {
		return nil, newValidationError("%s", err.Error())
	}

	date, err := parseDate(in.Date, s.now())
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.EntryStatusPending
	}

	return &models.LedgerEntry{
		Category:      category,
		Title:         in.Title,
		EntryType:     in.Type,
		Amount:        *in.Amount,
		Status:        status,
		ReferenceID:   in.ReferenceID,
		Date:          date,
		PaymentMethod: in.PaymentMethod,
		AccountID:     in.AccountID,
		Description:   in.Description,
	}, nil
}

func (s *LedgerService) buildFilter(query LedgerQuery) (repository.LedgerFilter, error) {
	var filter repository.LedgerFilter

	if strings.TrimSpace(query.Category) != "" {
		category, err := models.ParseCategory(query.Category)
		if err != nil {
			return filter, newValidationError("%s", err.Error())
		}
		filter.Category = &category
	}
	if query.From != "" {
		from, err := parseDate(&query.From, s.now())
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := parseDate(&query.To, s.now())
		if err != nil {
			return filter, err
		}
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, newValidationError("date range is inverted: %s is after %s",
			filter.From.Format(models.DateLayout), filter.To.Format(models.DateLayout))
	}
	filter.AccountID = query.AccountID
	return filter, nil
}
