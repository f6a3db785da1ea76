package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/schoolledger/ledger-api/internal/repository"
	"github.com/schoolledger/ledger-api/internal/statemachine"
	"github.com/schoolledger/ledger-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// BankAccountInput is the payload for creating or replacing a bank account.
// A nil balance means 0 on create and "keep current" on update.
type BankAccountInput struct {
	AccountName   string           `json:"account_name" validate:"required,max=255"`
	AccountNumber string           `json:"account_number" validate:"required,max=64"`
	BankName      string           `json:"bank_name" validate:"required,max=255"`
	Balance       *decimal.Decimal `json:"balance"`
	Currency      string           `json:"currency" validate:"omitempty,len=3"`
	Status        string           `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

// BankOperationInput is the body of POST /banks/transaction
type BankOperationInput struct {
	Type        string          `json:"type" validate:"required"`
	AccountID   uint            `json:"accountId" validate:"required"`
	ToAccountID *uint           `json:"toAccountId"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description *string         `json:"description"`
	Date        *string         `json:"date"`
}

// BankOperation is a validated money movement
type BankOperation struct {
	AccountID   uint
	ToAccountID uint
	Amount      decimal.Decimal
	Description *string
	Date        time.Time
}

// BankOperationResult is what a committed operation produced
type BankOperationResult struct {
	Entry     models.LedgerEntryResponse `json:"entry"`
	Account   *models.BankAccount        `json:"account"`
	ToAccount *models.BankAccount        `json:"to_account,omitempty"`
}

// BankService owns bank accounts and every operation that moves their
// balances.
type BankService struct {
	repo      repository.BankAccountRepository
	tx        repository.Transactor
	validator *Validator
	now       func() time.Time
}

// NewBankService creates a new bank service
func NewBankService(repo repository.BankAccountRepository, tx repository.Transactor, v *Validator) *BankService {
	return &BankService{
		repo:      repo,
		tx:        tx,
		validator: v,
		now:       time.Now,
	}
}

// List returns every account ordered by id
func (s *BankService) List(ctx context.Context) ([]models.BankAccount, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank accounts: %w", err)
	}
	return accounts, nil
}

// Get returns a single account
func (s *BankService) Get(ctx context.Context, id uint) (*models.BankAccount, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("bank account %d", id))
	}
	return account, nil
}

// Create opens an account. Account numbers are unique.
func (s *BankService) Create(ctx context.Context, in BankAccountInput) (*models.BankAccount, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	account := &models.BankAccount{
		AccountName:   strings.TrimSpace(in.AccountName),
		AccountNumber: strings.TrimSpace(in.AccountNumber),
		BankName:      strings.TrimSpace(in.BankName),
		Balance:       decimal.Zero,
		Currency:      models.DefaultCurrency,
		Status:        models.AccountStatusActive,
	}
	if in.Balance != nil {
		account.Balance = *in.Balance
	}
	if in.Currency != "" {
		account.Currency = strings.ToUpper(in.Currency)
	}
	if in.Status != "" {
		account.Status = in.Status
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, translateError(err, fmt.Sprintf("bank account number %s", account.AccountNumber))
	}

	logger.Info("[BankService] bank account created", "account_id", account.ID, "balance", account.Balance.String())
	return account, nil
}

// Update replaces the account's fields. A supplied balance overwrites the
// cached one directly and is not recorded in the ledger.
func (s *BankService) Update(ctx context.Context, id uint, in BankAccountInput) (*models.BankAccount, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	what := fmt.Sprintf("bank account %d", id)
	var updated *models.BankAccount
	err := s.tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		account, err := tx.BankAccount.LockByID(ctx, id)
		if err != nil {
			return translateError(err, what)
		}
		previous := account.Balance

		account.AccountName = strings.TrimSpace(in.AccountName)
		account.AccountNumber = strings.TrimSpace(in.AccountNumber)
		account.BankName = strings.TrimSpace(in.BankName)
		if in.Balance != nil {
			account.Balance = *in.Balance
		}
		if in.Currency != "" {
			account.Currency = strings.ToUpper(in.Currency)
		}
		if in.Status != "" && in.Status != account.Status {
			if err := s.transition(ctx, account, in.Status); err != nil {
				return err
			}
		}

		if err := tx.BankAccount.Update(ctx, account); err != nil {
			return translateError(err, what)
		}
		if !previous.Equal(account.Balance) {
			logger.Warn("[BankService] balance overridden outside the ledger",
				"account_id", id, "from", previous.String(), "to", account.Balance.String())
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the account. Ledger entries that reference it keep the
// dangling account id.
func (s *BankService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return translateError(err, fmt.Sprintf("bank account %d", id))
	}
	logger.Info("[BankService] bank account deleted", "account_id", id)
	return nil
}

// Activate moves an inactive account back to active
func (s *BankService) Activate(ctx context.Context, id uint) (*models.BankAccount, error) {
	return s.changeStatus(ctx, id, models.AccountStatusActive)
}

// Deactivate blocks further bank operations on the account
func (s *BankService) Deactivate(ctx context.Context, id uint) (*models.BankAccount, error) {
	return s.changeStatus(ctx, id, models.AccountStatusInactive)
}

func (s *BankService) changeStatus(ctx context.Context, id uint, target string) (*models.BankAccount, error) {
	what := fmt.Sprintf("bank account %d", id)
	var result *models.BankAccount
	err := s.tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		account, err := tx.BankAccount.LockByID(ctx, id)
		if err != nil {
			return translateError(err, what)
		}
		if err := s.transition(ctx, account, target); err != nil {
			return err
		}
		if err := tx.BankAccount.UpdateStatus(ctx, id, account.Status); err != nil {
			return translateError(err, what)
		}
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("[BankService] bank account status changed", "account_id", id, "status", result.Status)
	return result, nil
}

func (s *BankService) transition(ctx context.Context, account *models.BankAccount, target string) error {
	machine := statemachine.NewAccountFSM(account)
	var event string
	var fire func(context.Context) error
	switch target {
	case models.AccountStatusActive:
		event, fire = statemachine.EventActivate, machine.Activate
	case models.AccountStatusInactive:
		event, fire = statemachine.EventDeactivate, machine.Deactivate
	default:
		return newValidationError("unknown account status %q", target)
	}
	if !machine.Can(event) {
		return fmt.Errorf("bank account %d cannot move from %s to %s: %w", account.ID, account.Status, target, ErrInvalidState)
	}
	if err := fire(ctx); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), ErrInvalidState)
	}
	return nil
}

// Execute validates a raw operation request and dispatches it
func (s *BankService) Execute(ctx context.Context, in BankOperationInput) (*BankOperationResult, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	date, err := parseDate(in.Date, s.now())
	if err != nil {
		return nil, err
	}

	op := BankOperation{
		AccountID:   in.AccountID,
		Amount:      in.Amount,
		Description: in.Description,
		Date:        date,
	}

	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "deposit":
		return s.Deposit(ctx, op)
	case "withdrawal", "withdraw":
		return s.Withdraw(ctx, op)
	case "transfer":
		if in.ToAccountID == nil {
			return nil, &ValidationError{Message: "invalid input", Fields: map[string]string{"toAccountId": "is required"}}
		}
		op.ToAccountID = *in.ToAccountID
		return s.Transfer(ctx, op)
	}
	return nil, &ValidationError{
		Message: "invalid input",
		Fields:  map[string]string{"type": "must be one of [Deposit Withdrawal Transfer]"},
	}
}

// Deposit credits the account and records the movement
func (s *BankService) Deposit(ctx context.Context, op BankOperation) (*BankOperationResult, error) {
	if err := checkAmount(op.Amount); err != nil {
		return nil, err
	}

	result := &BankOperationResult{}
	err := s.tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		account, err := loadOperable(ctx, tx, op.AccountID)
		if err != nil {
			return err
		}

		updated, err := tx.BankAccount.AdjustBalance(ctx, account.ID, op.Amount)
		if err != nil {
			return translateError(err, fmt.Sprintf("bank account %d", account.ID))
		}

		entry := s.operationEntry(op, models.EntryTypeDeposit, "Deposit to "+account.BankName)
		if err := tx.Ledger.Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to record deposit: %w", err)
		}

		result.Entry = entry.ToResponse()
		result.Account = updated
		return nil
	})
	if err != nil {
		logOperationFailure(models.EntryTypeDeposit, op, err)
		return nil, err
	}

	logger.Info("[BankService] deposit committed",
		"account_id", op.AccountID, "amount", op.Amount.String(), "balance", result.Account.Balance.String())
	return result, nil
}

// Withdraw debits the account if it holds at least the amount
func (s *BankService) Withdraw(ctx context.Context, op BankOperation) (*BankOperationResult, error) {
	if err := checkAmount(op.Amount); err != nil {
		return nil, err
	}

	result := &BankOperationResult{}
	err := s.tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		account, err := loadOperable(ctx, tx, op.AccountID)
		if err != nil {
			return err
		}
		if err := checkFunds(account, op.Amount); err != nil {
			return err
		}

		updated, err := tx.BankAccount.AdjustBalance(ctx, account.ID, op.Amount.Neg())
		if err != nil {
			return translateError(err, fmt.Sprintf("bank account %d", account.ID))
		}

		entry := s.operationEntry(op, models.EntryTypeWithdrawal, "Withdrawal from "+account.BankName)
		if err := tx.Ledger.Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to record withdrawal: %w", err)
		}

		result.Entry = entry.ToResponse()
		result.Account = updated
		return nil
	})
	if err != nil {
		logOperationFailure(models.EntryTypeWithdrawal, op, err)
		return nil, err
	}

	logger.Info("[BankService] withdrawal committed",
		"account_id", op.AccountID, "amount", op.Amount.String(), "balance", result.Account.Balance.String())
	return result, nil
}

// Transfer moves funds between two accounts. The source debit, destination
// credit and the ledger entry commit together or not at all.
func (s *BankService) Transfer(ctx context.Context, op BankOperation) (*BankOperationResult, error) {
	if err := checkAmount(op.Amount); err != nil {
		return nil, err
	}
	if op.ToAccountID == 0 {
		return nil, &ValidationError{Message: "invalid input", Fields: map[string]string{"toAccountId": "is required"}}
	}
	if op.ToAccountID == op.AccountID {
		return nil, newValidationError("cannot transfer to the same account")
	}

	result := &BankOperationResult{}
	err := s.tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		source, err := loadOperable(ctx, tx, op.AccountID)
		if err != nil {
			return err
		}
		if err := checkFunds(source, op.Amount); err != nil {
			return err
		}

		debited, err := tx.BankAccount.AdjustBalance(ctx, source.ID, op.Amount.Neg())
		if err != nil {
			return translateError(err, fmt.Sprintf("bank account %d", source.ID))
		}

		destination, err := loadOperable(ctx, tx, op.ToAccountID)
		if err != nil {
			return err
		}

		credited, err := tx.BankAccount.AdjustBalance(ctx, destination.ID, op.Amount)
		if err != nil {
			return translateError(err, fmt.Sprintf("bank account %d", destination.ID))
		}

		entry := s.operationEntry(op, models.EntryTypeTransfer, "Transfer to "+destination.DisplayName())
		toID := destination.ID
		entry.ToAccountID = &toID
		if err := tx.Ledger.Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to record transfer: %w", err)
		}

		result.Entry = entry.ToResponse()
		result.Account = debited
		result.ToAccount = credited
		return nil
	})
	if err != nil {
		logOperationFailure(models.EntryTypeTransfer, op, err)
		return nil, err
	}

	logger.Info("[BankService] transfer committed",
		"account_id", op.AccountID,
		"to_account_id", op.ToAccountID,
		"amount", op.Amount.String(),
	)
	return result, nil
}

// Reconcile compares the cached balance with the net of ledger-derived
// deltas. It never changes either side.
func (s *BankService) Reconcile(ctx context.Context, id uint) (*models.ReconciliationReport, error) {
	var report *models.ReconciliationReport
	err := s.tx.WithinSnapshot(ctx, func(tx *repository.Repositories) error {
		account, err := tx.BankAccount.FindByID(ctx, id)
		if err != nil {
			return translateError(err, fmt.Sprintf("bank account %d", id))
		}
		report, err = reconcileAccount(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ReconcileAll reports on every account from one consistent snapshot
func (s *BankService) ReconcileAll(ctx context.Context) ([]models.ReconciliationReport, error) {
	var reports []models.ReconciliationReport
	err := s.tx.WithinSnapshot(ctx, func(tx *repository.Repositories) error {
		accounts, err := tx.BankAccount.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list bank accounts: %w", err)
		}
		for i := range accounts {
			report, err := reconcileAccount(ctx, tx, &accounts[i])
			if err != nil {
				return err
			}
			reports = append(reports, *report)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func reconcileAccount(ctx context.Context, tx *repository.Repositories, account *models.BankAccount) (*models.ReconciliationReport, error) {
	entries, err := tx.Ledger.FindByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for account %d: %w", account.ID, err)
	}

	net := LedgerNet(account.ID, entries)
	return &models.ReconciliationReport{
		AccountID:     account.ID,
		CachedBalance: account.Balance,
		LedgerNet:     net,
		Difference:    account.Balance.Sub(net),
		Entries:       len(entries),
	}, nil
}

func (s *BankService) operationEntry(op BankOperation, entryType, title string) *models.LedgerEntry {
	accountID := op.AccountID
	date := op.Date
	if date.IsZero() {
		date, _ = parseDate(nil, s.now())
	}
	return &models.LedgerEntry{
		Category:      models.CategoryBanks,
		Title:         title,
		EntryType:     entryType,
		Amount:        op.Amount,
		Status:        models.EntryStatusPaid,
		Date:          date,
		PaymentMethod: models.PaymentMethodBankTransfer,
		AccountID:     &accountID,
		Description:   op.Description,
	}
}

// loadOperable locks the account row for the rest of the unit of work
func loadOperable(ctx context.Context, tx *repository.Repositories, id uint) (*models.BankAccount, error) {
	account, err := tx.BankAccount.LockByID(ctx, id)
	if err != nil {
		return nil, translateError(err, fmt.Sprintf("bank account %d", id))
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("bank account %d is %s: %w", id, strings.ToLower(account.Status), ErrInvalidState)
	}
	return account, nil
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Message: "invalid input", Fields: map[string]string{"amount": "must be greater than 0"}}
	}
	return nil
}

func checkFunds(account *models.BankAccount, amount decimal.Decimal) error {
	if account.Balance.LessThan(amount) {
		return fmt.Errorf("bank account %d holds %s, requested %s: %w",
			account.ID, account.Balance.StringFixed(2), amount.StringFixed(2), ErrInsufficientFunds)
	}
	return nil
}

func logOperationFailure(kind string, op BankOperation, err error) {
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInsufficientFunds) {
		logger.Info("[BankService] operation rejected", "type", kind, "account_id", op.AccountID, "reason", err.Error())
		return
	}
	logger.Warn("[BankService] operation rolled back", "type", kind, "account_id", op.AccountID, "error", err)
}
