package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/schoolledger/ledger-api/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// memStore is an in-memory stand-in for the database. Units of work run one
// at a time (like a row lock on every account) and roll back by restoring the
// state captured when they began.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	entries       map[uint]models.LedgerEntry
	accounts      map[uint]models.BankAccount
	tables        map[string][]models.Row
	nextEntryID   uint
	nextAccountID uint

	failLedgerCreate error
	failInsert       map[string]error
	truncated        [][]string
	sequencesReset   []string
}

type memState struct {
	entries       map[uint]models.LedgerEntry
	accounts      map[uint]models.BankAccount
	tables        map[string][]models.Row
	nextEntryID   uint
	nextAccountID uint
}

func newMemStore() *memStore {
	return &memStore{
		entries:    make(map[uint]models.LedgerEntry),
		accounts:   make(map[uint]models.BankAccount),
		tables:     make(map[string][]models.Row),
		failInsert: make(map[string]error),
	}
}

func (s *memStore) capture() memState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := memState{
		entries:       make(map[uint]models.LedgerEntry, len(s.entries)),
		accounts:      make(map[uint]models.BankAccount, len(s.accounts)),
		tables:        make(map[string][]models.Row, len(s.tables)),
		nextEntryID:   s.nextEntryID,
		nextAccountID: s.nextAccountID,
	}
	for k, v := range s.entries {
		st.entries[k] = v
	}
	for k, v := range s.accounts {
		st.accounts[k] = v
	}
	for k, rows := range s.tables {
		st.tables[k] = append([]models.Row(nil), rows...)
	}
	return st
}

func (s *memStore) restore(st memState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = st.entries
	s.accounts = st.accounts
	s.tables = st.tables
	s.nextEntryID = st.nextEntryID
	s.nextAccountID = st.nextAccountID
}

func (s *memStore) repos() *repository.Repositories {
	return &repository.Repositories{
		Ledger:      &memLedgerRepo{s: s},
		BankAccount: &memBankRepo{s: s},
		Backup:      &memBackupRepo{s: s},
	}
}

// seedAccount inserts an account directly, bypassing services
func (s *memStore) seedAccount(number string, balance string) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccountID++
	id := s.nextAccountID
	s.accounts[id] = models.BankAccount{
		ID:            id,
		AccountName:   "Operations " + number,
		AccountNumber: number,
		BankName:      "First School Bank",
		Balance:       decimal.RequireFromString(balance),
		Currency:      models.DefaultCurrency,
		Status:        models.AccountStatusActive,
	}
	return id
}

func (s *memStore) balance(id uint) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance
}

func (s *memStore) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *memStore) allEntries() []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LedgerEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTransactor struct {
	s         *memStore
	commits   int
	rollbacks int
}

func newMemTransactor(s *memStore) *memTransactor {
	return &memTransactor{s: s}
}

func (t *memTransactor) WithinTransaction(ctx context.Context, fn func(tx *repository.Repositories) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	before := t.s.capture()
	if err := fn(t.s.repos()); err != nil {
		t.s.restore(before)
		t.rollbacks++
		return err
	}
	t.commits++
	return nil
}

func (t *memTransactor) WithinSnapshot(ctx context.Context, fn func(tx *repository.Repositories) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()
	return fn(t.s.repos())
}

type memLedgerRepo struct {
	s *memStore
}

func (r *memLedgerRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failLedgerCreate != nil {
		return r.s.failLedgerCreate
	}
	r.s.nextEntryID++
	entry.ID = r.s.nextEntryID
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	r.s.entries[entry.ID] = *entry
	return nil
}

func (r *memLedgerRepo) FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.entries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &entry, nil
}

func (r *memLedgerRepo) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.entries[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for column, value := range fields {
		switch column {
		case "category":
			entry.Category = value.(models.Category)
		case "title":
			entry.Title = value.(string)
		case "type":
			entry.EntryType = value.(string)
		case "amount":
			entry.Amount = value.(decimal.Decimal)
		case "status":
			entry.Status = value.(string)
		case "reference_id":
			ref := value.(uint)
			entry.ReferenceID = &ref
		case "date":
			entry.Date = value.(time.Time)
		case "payment_method":
			entry.PaymentMethod = value.(string)
		case "description":
			desc := value.(string)
			entry.Description = &desc
		default:
			return fmt.Errorf("unexpected column %s", column)
		}
	}
	entry.UpdatedAt = time.Now()
	r.s.entries[id] = entry
	return nil
}

func (r *memLedgerRepo) Delete(ctx context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.entries[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.entries, id)
	return nil
}

func (r *memLedgerRepo) List(ctx context.Context, filter repository.LedgerFilter) ([]models.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.LedgerEntry
	for _, e := range r.s.entries {
		if filter.Category != nil && e.Category.Normalize() != filter.Category.Normalize() {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		if filter.AccountID != nil && (e.AccountID == nil || *e.AccountID != *filter.AccountID) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *memLedgerRepo) FindByAccount(ctx context.Context, accountID uint) ([]models.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.LedgerEntry
	for _, e := range r.s.entries {
		if (e.AccountID != nil && *e.AccountID == accountID) || (e.ToAccountID != nil && *e.ToAccountID == accountID) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memLedgerRepo) ResetAll(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.entries = make(map[uint]models.LedgerEntry)
	r.s.nextEntryID = 0
	return nil
}

type memBankRepo struct {
	s *memStore
}

func (r *memBankRepo) Create(ctx context.Context, account *models.BankAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.nextAccountID++
	account.ID = r.s.nextAccountID
	r.s.accounts[account.ID] = *account
	return nil
}

func (r *memBankRepo) FindByID(ctx context.Context, id uint) (*models.BankAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &account, nil
}

func (r *memBankRepo) List(ctx context.Context) ([]models.BankAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.BankAccount, 0, len(r.s.accounts))
	for _, account := range r.s.accounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memBankRepo) Update(ctx context.Context, account *models.BankAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[account.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for id, existing := range r.s.accounts {
		if id != account.ID && existing.AccountNumber == account.AccountNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.accounts[account.ID] = *account
	return nil
}

func (r *memBankRepo) UpdateStatus(ctx context.Context, id uint, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	account.Status = status
	r.s.accounts[id] = account
	return nil
}

func (r *memBankRepo) Delete(ctx context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.accounts, id)
	return nil
}

func (r *memBankRepo) LockByID(ctx context.Context, id uint) (*models.BankAccount, error) {
	return r.FindByID(ctx, id)
}

func (r *memBankRepo) AdjustBalance(ctx context.Context, id uint, delta decimal.Decimal) (*models.BankAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	account.Balance = account.Balance.Add(delta)
	r.s.accounts[id] = account
	return &account, nil
}

type memBackupRepo struct {
	s *memStore
}

func (r *memBackupRepo) Columns(table string) ([]string, error) {
	for _, spec := range models.Tables() {
		if spec.Name != table {
			continue
		}
		sch, err := schema.Parse(spec.Model, &sync.Map{}, schema.NamingStrategy{})
		if err != nil {
			return nil, err
		}
		return sch.DBNames, nil
	}
	return nil, fmt.Errorf("unknown table %q", table)
}

func (r *memBackupRepo) Dump(ctx context.Context, table string) ([]models.Row, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rows := r.s.tables[table]
	out := make([]models.Row, len(rows))
	for i, row := range rows {
		copied := make(models.Row, len(row))
		for k, v := range row {
			copied[k] = v
		}
		out[i] = copied
	}
	return out, nil
}

func (r *memBackupRepo) Truncate(ctx context.Context, tables []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.truncated = append(r.s.truncated, append([]string(nil), tables...))
	for _, table := range tables {
		delete(r.s.tables, table)
	}
	return nil
}

func (r *memBackupRepo) InsertRows(ctx context.Context, table string, columns []string, rows []models.Row) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failInsert[table]; err != nil {
		return err
	}
	for _, row := range rows {
		values := make(models.Row, len(columns))
		for _, column := range columns {
			values[column] = row[column]
		}
		r.s.tables[table] = append(r.s.tables[table], values)
	}
	return nil
}

func (r *memBackupRepo) ResetSequence(ctx context.Context, table string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sequencesReset = append(r.s.sequencesReset, table)
	return nil
}

// fixedNow pins the service clock
func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
