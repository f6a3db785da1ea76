package handlers

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/schoolledger/ledger-api/internal/config"
	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/schoolledger/ledger-api/internal/repository"
	"github.com/schoolledger/ledger-api/internal/services"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fakeDB is a minimal in-memory store behind the repository interfaces.
// Methods the handlers never reach are left to the embedded interface.
type fakeDB struct {
	mu       sync.Mutex
	entries  []models.LedgerEntry
	accounts map[uint]models.BankAccount
	tables   map[string][]models.Row
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		accounts: make(map[uint]models.BankAccount),
		tables:   make(map[string][]models.Row),
	}
}

func (db *fakeDB) repos() *repository.Repositories {
	return &repository.Repositories{
		Ledger:      &fakeLedgerRepo{db: db},
		BankAccount: &fakeBankRepo{db: db},
		Backup:      &fakeBackupRepo{db: db},
	}
}

func (db *fakeDB) addAccount(balance string) uint {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := uint(len(db.accounts) + 1)
	db.accounts[id] = models.BankAccount{
		ID:            id,
		AccountName:   "Operations",
		AccountNumber: fmt.Sprintf("ACC-%d", id),
		BankName:      "First School Bank",
		Balance:       decimal.RequireFromString(balance),
		Currency:      models.DefaultCurrency,
		Status:        models.AccountStatusActive,
	}
	return id
}

type fakeTransactor struct {
	db *fakeDB
}

func (t *fakeTransactor) WithinTransaction(ctx context.Context, fn func(tx *repository.Repositories) error) error {
	return fn(t.db.repos())
}

func (t *fakeTransactor) WithinSnapshot(ctx context.Context, fn func(tx *repository.Repositories) error) error {
	return fn(t.db.repos())
}

type fakeLedgerRepo struct {
	repository.LedgerRepository
	db *fakeDB
}

func (r *fakeLedgerRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entry.ID = uint(len(r.db.entries) + 1)
	r.db.entries = append(r.db.entries, *entry)
	return nil
}

func (r *fakeLedgerRepo) List(ctx context.Context, filter repository.LedgerFilter) ([]models.LedgerEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range r.db.entries {
		if filter.Category != nil && e.Category.Normalize() != filter.Category.Normalize() {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeLedgerRepo) FindByAccount(ctx context.Context, accountID uint) ([]models.LedgerEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range r.db.entries {
		if (e.AccountID != nil && *e.AccountID == accountID) || (e.ToAccountID != nil && *e.ToAccountID == accountID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) Delete(ctx context.Context, id uint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, e := range r.db.entries {
		if e.ID == id {
			r.db.entries = append(r.db.entries[:i], r.db.entries[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeBankRepo struct {
	repository.BankAccountRepository
	db *fakeDB
}

func (r *fakeBankRepo) FindByID(ctx context.Context, id uint) (*models.BankAccount, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	account, ok := r.db.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &account, nil
}

func (r *fakeBankRepo) LockByID(ctx context.Context, id uint) (*models.BankAccount, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeBankRepo) List(ctx context.Context) ([]models.BankAccount, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.BankAccount, 0, len(r.db.accounts))
	for _, account := range r.db.accounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeBankRepo) AdjustBalance(ctx context.Context, id uint, delta decimal.Decimal) (*models.BankAccount, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	account, ok := r.db.accounts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	account.Balance = account.Balance.Add(delta)
	r.db.accounts[id] = account
	return &account, nil
}

func (r *fakeBankRepo) UpdateStatus(ctx context.Context, id uint, status string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	account, ok := r.db.accounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	account.Status = status
	r.db.accounts[id] = account
	return nil
}

type fakeBackupRepo struct {
	repository.BackupRepository
	db *fakeDB
}

func (r *fakeBackupRepo) Dump(ctx context.Context, table string) ([]models.Row, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.tables[table], nil
}

func newTestRouter(db *fakeDB, redisClient *redis.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{IdempotencyTTL: 0}
	svcs := services.NewServices(db.repos(), &fakeTransactor{db: db}, nil, redisClient, nil, cfg)
	h := NewHandlers(svcs, nil)

	router := gin.New()
	router.Use(testUserFromHeader)
	v1 := router.Group("/api/v1")
	v1.GET("/health", h.Health.Index)
	v1.GET("/finance", h.Finance.Index)
	v1.POST("/finance", h.Finance.Create)
	v1.DELETE("/finance/:id", h.Finance.Delete)
	v1.GET("/finance/export", h.Finance.Export)
	v1.GET("/banks/:id", h.Bank.Show)
	v1.POST("/banks/transaction", h.Bank.Transaction)
	v1.POST("/banks/:id/deactivate", h.Bank.Deactivate)
	v1.GET("/banks/:id/reconciliation", h.Bank.Reconciliation)
	v1.GET("/backup/export", h.Backup.Export)
	v1.POST("/backup/restore", h.Backup.Restore)
	return router
}

const testUserHeader = "X-Test-User"

// testUserFromHeader stands in for the JWT middleware's userID claim
func testUserFromHeader(c *gin.Context) {
	if raw := c.GetHeader(testUserHeader); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			c.Set("userID", uint(id))
		}
	}
	c.Next()
}
