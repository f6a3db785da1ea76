package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Ledger      LedgerRepository
	BankAccount BankAccountRepository
	Backup      BackupRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Ledger:      NewLedgerRepository(db),
		BankAccount: NewBankAccountRepository(db),
		Backup:      NewBackupRepository(db),
	}
}

// Transactor runs a unit of work: every repository handed to fn shares one
// database transaction, committed when fn returns nil and rolled back
// otherwise.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(tx *Repositories) error) error
	WithinSnapshot(ctx context.Context, fn func(tx *Repositories) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor backed by gorm transactions
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

// WithinTransaction runs at READ COMMITTED; balance reads inside the unit of
// work take row locks (SELECT ... FOR UPDATE), which serialises concurrent
// writers on the same account without serialization-failure retries.
func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// WithinSnapshot runs fn in a read-only REPEATABLE READ transaction so every
// read sees the same committed state.
func (t *gormTransactor) WithinSnapshot(ctx context.Context, fn func(tx *Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}
