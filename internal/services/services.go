package services

import (
	"github.com/go-redis/redis/v8"
	"github.com/schoolledger/ledger-api/internal/config"
	"github.com/schoolledger/ledger-api/internal/jobs"
	"github.com/schoolledger/ledger-api/internal/repository"
	"github.com/schoolledger/ledger-api/internal/storage"
)

// Services holds all service instances
type Services struct {
	Ledger      *LedgerService
	Bank        *BankService
	Backup      *BackupService
	Export      *ExportService
	Idempotency *IdempotencyStore
	Job         *JobService
}

// NewServices creates all service instances. store, redisClient and worker
// may be nil; Job is only built when a worker is supplied.
func NewServices(repos *repository.Repositories, tx repository.Transactor, store *storage.LocalStorage, redisClient *redis.Client, worker *jobs.Worker, cfg *config.Config) *Services {
	v := NewValidator()
	ledgerSvc := NewLedgerService(repos.Ledger, tx, v)
	bankSvc := NewBankService(repos.BankAccount, tx, v)

	var safety SafetyCopyStore
	var archive BackupArchive
	if store != nil {
		safety = store
		archive = store
	}
	backupSvc := NewBackupService(repos.Backup, tx, safety, cfg.BackupSafetyCopy)

	svcs := &Services{
		Ledger:      ledgerSvc,
		Bank:        bankSvc,
		Backup:      backupSvc,
		Export:      NewExportService(ledgerSvc),
		Idempotency: NewIdempotencyStore(redisClient, cfg.IdempotencyTTL),
	}
	if worker != nil {
		svcs.Job = NewJobService(worker, backupSvc, bankSvc, archive, cfg.BackupRetention)
	}
	return svcs
}
