package handlers

import (
	"github.com/schoolledger/ledger-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health  *HealthHandler
	Finance *FinanceHandler
	Bank    *BankHandler
	Backup  *BackupHandler
	Job     *JobHandler
}

// NewHandlers creates all handler instances. Job is nil when svcs.Job is.
func NewHandlers(svcs *services.Services, ping Pinger) *Handlers {
	h := &Handlers{
		Health:  NewHealthHandler(ping),
		Finance: NewFinanceHandler(svcs.Ledger, svcs.Export),
		Bank:    NewBankHandler(svcs.Bank, svcs.Idempotency),
		Backup:  NewBackupHandler(svcs.Backup),
	}
	if svcs.Job != nil {
		h.Job = NewJobHandler(svcs.Job)
	}
	return h
}
