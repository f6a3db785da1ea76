package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/schoolledger/ledger-api/internal/config"
	"github.com/schoolledger/ledger-api/internal/jobs"
	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/schoolledger/ledger-api/pkg/logger"
)

// BackupArchive keeps scheduled snapshots on disk
type BackupArchive interface {
	SaveBackup(data []byte, filename string) (string, error)
	ListBackups() ([]string, error)
	Delete(relativePath string) error
}

// JobService owns the periodic maintenance jobs: scheduled snapshots and the
// balance drift sweep.
type JobService struct {
	worker    *jobs.Worker
	backup    *BackupService
	bank      *BankService
	archive   BackupArchive
	retention int
	now       func() time.Time
}

// NewJobService creates a job service. A nil archive disables scheduled
// backups.
func NewJobService(worker *jobs.Worker, backup *BackupService, bank *BankService, archive BackupArchive, retention int) *JobService {
	return &JobService{
		worker:    worker,
		backup:    backup,
		bank:      bank,
		archive:   archive,
		retention: retention,
		now:       time.Now,
	}
}

// Schedule registers the recurring jobs enabled in cfg
func (s *JobService) Schedule(cfg *config.Config) {
	if cfg.BackupInterval > 0 && s.archive != nil {
		s.worker.ScheduleEvery("scheduled-backup", cfg.BackupInterval, func(ctx context.Context) error {
			_, err := s.RunBackup(ctx)
			return err
		})
	}
	if cfg.ReconcileInterval > 0 {
		s.worker.ScheduleEvery("reconciliation-sweep", cfg.ReconcileInterval, func(ctx context.Context) error {
			_, err := s.RunReconciliation(ctx)
			return err
		})
	}
}

// RunBackup exports every table to the archive and prunes scheduled
// snapshots beyond the retention count. Pre-restore safety copies are never
// pruned.
func (s *JobService) RunBackup(ctx context.Context) (string, error) {
	if s.archive == nil {
		return "", fmt.Errorf("backup archive is not configured")
	}
	snapshot, err := s.backup.Export(ctx, nil)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	saved, err := s.archive.SaveBackup(data, SnapshotFilename(s.now()))
	if err != nil {
		return "", fmt.Errorf("failed to store snapshot: %w", err)
	}
	logger.Info("[JobService] scheduled backup written", "path", saved)

	if err := s.prune(); err != nil {
		logger.Warn("[JobService] failed to prune old backups", "error", err)
	}
	return saved, nil
}

func (s *JobService) prune() error {
	if s.retention <= 0 {
		return nil
	}
	files, err := s.archive.ListBackups()
	if err != nil {
		return err
	}

	kept := 0
	for _, file := range files {
		if !strings.HasPrefix(filepath.Base(file), BackupFilePrefix) {
			continue
		}
		kept++
		if kept <= s.retention {
			continue
		}
		if err := s.archive.Delete(file); err != nil {
			return err
		}
		logger.Info("[JobService] pruned backup", "path", file)
	}
	return nil
}

// RunReconciliation compares every account's cached balance with its ledger
// net and returns the accounts that drifted. Nothing is corrected.
func (s *JobService) RunReconciliation(ctx context.Context) ([]models.ReconciliationReport, error) {
	reports, err := s.bank.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}

	var drifted []models.ReconciliationReport
	for _, report := range reports {
		if report.Difference.IsZero() {
			continue
		}
		drifted = append(drifted, report)
		logger.Warn("[JobService] balance differs from ledger",
			"account_id", report.AccountID,
			"cached_balance", report.CachedBalance.String(),
			"ledger_net", report.LedgerNet.String(),
			"difference", report.Difference.String(),
		)
	}
	logger.Info("[JobService] reconciliation sweep finished", "accounts", len(reports), "drifted", len(drifted))
	return drifted, nil
}

// GetStatus reports worker counters
func (s *JobService) GetStatus() jobs.WorkerStats {
	return s.worker.GetStats()
}
