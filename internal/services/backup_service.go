package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schoolledger/ledger-api/internal/models"
	"github.com/schoolledger/ledger-api/internal/repository"
	"github.com/schoolledger/ledger-api/pkg/logger"
	"golang.org/x/crypto/blake2b"
)

// ledgerTable holds the ledger entries whose categories are normalized on restore
const ledgerTable = "finance"

// BackupFilePrefix starts every exported snapshot filename
const BackupFilePrefix = "school-ledger-backup"

// SafetyCopyStore persists a snapshot document and returns where it went
type SafetyCopyStore interface {
	SaveBackup(data []byte, filename string) (string, error)
}

// RestoreOptions narrows a restore to a subset of the snapshot's tables.
// Empty Tables means every known table present in the snapshot.
type RestoreOptions struct {
	Tables []string
}

// BackupService exports and restores whole tables
type BackupService struct {
	repo       repository.BackupRepository
	tx         repository.Transactor
	store      SafetyCopyStore
	safetyCopy bool
	now        func() time.Time
}

// NewBackupService creates a new backup service. A nil store disables
// pre-restore safety copies.
func NewBackupService(repo repository.BackupRepository, tx repository.Transactor, store SafetyCopyStore, safetyCopy bool) *BackupService {
	return &BackupService{
		repo:       repo,
		tx:         tx,
		store:      store,
		safetyCopy: safetyCopy && store != nil,
		now:        time.Now,
	}
}

// SnapshotFilename names an exported snapshot after its creation time
func SnapshotFilename(t time.Time) string {
	return fmt.Sprintf("%s-%s.json", BackupFilePrefix, t.UTC().Format("20060102-150405"))
}

// Export reads every row of the named tables (all known tables when none are
// named) inside one read-only transaction.
func (s *BackupService) Export(ctx context.Context, tables []string) (*models.Snapshot, error) {
	selected, unknown := selectTables(tables)
	if len(unknown) > 0 {
		return nil, newValidationError("unknown tables: %s", strings.Join(unknown, ", "))
	}
	if len(tables) == 0 {
		selected = models.TableNames()
	}

	data := make(map[string][]models.Row, len(selected))
	err := s.tx.WithinSnapshot(ctx, func(tx *repository.Repositories) error {
		for _, table := range selected {
			rows, err := tx.Backup.Dump(ctx, table)
			if err != nil {
				return fmt.Errorf("failed to export %s: %w", table, err)
			}
			if rows == nil {
				rows = []models.Row{}
			}
			data[table] = rows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	checksum, err := Checksum(data)
	if err != nil {
		return nil, err
	}

	snapshot := &models.Snapshot{
		Metadata: &models.SnapshotMetadata{
			FormatVersion: models.SnapshotFormatVersion,
			SnapshotID:    uuid.NewString(),
			CreatedAt:     s.now().UTC(),
			Tables:        selected,
			Checksum:      checksum,
		},
		Tables: data,
	}

	logger.Info("[BackupService] snapshot exported", "snapshot_id", snapshot.Metadata.SnapshotID, "tables", len(selected))
	return snapshot, nil
}

// Restore clears the selected tables and repopulates them from the snapshot in
// dependency order, all inside one unit of work. Unknown table names are
// reported back and otherwise ignored.
func (s *BackupService) Restore(ctx context.Context, snapshot *models.Snapshot, opts RestoreOptions) (*models.RestoreSummary, error) {
	if snapshot == nil || snapshot.Tables == nil {
		return nil, newValidationError("snapshot has no tables section")
	}
	if len(snapshot.Tables) == 0 {
		return nil, newValidationError("snapshot tables section is empty")
	}
	if snapshot.Metadata != nil && snapshot.Metadata.Checksum != "" {
		sum, err := Checksum(snapshot.Tables)
		if err != nil {
			return nil, newValidationError("snapshot cannot be checksummed: %v", err)
		}
		if sum != snapshot.Metadata.Checksum {
			return nil, newValidationError("snapshot checksum mismatch")
		}
	}

	requested := make([]string, 0, len(snapshot.Tables))
	for name := range snapshot.Tables {
		requested = append(requested, name)
	}
	var missing []string
	if len(opts.Tables) > 0 {
		requested, missing = intersect(requested, opts.Tables)
	}
	selected, ignored := selectTables(requested)
	if len(missing) > 0 {
		ignored = append(ignored, missing...)
		sort.Strings(ignored)
	}
	if len(selected) == 0 {
		return nil, newValidationError("snapshot contains no restorable tables")
	}

	plans, err := s.planRestore(snapshot, selected)
	if err != nil {
		return nil, err
	}

	summary := &models.RestoreSummary{Ignored: ignored}
	if s.safetyCopy {
		path, err := s.saveSafetyCopy(ctx)
		if err != nil {
			return nil, err
		}
		summary.SafetyCopy = path
	}

	err = s.tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Backup.Truncate(ctx, selected); err != nil {
			return fmt.Errorf("failed to clear tables: %w", err)
		}
		for _, plan := range plans {
			if err := tx.Backup.InsertRows(ctx, plan.table, plan.columns, plan.rows); err != nil {
				return fmt.Errorf("failed to restore %s (restoring %s): %w: %w", plan.table, strings.Join(selected, ", "), ErrIntegrity, err)
			}
			if err := tx.Backup.ResetSequence(ctx, plan.table); err != nil {
				return fmt.Errorf("failed to reset id sequence for %s: %w", plan.table, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("[BackupService] restore rolled back", "tables", selected, "error", err)
		return nil, err
	}

	for _, plan := range plans {
		summary.Tables = append(summary.Tables, models.TableSummary{Name: plan.table, Rows: len(plan.rows)})
	}
	logger.Info("[BackupService] restore committed", "tables", selected, "ignored", ignored, "safety_copy", summary.SafetyCopy)
	return summary, nil
}

type restorePlan struct {
	table   string
	columns []string
	rows    []models.Row
}

// planRestore checks every row against the table's column allow-list before
// anything is written. The first row fixes the column set for the table.
func (s *BackupService) planRestore(snapshot *models.Snapshot, selected []string) ([]restorePlan, error) {
	plans := make([]restorePlan, 0, len(selected))
	for _, table := range selected {
		allowed, err := s.repo.Columns(table)
		if err != nil {
			return nil, err
		}
		plan, err := buildPlan(table, allowed, snapshot.Tables[table])
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func buildPlan(table string, allowed []string, rows []models.Row) (restorePlan, error) {
	plan := restorePlan{table: table}
	if rows == nil {
		return plan, newValidationError("table %s: rows must be an array", table)
	}
	if len(rows) == 0 {
		return plan, nil
	}

	allow := make(map[string]bool, len(allowed))
	for _, column := range allowed {
		allow[column] = true
	}

	first := make(map[string]bool, len(rows[0]))
	for column := range rows[0] {
		if !allow[column] {
			return plan, newValidationError("table %s: unknown column %q", table, column)
		}
		first[column] = true
		plan.columns = append(plan.columns, column)
	}
	if len(plan.columns) == 0 {
		return plan, newValidationError("table %s: first row has no columns", table)
	}
	sort.Strings(plan.columns)

	plan.rows = make([]models.Row, len(rows))
	for i, row := range rows {
		if row == nil {
			return plan, newValidationError("table %s: row %d is not an object", table, i)
		}
		normalized := make(models.Row, len(row))
		for column, value := range row {
			if !first[column] {
				return plan, newValidationError("table %s: row %d has column %q missing from the first row", table, i, column)
			}
			normalized[column] = normalizeValue(table, column, value)
		}
		plan.rows[i] = normalized
	}
	return plan, nil
}

// normalizeValue sends JSON numbers as text so PostgreSQL parses them with
// the column's own type and keeps full precision. Legacy ledger categories
// ("expenses", "Salaries") are stored in canonical form; unrecognised ones
// are kept as they are.
func normalizeValue(table, column string, value any) any {
	if n, ok := value.(json.Number); ok {
		return n.String()
	}
	if table == ledgerTable && column == "category" {
		if raw, ok := value.(string); ok {
			if category, err := models.ParseCategory(raw); err == nil {
				return string(category)
			}
		}
	}
	return value
}

func (s *BackupService) saveSafetyCopy(ctx context.Context) (string, error) {
	current, err := s.Export(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to export safety copy: %w", err)
	}
	data, err := json.Marshal(current)
	if err != nil {
		return "", fmt.Errorf("failed to encode safety copy: %w", err)
	}
	path, err := s.store.SaveBackup(data, "pre-restore-"+SnapshotFilename(s.now()))
	if err != nil {
		return "", fmt.Errorf("failed to store safety copy: %w", err)
	}
	return path, nil
}

// DecodeSnapshot parses a snapshot document, keeping numbers exact
func DecodeSnapshot(r io.Reader) (*models.Snapshot, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var snapshot models.Snapshot
	if err := decoder.Decode(&snapshot); err != nil {
		return nil, newValidationError("malformed snapshot: %v", err)
	}
	return &snapshot, nil
}

// Checksum is the hex blake2b-256 digest of the canonical JSON encoding of
// the tables section.
func Checksum(tables map[string][]models.Row) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(tables); err != nil {
		return "", err
	}
	sum := blake2b.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// selectTables splits names into known tables, in dependency order, and
// sorted unknown names.
func selectTables(names []string) (known []string, unknown []string) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	for _, name := range models.TableNames() {
		if wanted[name] {
			known = append(known, name)
			delete(wanted, name)
		}
	}
	for name := range wanted {
		unknown = append(unknown, name)
	}
	sort.Strings(unknown)
	return known, unknown
}

// intersect keeps the names listed in keep and returns the keep entries that
// names does not contain.
func intersect(names []string, keep []string) (kept, missing []string) {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	set := make(map[string]bool, len(keep))
	for _, name := range keep {
		name = strings.TrimSpace(name)
		if name == "" || set[name] {
			continue
		}
		set[name] = true
		if !present[name] {
			missing = append(missing, name)
		}
	}
	kept = names[:0:0]
	for _, name := range names {
		if set[name] {
			kept = append(kept, name)
		}
	}
	return kept, missing
}
