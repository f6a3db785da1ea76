package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/schoolledger/ledger-api/internal/models"

	"gorm.io/gorm"
)

const insertBatchSize = 200

// BackupRepository reads and rewrites whole tables for backup/restore. Table
// names are checked against models.Tables before any SQL is built.
type BackupRepository interface {
	Columns(table string) ([]string, error)
	Dump(ctx context.Context, table string) ([]models.Row, error)
	Truncate(ctx context.Context, tables []string) error
	InsertRows(ctx context.Context, table string, columns []string, rows []models.Row) error
	ResetSequence(ctx context.Context, table string) error
}

type backupRepository struct {
	db *gorm.DB
}

// NewBackupRepository creates a new backup repository
func NewBackupRepository(db *gorm.DB) BackupRepository {
	return &backupRepository{db: db}
}

func modelFor(table string) (any, error) {
	for _, spec := range models.Tables() {
		if spec.Name == table {
			return spec.Model, nil
		}
	}
	return nil, fmt.Errorf("unknown table %q", table)
}

// Columns returns the column allow-list for a table, taken from its model
func (r *backupRepository) Columns(table string) ([]string, error) {
	model, err := modelFor(table)
	if err != nil {
		return nil, err
	}
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("failed to parse schema for %s: %w", table, err)
	}
	columns := make([]string, len(stmt.Schema.DBNames))
	copy(columns, stmt.Schema.DBNames)
	return columns, nil
}

// Dump reads every row of a table verbatim, ordered by id
func (r *backupRepository) Dump(ctx context.Context, table string) ([]models.Row, error) {
	if _, err := modelFor(table); err != nil {
		return nil, err
	}

	var raw []map[string]interface{}
	if err := r.db.WithContext(ctx).Table(table).Order("id ASC").Find(&raw).Error; err != nil {
		return nil, err
	}

	rows := make([]models.Row, len(raw))
	for i, values := range raw {
		row := make(models.Row, len(values))
		for column, value := range values {
			// numeric columns come back as raw text
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			row[column] = value
		}
		rows[i] = row
	}
	return rows, nil
}

// Truncate clears the tables, restarts their identity sequences and cascades
// to any table holding foreign keys into them.
func (r *backupRepository) Truncate(ctx context.Context, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	quoted := make([]string, len(tables))
	for i, table := range tables {
		if _, err := modelFor(table); err != nil {
			return err
		}
		quoted[i] = pq.QuoteIdentifier(table)
	}
	sql := "TRUNCATE TABLE " + strings.Join(quoted, ", ") + " RESTART IDENTITY CASCADE"
	return r.db.WithContext(ctx).Exec(sql).Error
}

// InsertRows writes rows using exactly the given columns; a column missing
// from a row is written as NULL.
func (r *backupRepository) InsertRows(ctx context.Context, table string, columns []string, rows []models.Row) error {
	if _, err := modelFor(table); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	batch := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		values := make(map[string]interface{}, len(columns))
		for _, column := range columns {
			values[column] = row[column]
		}
		batch = append(batch, values)
	}
	return r.db.WithContext(ctx).Table(table).CreateInBatches(batch, insertBatchSize).Error
}

// ResetSequence moves the id sequence past the highest restored id
func (r *backupRepository) ResetSequence(ctx context.Context, table string) error {
	if _, err := modelFor(table); err != nil {
		return err
	}
	ident := pq.QuoteIdentifier(table)
	sql := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence(%s, 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
		pq.QuoteLiteral(ident), ident,
	)
	return r.db.WithContext(ctx).Exec(sql).Error
}
