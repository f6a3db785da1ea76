package models

import (
	"time"
)

// SnapshotFormatVersion is written into every exported snapshot.
const SnapshotFormatVersion = "1.0"

// Row is one schemaless table row: column name to value.
type Row map[string]any

// SnapshotMetadata is the header of a backup document
type SnapshotMetadata struct {
	FormatVersion string    `json:"format_version"`
	SnapshotID    string    `json:"snapshot_id"`
	CreatedAt     time.Time `json:"created_at"`
	Tables        []string  `json:"tables"`
	Checksum      string    `json:"checksum,omitempty"`
}

// Snapshot is a full-fidelity copy of selected tables' rows
type Snapshot struct {
	Metadata *SnapshotMetadata `json:"metadata,omitempty"`
	Tables   map[string][]Row  `json:"tables"`
}

// TableSummary reports how many rows a restore wrote into a table
type TableSummary struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

// RestoreSummary is returned after a successful restore
type RestoreSummary struct {
	Tables     []TableSummary `json:"tables"`
	Ignored    []string       `json:"ignored,omitempty"`
	SafetyCopy string         `json:"safety_copy,omitempty"`
}

// TableSpec ties a table name to the model that defines its columns.
type TableSpec struct {
	Name  string
	Model any
}

// Tables lists every table this service knows about in dependency order:
// parents first, children after, so foreign keys resolve on insert.
func Tables() []TableSpec {
	return []TableSpec{
		{Name: "settings", Model: &Setting{}},
		{Name: "users", Model: &User{}},
		{Name: "staff", Model: &Staff{}},
		{Name: "classes", Model: &Class{}},
		{Name: "students", Model: &Student{}},
		{Name: "attendance", Model: &Attendance{}},
		{Name: "exams", Model: &Exam{}},
		{Name: "events", Model: &Event{}},
		{Name: "library", Model: &LibraryBook{}},
		{Name: "transport", Model: &TransportRoute{}},
		{Name: "bank_accounts", Model: &BankAccount{}},
		{Name: "finance", Model: &LedgerEntry{}},
		{Name: "notifications", Model: &Notification{}},
	}
}

// TableNames returns the names from Tables in the same order.
func TableNames() []string {
	specs := Tables()
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	return names
}
