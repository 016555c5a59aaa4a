// Package core provides the core types shared by the Kirby migration components.
package core

import (
	"context"

	"github.com/TFMV/kirby/pkg/codec"
)

// MigrationRequest describes one migration. Build it with NewMigrationRequest or
// ParseRequest; the identifier set is deduplicated and never modified afterwards.
type MigrationRequest struct {
	table       string
	identifiers []string
	clone       bool
	safe        bool
}

// Table returns the table name, identical on source and destination.
func (r MigrationRequest) Table() string { return r.table }

// Identifiers returns a copy of the deduplicated identifier set.
func (r MigrationRequest) Identifiers() []string {
	out := make([]string, len(r.identifiers))
	copy(out, r.identifiers)
	return out
}

// Clone reports whether source rows are kept after the copy.
func (r MigrationRequest) Clone() bool { return r.clone }

// Safe reports whether any destination conflict aborts the migration.
func (r MigrationRequest) Safe() bool { return r.safe }

// TableHandle is a table name that has been checked on one connection.
type TableHandle struct {
	Name     string
	Endpoint string
}

// Column describes one column of a fetched RowSet.
type Column struct {
	Name string
	// JSON marks json/jsonb columns, whose values are carried as raw text.
	JSON bool
}

// Row is one fetched row, values in column order.
type Row []codec.Value

// RowSet holds the rows fetched from the source for one migration.
type RowSet struct {
	Table   string
	Columns []Column
	Rows    []Row
}

// Len returns the number of rows.
func (rs *RowSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// ColumnNames returns the column names in order.
func (rs *RowSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	return names
}

// ConflictReport is the outcome of reconciling the request with both databases.
type ConflictReport struct {
	// Resolved is the identifier set that will be migrated.
	Resolved []string
	// Existing holds requested identifiers already present at the destination.
	Existing []string
}

// MigrationResult is produced only after the destination transaction commits.
type MigrationResult struct {
	RunID   string   `json:"run_id,omitempty"`
	Count   int      `json:"count"`
	Skipped []string `json:"skipped,omitempty"`
}

// ArchiveConfig provides configuration for creating an archive writer.
type ArchiveConfig struct {
	// Type is the archive format: arrow, parquet or json.
	Type string

	// Path is the file the archive is written to.
	Path string
}

// Archiver persists a snapshot of rows about to be deleted from the source.
type Archiver interface {
	// Archive writes rows and returns the location it wrote to.
	Archive(ctx context.Context, runID string, rows *RowSet) (string, error)
}
