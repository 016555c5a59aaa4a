package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------
// Domain Types & Metadata
// -----------------------------

// Mode distinguishes between copying and moving rows.
type Mode string

const (
	Clone Mode = "clone"
	Move  Mode = "move"
)

// ModeOf maps the clone flag of a request onto a Mode.
func ModeOf(clone bool) Mode {
	if clone {
		return Clone
	}
	return Move
}

// MigrationMetadata captures high-level context for a migration run.
type MigrationMetadata struct {
	RunID             string        `json:"run_id"`
	SourceDBName      string        `json:"source_db_name"`
	DestinationDBName string        `json:"destination_db_name"`
	Table             string        `json:"table"`
	KeyColumn         string        `json:"key_column"`
	Mode              Mode          `json:"mode"`
	Safe              bool          `json:"safe"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Duration          time.Duration `json:"duration"`
}

// MigrationReport aggregates the outcome of one migration.
type MigrationReport struct {
	Metadata         MigrationMetadata `json:"metadata"`
	Requested        int               `json:"requested"`
	Moved            int               `json:"moved"`
	Skipped          []string          `json:"skipped,omitempty"`
	ArchivePath      string            `json:"archive_path,omitempty"`
	Status           bool              `json:"status"`
	FinalState       string            `json:"final_state"`
	ErrorKind        string            `json:"error_kind,omitempty"`
	Message          string            `json:"message,omitempty"`
	DestinationAhead bool              `json:"destination_ahead,omitempty"`
}

// -----------------------------
// Metrics Storage
// -----------------------------

// MetricsStore abstracts migration report storage.
type MetricsStore interface {
	Save(run MigrationReport) error
	SaveWithContext(ctx context.Context, run MigrationReport) error
}

// JSONMetricsStore stores results as JSON.
type JSONMetricsStore struct {
	FilePath string
}

func (j *JSONMetricsStore) Save(run MigrationReport) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	if j.FilePath != "" {
		return os.WriteFile(j.FilePath, data, 0644)
	}
	fmt.Println(string(data))
	return nil
}

func (j *JSONMetricsStore) SaveWithContext(ctx context.Context, run MigrationReport) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return j.Save(run)
	}
}

// -----------------------------
// Counters
// -----------------------------

// Collector keeps process-wide migration counters. It is safe for concurrent use.
type Collector struct {
	started   atomic.Int64
	succeeded atomic.Int64
	moved     atomic.Int64
	skipped   atomic.Int64

	mu       sync.Mutex
	failures map[string]int64
	lastRun  time.Time
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{failures: make(map[string]int64)}
}

// RecordMigrationStart counts a new run.
func (c *Collector) RecordMigrationStart() {
	c.started.Add(1)
	c.mu.Lock()
	c.lastRun = time.Now().UTC()
	c.mu.Unlock()
}

// RecordMigrationSuccess counts a committed run.
func (c *Collector) RecordMigrationSuccess(moved, skipped int) {
	c.succeeded.Add(1)
	c.moved.Add(int64(moved))
	c.skipped.Add(int64(skipped))
}

// RecordMigrationFailure counts a failed run under its error kind.
func (c *Collector) RecordMigrationFailure(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[kind]++
}

// Snapshot is a point-in-time copy of a Collector.
type Snapshot struct {
	Started   int64            `json:"started"`
	Succeeded int64            `json:"succeeded"`
	RowsMoved int64            `json:"rows_moved"`
	Skipped   int64            `json:"skipped"`
	Failures  map[string]int64 `json:"failures"`
	LastRun   time.Time        `json:"last_run"`
}

// Snapshot copies the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	failures := make(map[string]int64, len(c.failures))
	for k, v := range c.failures {
		failures[k] = v
	}
	return Snapshot{
		Started:   c.started.Load(),
		Succeeded: c.succeeded.Load(),
		RowsMoved: c.moved.Load(),
		Skipped:   c.skipped.Load(),
		Failures:  failures,
		LastRun:   c.lastRun,
	}
}
