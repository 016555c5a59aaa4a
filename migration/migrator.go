// Package migration implements the row-migration protocol between a source
// and a destination database.
package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TFMV/kirby/integrations"
	"github.com/TFMV/kirby/metrics"
	"github.com/TFMV/kirby/pkg/core"
	"github.com/TFMV/kirby/report"
)

// DefaultKeyColumn is the column identifiers are matched against.
const DefaultKeyColumn = "id"

// State is a step of the migration state machine.
type State string

const (
	StateStart             State = "Start"
	StateConnected         State = "Connected"
	StateTablesValidated   State = "TablesValidated"
	StateConflictsResolved State = "ConflictsResolved"
	StateMoved             State = "Moved"
	StateFailed            State = "Failed"
	StateClosed            State = "Closed"
)

// Migrator sequences one migration per call to Migrate.
type Migrator struct {
	Integration integrations.Integration
	KeyColumn   string
	Archiver    core.Archiver

	// ReportDir, when set, receives one JSON report per run.
	ReportDir string

	// Logger for structured logging.
	Logger *zap.Logger

	// Metrics collector shared across runs.
	Metrics *metrics.Collector

	// Report generator used for ReportDir.
	JSONReportGenerator report.ReportGenerator

	// Store, when set, receives every run report.
	Store metrics.MetricsStore

	newRunID func() string
}

// NewMigrator constructs a Migrator over a source/destination pair.
func NewMigrator(integration integrations.Integration, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		Integration:         integration,
		KeyColumn:           DefaultKeyColumn,
		Logger:              logger,
		Metrics:             metrics.NewCollector(),
		JSONReportGenerator: &report.JSONReportGenerator{},
		newRunID:            func() string { return uuid.NewString() },
	}
}

// run carries the per-request state through the pipeline.
type run struct {
	id     string
	req    core.MigrationRequest
	state  State
	logger *zap.Logger
}

func (r *run) transition(s State) {
	r.logger.Debug("Migration state", zap.String("from", string(r.state)), zap.String("to", string(s)))
	r.state = s
}

// Migrate moves the requested rows. Connections are released on every path.
func (m *Migrator) Migrate(ctx context.Context, req core.MigrationRequest) (core.MigrationResult, error) {
	startTime := time.Now()
	r := &run{
		id:    m.runID(),
		req:   req,
		state: StateStart,
	}
	r.logger = m.Logger.With(zap.String("run_id", r.id), zap.String("table", req.Table()))
	r.logger.Info("Starting migration",
		zap.Int("uuids", len(req.Identifiers())),
		zap.Bool("clone", req.Clone()),
		zap.Bool("safe", req.Safe()))
	m.Metrics.RecordMigrationStart()

	result, archivePath, err := m.execute(ctx, r)
	if err != nil {
		r.transition(StateFailed)
	}
	r.transition(StateClosed)

	duration := time.Since(startTime)
	m.finish(r, result, archivePath, err, startTime, duration)
	if err != nil {
		return core.MigrationResult{}, err
	}
	return result, nil
}

// MigratePayload parses a JSON request body and migrates it. Parse failures are
// returned as RequestError without touching either database.
func (m *Migrator) MigratePayload(ctx context.Context, body []byte) (core.MigrationResult, error) {
	req, err := core.ParseRequest(body)
	if err != nil {
		m.Metrics.RecordMigrationFailure(string(KindRequest))
		return core.MigrationResult{}, requestError(err)
	}
	return m.Migrate(ctx, req)
}

func (m *Migrator) execute(ctx context.Context, r *run) (core.MigrationResult, string, error) {
	conns := NewConnections(m.Integration, r.logger)
	src, dst, err := conns.Open(ctx)
	if err != nil {
		return core.MigrationResult{}, "", err
	}
	defer conns.Close(ctx, src, dst)
	r.transition(StateConnected)

	table := r.req.Table()
	if _, _, err := ValidateTables(ctx, table, src, dst); err != nil {
		return core.MigrationResult{}, "", err
	}
	r.transition(StateTablesValidated)

	conflicts, err := Resolve(ctx, table, m.keyColumn(), r.req.Identifiers(), src, dst, r.req.Safe())
	if err != nil {
		return core.MigrationResult{}, "", err
	}
	if len(conflicts.Existing) > 0 {
		r.logger.Info("Skipping rows already at destination", zap.Strings("uuids", conflicts.Existing))
	}
	r.transition(StateConflictsResolved)

	mover := &Mover{Key: m.keyColumn(), Archiver: m.Archiver, Logger: r.logger}
	outcome, err := mover.Move(ctx, r.id, table, conflicts.Resolved, src, dst, r.req.Clone())
	if err != nil {
		return core.MigrationResult{}, "", err
	}
	r.transition(StateMoved)

	return core.MigrationResult{
		RunID:   r.id,
		Count:   outcome.Count,
		Skipped: conflicts.Existing,
	}, outcome.ArchivePath, nil
}

func (m *Migrator) finish(r *run, result core.MigrationResult, archivePath string, err error, start time.Time, duration time.Duration) {
	rep := metrics.MigrationReport{
		Metadata: metrics.MigrationMetadata{
			RunID:             r.id,
			SourceDBName:      m.Integration.Source().Name(),
			DestinationDBName: m.Integration.Destination().Name(),
			Table:             r.req.Table(),
			KeyColumn:         m.keyColumn(),
			Mode:              metrics.ModeOf(r.req.Clone()),
			Safe:              r.req.Safe(),
			StartTime:         start,
			EndTime:           start.Add(duration),
			Duration:          duration,
		},
		Requested:   len(r.req.Identifiers()),
		Moved:       result.Count,
		Skipped:     result.Skipped,
		ArchivePath: archivePath,
		Status:      err == nil,
		FinalState:  string(r.state),
	}

	if err != nil {
		rep.ErrorKind = string(KindOf(err))
		rep.Message = err.Error()
		var me *Error
		if errors.As(err, &me) {
			rep.DestinationAhead = me.DestinationAhead
		}
		m.Metrics.RecordMigrationFailure(rep.ErrorKind)
		fields := []zap.Field{zap.String("kind", rep.ErrorKind), zap.Duration("duration", duration), zap.Error(err)}
		if rep.DestinationAhead {
			r.logger.Error("Migration failed after destination commit; rows exist in both databases", fields...)
		} else {
			r.logger.Error("Migration failed; nothing changed", fields...)
		}
	} else {
		m.Metrics.RecordMigrationSuccess(result.Count, len(result.Skipped))
		r.logger.Info("Migration complete", zap.Int("count", result.Count), zap.Duration("duration", duration))
	}

	m.saveReport(r, rep)
}

func (m *Migrator) saveReport(r *run, rep metrics.MigrationReport) {
	if m.Store != nil {
		if err := m.Store.Save(rep); err != nil {
			r.logger.Warn("Failed to store migration report", zap.Error(err))
		}
	}
	if m.ReportDir == "" || m.JSONReportGenerator == nil {
		return
	}
	path := filepath.Join(m.ReportDir, r.id+".json")
	if err := m.JSONReportGenerator.SaveReportToFile(rep, path); err != nil {
		r.logger.Warn("Failed to save migration report", zap.String("path", path), zap.Error(err))
	}
	if rep.Status {
		return
	}
	alert, err := m.JSONReportGenerator.GenerateAlertNotification(rep)
	if err == nil {
		path = filepath.Join(m.ReportDir, r.id+".alert.json")
		err = os.WriteFile(path, alert, 0o644)
	}
	if err != nil {
		r.logger.Warn("Failed to save migration alert", zap.String("path", path), zap.Error(err))
	}
}

func (m *Migrator) keyColumn() string {
	if m.KeyColumn == "" {
		return DefaultKeyColumn
	}
	return m.KeyColumn
}

func (m *Migrator) runID() string {
	if m.newRunID == nil {
		return uuid.NewString()
	}
	return m.newRunID()
}
