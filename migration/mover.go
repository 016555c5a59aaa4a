package migration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TFMV/kirby/integrations"
	"github.com/TFMV/kirby/pkg/core"
)

// Mover copies resolved rows to the destination and, in move mode, deletes them
// from the source.
//
// The source delete runs in its own transaction and is committed only after
// the destination commit succeeds. A failure in between leaves rows in both
// databases; it never loses them.
type Mover struct {
	Key      string
	Archiver core.Archiver
	Logger   *zap.Logger
}

// MoveOutcome is what the mover did.
type MoveOutcome struct {
	Count       int
	ArchivePath string
}

// Move runs the copy for ids. An empty fetch returns a zero count without
// opening a transaction.
func (m *Mover) Move(ctx context.Context, runID, table string, ids []string, src, dst integrations.Connection, clone bool) (MoveOutcome, error) {
	logger := m.logger().With(zap.String("run_id", runID), zap.String("table", table))

	if len(ids) == 0 {
		return MoveOutcome{}, nil
	}

	rows, err := src.FetchRows(ctx, table, m.Key, ids)
	if err != nil {
		return MoveOutcome{}, moveError(table, "failed to fetch source rows", err)
	}
	if rows.Len() == 0 {
		return MoveOutcome{}, nil
	}
	if rows.Len() != len(ids) {
		return MoveOutcome{}, moveError(table,
			fmt.Sprintf("fetched %d rows for %d uuids; source changed during migration", rows.Len(), len(ids)), nil)
	}

	dtx, err := dst.Begin(ctx)
	if err != nil {
		return MoveOutcome{}, moveError(table, "failed to begin destination transaction", err)
	}
	var stx integrations.Tx
	rollback := func() {
		// Rollback must run even when ctx is what failed.
		rctx := context.WithoutCancel(ctx)
		if err := dtx.Rollback(rctx); err != nil {
			logger.Warn("Destination rollback failed", zap.Error(err))
		}
		if stx != nil {
			if err := stx.Rollback(rctx); err != nil {
				logger.Warn("Source rollback failed", zap.Error(err))
			}
		}
	}

	inserted, err := dtx.InsertRows(ctx, rows)
	if err != nil {
		rollback()
		return MoveOutcome{}, moveError(table, "failed to insert rows at destination", err)
	}
	if inserted != int64(rows.Len()) {
		rollback()
		return MoveOutcome{}, moveError(table, fmt.Sprintf("inserted %d of %d rows", inserted, rows.Len()), nil)
	}
	logger.Debug("Rows inserted", zap.Int64("rows", inserted))

	var outcome MoveOutcome
	if !clone {
		if m.Archiver != nil {
			path, err := m.Archiver.Archive(ctx, runID, rows)
			if err != nil {
				rollback()
				return MoveOutcome{}, moveError(table, "failed to archive rows before delete", err)
			}
			outcome.ArchivePath = path
			logger.Info("Rows archived", zap.String("path", path))
		}

		stx, err = src.Begin(ctx)
		if err != nil {
			rollback()
			return MoveOutcome{}, moveError(table, "failed to begin source transaction", err)
		}
		deleted, err := stx.DeleteKeys(ctx, table, m.Key, ids)
		if err != nil {
			rollback()
			return MoveOutcome{}, moveError(table, "failed to delete rows at source", err)
		}
		if deleted != inserted {
			rollback()
			return MoveOutcome{}, moveError(table, fmt.Sprintf("deleted %d rows but inserted %d", deleted, inserted), nil)
		}
	}

	if err := dtx.Commit(ctx); err != nil {
		rollback()
		return MoveOutcome{}, moveError(table, "failed to commit destination transaction", err)
	}

	if stx != nil {
		if err := stx.Commit(ctx); err != nil {
			me := moveError(table, "rows committed at destination but source delete failed; rows exist in both databases", err)
			me.DestinationAhead = true
			me.Identifiers = ids
			return MoveOutcome{}, me
		}
	}

	outcome.Count = int(inserted)
	return outcome, nil
}

func (m *Mover) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
