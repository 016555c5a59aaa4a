package migration

import (
	"context"
	"fmt"

	"github.com/TFMV/kirby/integrations"
	"github.com/TFMV/kirby/pkg/core"
)

// Resolve reconciles the requested identifiers with both databases.
//
// Every identifier must exist at the source. Identifiers already at the
// destination abort the migration when safe is set; otherwise they are left
// out of Resolved and reported in Existing.
func Resolve(ctx context.Context, table, key string, identifiers []string, src, dst integrations.Connection, safe bool) (core.ConflictReport, error) {
	found, err := src.CountKeys(ctx, table, key, identifiers)
	if err != nil {
		return core.ConflictReport{}, queryError(src.Name(), fmt.Errorf("count source rows: %w", err))
	}
	if missing := len(identifiers) - int(found); missing != 0 {
		return core.ConflictReport{}, countMismatchError(table, missing)
	}

	existing, err := dst.ExistingKeys(ctx, table, key, identifiers)
	if err != nil {
		return core.ConflictReport{}, queryError(dst.Name(), fmt.Errorf("query destination rows: %w", err))
	}

	// Report existing ids in request order.
	present := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		present[id] = struct{}{}
	}
	report := core.ConflictReport{Resolved: make([]string, 0, len(identifiers))}
	for _, id := range identifiers {
		if _, ok := present[id]; ok {
			report.Existing = append(report.Existing, id)
			continue
		}
		report.Resolved = append(report.Resolved, id)
	}

	if safe && len(report.Existing) > 0 {
		return core.ConflictReport{}, conflictError(table, report.Existing)
	}
	return report, nil
}
