package migration

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/TFMV/kirby/integrations"
	"github.com/TFMV/kirby/pkg/core"
)

// ValidateTable checks that table is a base table on conn. Names match exactly.
func ValidateTable(ctx context.Context, table string, conn integrations.Connection) (core.TableHandle, error) {
	ok, err := conn.TableExists(ctx, table)
	if err != nil {
		return core.TableHandle{}, queryError(conn.Name(), fmt.Errorf("table lookup: %w", err))
	}
	if !ok {
		return core.TableHandle{}, tableMissingError(conn.Name(), table)
	}
	return core.TableHandle{Name: table, Endpoint: conn.Name()}, nil
}

// ValidateTables checks both endpoints concurrently; either missing table fails.
func ValidateTables(ctx context.Context, table string, src, dst integrations.Connection) (source, destination core.TableHandle, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := ValidateTable(gctx, table, src)
		source = h
		return err
	})
	g.Go(func() error {
		h, err := ValidateTable(gctx, table, dst)
		destination = h
		return err
	})
	if err := g.Wait(); err != nil {
		return core.TableHandle{}, core.TableHandle{}, err
	}
	return source, destination, nil
}
