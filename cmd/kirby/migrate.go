package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/TFMV/kirby/migration"
	"github.com/TFMV/kirby/pkg/core"
	"github.com/TFMV/kirby/report"
)

// MigrateOptions are the flags of the migrate command.
type MigrateOptions struct {
	Table      string
	UUIDs      string
	Clone      bool
	Safe       bool
	ReportPath string
}

func newMigrateCommand(global *globalOptions) *cobra.Command {
	options := &MigrateOptions{Clone: true, Safe: true}

	cmd := &cobra.Command{
		Use:   "migrate --table TABLE --uuids ID[,ID...]",
		Short: "Copy or move rows from the master to the slave database",
		Long: `The migrate command copies the rows whose id is listed in --uuids from the
master table to the slave table of the same name.

- --clone=false deletes the rows from the master after they are committed on the slave
- --safe=false skips ids that already exist on the slave instead of failing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := core.NewMigrationRequest(options.Table, core.SplitIdentifiers(options.UUIDs), options.Clone, options.Safe)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, global)
			if err != nil {
				return err
			}
			defer rt.Close()
			if options.ReportPath != "" {
				rt.migrator.Store = &report.FileStore{Path: options.ReportPath}
			}

			return runMigrate(ctx, cmd.OutOrStdout(), rt.migrator, req)
		},
	}

	cmd.Flags().StringVarP(&options.Table, "table", "t", "", "table to migrate (same name on both databases)")
	cmd.Flags().StringVarP(&options.UUIDs, "uuids", "u", "", "comma-separated identifiers")
	cmd.Flags().BoolVar(&options.Clone, "clone", options.Clone, "keep rows at the master")
	cmd.Flags().BoolVar(&options.Safe, "safe", options.Safe, "fail if any id already exists at the slave")
	cmd.Flags().StringVarP(&options.ReportPath, "report", "r", "", "write a run report (.json or .html)")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("uuids")

	return cmd
}

type requestMigrator interface {
	Migrate(ctx context.Context, req core.MigrationRequest) (core.MigrationResult, error)
}

// runMigrate executes req and prints the result as JSON.
func runMigrate(ctx context.Context, out io.Writer, m requestMigrator, req core.MigrationRequest) error {
	stop := startSpinner(fmt.Sprintf(" Migrating %d rows of %s", len(req.Identifiers()), req.Table()))
	result, err := m.Migrate(ctx, req)
	stop()

	if err != nil {
		var me *migration.Error
		if errors.As(err, &me) && me.Changed() {
			return fmt.Errorf("%w (rows %v exist in both databases; delete them from the master manually)", err, me.Identifiers)
		}
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// startSpinner shows progress on an interactive terminal and returns a stop
// function. It is a no-op otherwise.
func startSpinner(suffix string) func() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}
