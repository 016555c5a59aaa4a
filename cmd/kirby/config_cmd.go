package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateConfigCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Resolve and validate the Kirby configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "environment: %s\n", cfg.Environment)
			fmt.Fprintf(out, "master:      %s@%s:%d/%s\n", cfg.Master.User, cfg.Master.Host, cfg.Master.Port, cfg.Master.DBName)
			fmt.Fprintf(out, "slave:       %s@%s:%d/%s\n", cfg.Slave.User, cfg.Slave.Host, cfg.Slave.Port, cfg.Slave.DBName)
			fmt.Fprintf(out, "key column:  %s\n", cfg.KeyColumn)
			if cfg.Archive.Enabled() {
				fmt.Fprintf(out, "archive:     %s in %s\n", cfg.Archive.Format, cfg.Archive.Dir)
			}
			fmt.Fprintln(out, "configuration is valid")
			return nil
		},
	}
}
