// Package main is the entry point for the Kirby CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TFMV/kirby/version"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFile    string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "kirby",
		Short: "Kirby moves rows between two PostgreSQL databases",
		Long: `Kirby copies or moves rows, selected by identifier, from a table in the
master database to the table of the same name in the slave database.

Connection settings come from MASTER_PG_* and SLAVE_PG_* environment variables,
a .env file, or a YAML config file.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with local overrides")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "log file (default kirby.log)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of Kirby",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	})
	rootCmd.AddCommand(newMigrateCommand(opts))
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newArchiveCommand())
	rootCmd.AddCommand(newValidateConfigCommand(opts))

	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
