package main

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/cobra"

	"github.com/TFMV/kirby/pkg/archive"
)

func newArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Work with archives of moved rows",
	}

	var rows int
	inspect := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the schema and first rows of an .arrow or .parquet archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := archive.ReadTable(cmd.Context(), memory.NewGoAllocator(), args[0])
			if err != nil {
				return err
			}
			defer table.Release()
			archive.Print(cmd.OutOrStdout(), table, rows)
			return nil
		},
	}
	inspect.Flags().IntVarP(&rows, "rows", "n", 5, "number of rows to print")
	cmd.AddCommand(inspect)

	return cmd
}
