package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TFMV/kirby/api"
)

func newServeCommand(global *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Kirby HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, global)
			if err != nil {
				return err
			}
			defer rt.Close()

			if cmd.Flags().Changed("port") {
				rt.cfg.Server.Port = port
			}
			server := api.NewServer(api.ServerOptions{
				Port:    strconv.Itoa(rt.cfg.Server.Port),
				Prefork: rt.cfg.Server.Prefork,
			}, rt.migrator, rt.migrator.Metrics, rt.log)
			return server.Start(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port (overrides server.port)")
	return cmd
}
