package main

import (
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and the verification sweeper",
		Long: `Run every claimflow component in one process.

Examples:
  claimflow serve --addr :8080
  CLAIMFLOW_STORE_DRIVER=postgres DATABASE_URL=postgres://... claimflow serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				a.Config.Server.Addr = addr
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.Serve(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address, overrides server.addr")
	return cmd
}
