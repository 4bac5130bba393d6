package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func relayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Deliver pending outbox messages to the downstream systems",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if once, _ := cmd.Flags().GetBool("once"); once {
				n, err := a.Relay.ProcessBatch(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "delivered %d message(s)\n", n)
				return nil
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			a.Log.Info("outbox relay started")
			return a.Relay.Run(ctx)
		},
	}
	cmd.Flags().Bool("once", false, "process a single batch and exit")
	return cmd
}
