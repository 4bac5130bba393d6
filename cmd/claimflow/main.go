package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"claimflow/app"
	"claimflow/config"
	"claimflow/logging"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "claimflow",
		Short:         "Unemployment claim workflow: status tracking, employer verification, tax calculation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file (default $CLAIMFLOW_CONFIG)")

	root.AddCommand(serveCmd())
	root.AddCommand(relayCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(ratesCmd())
	return root
}

// bootstrap loads configuration and builds the application for a command.
func bootstrap(cmd *cobra.Command) (*app.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return app.Build(cmd.Context(), cfg, log.WithField("component", cmd.Name()))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
