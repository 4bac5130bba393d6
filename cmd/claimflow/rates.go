package main

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"claimflow/tax"
)

func ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Inspect or change the tax rate table",
	}
	cmd.AddCommand(ratesGetCmd())
	cmd.AddCommand(ratesSetCmd())
	return cmd
}

func ratesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current state and federal rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rate, err := a.Taxes.CurrentRate(cmd.Context())
			if err != nil {
				return err
			}
			printRate(cmd.OutOrStdout(), rate)
			return nil
		},
	}
}

func ratesSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set [state-rate] [federal-rate]",
		Short: "Append a new current rate, e.g. rates set 0.02 0.006",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("state rate: %w", err)
			}
			federal, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("federal rate: %w", err)
			}

			a, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			by, _ := cmd.Flags().GetString("by")
			rate, err := a.Taxes.SetRate(cmd.Context(), state, federal, by)
			if err != nil {
				return err
			}
			printRate(cmd.OutOrStdout(), rate)
			return nil
		},
	}
	cmd.Flags().String("by", "cli", "recorded as updated_by")
	return cmd
}

func printRate(w io.Writer, rate tax.Rate) {
	fmt.Fprintf(w, "state=%s federal=%s updated_by=%s updated_at=%s\n",
		rate.StateRate.String(), rate.FederalRate.String(), rate.UpdatedBy, rate.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
}
