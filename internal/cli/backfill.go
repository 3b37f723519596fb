package cli

import (
	"github.com/spf13/cobra"

	"pricewatcher/internal/app"
)

var backfillChain string

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Seed the last 24 hours of hourly prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.BackfillOptions{
			Chain: backfillChain,
		}
		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillChain, "chain", "", "Backfill a single chain (defaults to all configured chains)")
}
