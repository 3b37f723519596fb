package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateChain string
	simulatePrice float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Evaluate registered alerts against a hypothetical price",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateChain == "" {
			return errors.New("--chain is required")
		}
		if simulatePrice <= 0 {
			return errors.New("--price must be greater than 0")
		}

		price := decimal.NewFromFloat(simulatePrice)
		return getApp().SimulateAlert(cmd.Context(), simulateChain, price)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateChain, "chain", "", "Chain to simulate against")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Hypothetical price in USD")
}
