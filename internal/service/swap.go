package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// SwapQuote is the result of a hypothetical ETH-to-BTC conversion at current
// prices, after the configured fee.
type SwapQuote struct {
	BTC    decimal.Decimal `json:"btc"`
	FeeEth decimal.Decimal `json:"feeEth"`
	FeeUsd decimal.Decimal `json:"feeUsd"`
}

// CalculateSwapRate quotes how much of the quote asset an amount of the base
// asset buys at current prices. The fee is taken in base-asset units before
// conversion. Fails if either price fetch fails.
func (s *Service) CalculateSwapRate(ctx context.Context, amount decimal.Decimal) (SwapQuote, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return SwapQuote{}, errors.New("swap amount must be greater than zero")
	}

	basePrice, err := s.fetcher.FetchCurrentPrice(ctx, s.swapChain, s.swapBase)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("fetch base asset price (%s): %w", s.swapBase, err)
	}

	quotePrice, err := s.fetcher.FetchCurrentPrice(ctx, s.swapChain, s.swapQuote)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("fetch quote asset price (%s): %w", s.swapQuote, err)
	}
	if quotePrice.IsZero() {
		return SwapQuote{}, errors.New("quote asset price is zero")
	}

	fee := amount.Mul(s.feeRate)
	feeUsd := fee.Mul(basePrice)
	btc := amount.Sub(fee).Mul(basePrice).Div(quotePrice)

	s.logger.Info().
		Str("amount", amount.String()).
		Str("btc", btc.String()).
		Str("fee_eth", fee.String()).
		Str("fee_usd", feeUsd.String()).
		Msg("calculated swap rate")

	return SwapQuote{BTC: btc, FeeEth: fee, FeeUsd: feeUsd}, nil
}
