package fetcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
)

// HistoricalPrice is one hourly sample from the provider's backfill path.
type HistoricalPrice struct {
	Timestamp time.Time
	Price     decimal.Decimal
}

// PriceFetcher retrieves USD prices for a chain's canonical asset.
//
// FetchHourlyHistory is best-effort: it returns up to 24 hourly samples for
// the trailing day in chronological order; individual interval failures are
// skipped and a partial result is not an error.
type PriceFetcher interface {
	FetchCurrentPrice(ctx context.Context, c chain.Chain, address string) (decimal.Decimal, error)
	FetchHourlyHistory(ctx context.Context, c chain.Chain, address string) ([]HistoricalPrice, error)
}
