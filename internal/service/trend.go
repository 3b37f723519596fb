package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
)

// TrendResult captures the percentage change between a chain's most recent
// price and the price from one hour prior. When the window holds no usable
// comparison the result carries InsufficientData and a zero percentage; the
// caller treats that as "skip", never as a failure.
type TrendResult struct {
	Chain            chain.Chain
	LatestPrice      decimal.Decimal
	OneHourOldPrice  decimal.Decimal
	PercentageChange decimal.Decimal
	InsufficientData bool
}

// ComputeChange reads the trailing hour of price points for a chain and
// derives the relative change (latest - old) / old.
func (s *Service) ComputeChange(ctx context.Context, c chain.Chain) (TrendResult, error) {
	result := TrendResult{Chain: c, InsufficientData: true}

	since := s.now().UTC().Add(-time.Hour)
	points, err := s.store.ListPricePointsSince(ctx, c, since)
	if err != nil {
		return result, fmt.Errorf("list trailing-hour prices for %s: %w", c, err)
	}
	if len(points) == 0 {
		return result, nil
	}

	result.LatestPrice = points[len(points)-1].Price
	result.OneHourOldPrice = points[0].Price

	if result.OneHourOldPrice.IsZero() {
		// No meaningful base for a relative change; keep the zero percentage.
		return result, nil
	}

	result.InsufficientData = false
	result.PercentageChange = result.LatestPrice.Sub(result.OneHourOldPrice).Div(result.OneHourOldPrice)
	return result, nil
}
