package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
)

// HourlyBucket aggregates one hour of price samples. Buckets tile the
// trailing 24-hour window; hours without samples are omitted from the output
// rather than zero-filled.
type HourlyBucket struct {
	StartTime time.Time         `json:"startTime"`
	EndTime   time.Time         `json:"endTime"`
	MinPrice  decimal.Decimal   `json:"minPrice"`
	MaxPrice  decimal.Decimal   `json:"maxPrice"`
	AvgPrice  decimal.Decimal   `json:"avgPrice"`
	Prices    []decimal.Decimal `json:"prices"`
}

// HourlyPrices partitions the trailing 24 hours of a chain's samples into 24
// contiguous one-hour buckets aligned to now-24h, computing min, max, and
// mean per non-empty bucket. A chain with no samples yields an empty slice.
func (s *Service) HourlyPrices(ctx context.Context, c chain.Chain) ([]HourlyBucket, error) {
	since := s.now().UTC().Add(-24 * time.Hour)
	points, err := s.store.ListPricePointsSince(ctx, c, since)
	if err != nil {
		return nil, fmt.Errorf("list trailing-day prices for %s: %w", c, err)
	}

	buckets := make([]HourlyBucket, 0, 24)
	idx := 0
	for hour := 0; hour < 24; hour++ {
		start := since.Add(time.Duration(hour) * time.Hour)
		end := start.Add(time.Hour)

		samples := make([]decimal.Decimal, 0)
		for idx < len(points) && points[idx].Timestamp.Before(end) {
			if !points[idx].Timestamp.Before(start) {
				samples = append(samples, points[idx].Price)
			}
			idx++
		}

		if len(samples) == 0 {
			continue
		}

		min, max, sum := samples[0], samples[0], decimal.Zero
		for _, price := range samples {
			if price.LessThan(min) {
				min = price
			}
			if price.GreaterThan(max) {
				max = price
			}
			sum = sum.Add(price)
		}

		buckets = append(buckets, HourlyBucket{
			StartTime: start,
			EndTime:   end,
			MinPrice:  min,
			MaxPrice:  max,
			AvgPrice:  sum.Div(decimal.NewFromInt(int64(len(samples)))),
			Prices:    samples,
		})
	}

	return buckets, nil
}
