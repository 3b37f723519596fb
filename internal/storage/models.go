package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
)

// PricePoint is one timestamped USD price sample for a chain. Points are
// append-only and ordered by timestamp within a chain.
type PricePoint struct {
	Chain     chain.Chain
	Price     decimal.Decimal
	Timestamp time.Time
}

// AlertRegistration is a subscriber's standing request to be notified when a
// chain's price reaches a dollar threshold. The core never mutates or deletes
// registrations.
type AlertRegistration struct {
	ID              int64
	Chain           chain.Chain
	ThresholdDollar decimal.Decimal
	Email           string
	CreatedAt       time.Time
}
