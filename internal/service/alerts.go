package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"pricewatcher/internal/alerting"
	"pricewatcher/internal/chain"
)

// EvaluateAlerts compares the latest price against every registration for a
// chain and builds one notification request per satisfied threshold. The
// comparison is inclusive: a price exactly equal to the threshold fires.
//
// Evaluation is stateless. A registration that fired on the previous cycle
// fires again on every cycle where the condition still holds; there is no
// de-duplication or acknowledgment, which is the intended behaviour.
func (s *Service) EvaluateAlerts(ctx context.Context, c chain.Chain, latestPrice decimal.Decimal) ([]alerting.Request, error) {
	registrations, err := s.registry.ListAlertRegistrationsByChain(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("list alert registrations for %s: %w", c, err)
	}

	requests := make([]alerting.Request, 0, len(registrations))
	for _, reg := range registrations {
		if latestPrice.LessThan(reg.ThresholdDollar) {
			s.logger.Debug().Str("chain", c.String()).
				Str("price", latestPrice.String()).
				Str("threshold", reg.ThresholdDollar.String()).
				Msg("alert not triggered")
			continue
		}

		requests = append(requests, alerting.Request{
			To:      reg.Email,
			Subject: fmt.Sprintf("Price Alert for %s", c),
			Body: fmt.Sprintf(
				"The price of %s has reached or exceeded %s USD. Current price: %s USD.",
				c, reg.ThresholdDollar, latestPrice,
			),
		})
	}

	return requests, nil
}
