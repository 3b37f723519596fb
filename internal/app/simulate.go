package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
	"pricewatcher/internal/service"
)

// SimulateAlert evaluates the registered thresholds for a chain against a
// given price and sends the matching notifications. Nothing is persisted, so
// a simulation never disturbs the sampled history.
func (a *App) SimulateAlert(ctx context.Context, chainName string, price decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return errors.New("price must be greater than zero")
	}

	c, err := chain.Parse(chainName)
	if err != nil {
		return err
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}

	targets, err := a.Config.Targets()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.New(a.Config, targets, store, store, nil, notifier, a.Logger)

	requests, err := svc.EvaluateAlerts(ctx, c, price)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		a.Logger.Info().Str("chain", c.String()).Str("price", price.String()).Msg("no registered alerts match the simulated price")
		return nil
	}

	failed := 0
	for _, req := range requests {
		if err := notifier.Send(ctx, req); err != nil {
			failed++
			a.Logger.Error().Err(err).Str("to", req.To).Msg("simulated alert delivery failed")
			continue
		}
		a.Logger.Info().Str("to", req.To).Str("subject", req.Subject).Msg("simulated alert sent")
	}

	if failed > 0 {
		return errors.New("some simulated alerts failed to send; check the logs")
	}
	return nil
}
