package app

import (
	"context"
	"fmt"

	"pricewatcher/internal/chain"
	"pricewatcher/internal/config"
	"pricewatcher/internal/fetcher"
	"pricewatcher/internal/metrics"
	"pricewatcher/internal/storage"
)

// Backfill seeds each configured chain with the last 24 hours of prices. The
// existing points for a chain are replaced so the history starts from a clean
// hourly series. A chain that fails to backfill is logged and skipped; the
// remaining chains still run.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	targets, err := a.Config.Targets()
	if err != nil {
		return err
	}
	targets, err = filterTargets(targets, opts.Chain)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	priceFetcher, err := a.newFetcher(targets)
	if err != nil {
		return err
	}

	failed := 0
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := a.backfillChain(ctx, store, priceFetcher, target); err != nil {
			failed++
			a.Logger.Error().Err(err).Str("chain", target.Chain.String()).Msg("backfill failed")
		}
	}

	if failed > 0 {
		return fmt.Errorf("backfill failed for %d of %d chains", failed, len(targets))
	}
	a.Logger.Info().Int("chains", len(targets)).Msg("backfill complete")
	return nil
}

// seedHistory backfills every target before the sampling loops start. A chain
// that cannot be seeded keeps its existing points; the failure is logged and
// the remaining chains still run.
func (a *App) seedHistory(ctx context.Context, store storage.PricePointStore, priceFetcher fetcher.PriceFetcher, targets []config.Target) {
	for _, target := range targets {
		if err := a.backfillChain(ctx, store, priceFetcher, target); err != nil {
			a.Logger.Error().Err(err).Str("chain", target.Chain.String()).Msg("startup backfill failed")
		}
	}
}

func (a *App) backfillChain(ctx context.Context, store storage.PricePointStore, priceFetcher fetcher.PriceFetcher, target config.Target) error {
	history, err := priceFetcher.FetchHourlyHistory(ctx, target.Chain, target.AssetAddress)
	if err != nil {
		return fmt.Errorf("fetch hourly history: %w", err)
	}
	// The history is best-effort; a provider with nothing to offer is not a
	// failure, and the existing points must stay untouched.
	if len(history) == 0 {
		a.Logger.Info().Str("chain", target.Chain.String()).Msg("no historical prices available; skipping backfill")
		return nil
	}

	if err := store.ClearPricePoints(ctx, target.Chain); err != nil {
		return fmt.Errorf("clear existing points: %w", err)
	}

	points := make([]storage.PricePoint, 0, len(history))
	for _, h := range history {
		points = append(points, storage.PricePoint{
			Chain:     target.Chain,
			Price:     h.Price,
			Timestamp: h.Timestamp.UTC(),
		})
	}
	if err := store.InsertPricePoints(ctx, points); err != nil {
		return fmt.Errorf("insert points: %w", err)
	}

	metrics.BackfillPointsTotal.WithLabelValues(target.Chain.String()).Add(float64(len(points)))
	a.Logger.Info().Str("chain", target.Chain.String()).Int("points", len(points)).Msg("chain backfilled")
	return nil
}

func filterTargets(targets []config.Target, name string) ([]config.Target, error) {
	if name == "" {
		return targets, nil
	}
	c, err := chain.Parse(name)
	if err != nil {
		return nil, err
	}
	for _, target := range targets {
		if target.Chain == c {
			return []config.Target{target}, nil
		}
	}
	return nil, fmt.Errorf("chain %s is not configured", c)
}
