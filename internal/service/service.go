package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/alerting"
	"pricewatcher/internal/chain"
	"pricewatcher/internal/config"
	"pricewatcher/internal/fetcher"
	"pricewatcher/internal/metrics"
	"pricewatcher/internal/storage"
)

// Service orchestrates sampling, analysis, and alert dispatch for the
// monitored chains.
type Service struct {
	store    storage.PricePointStore
	registry storage.AlertRegistry
	fetcher  fetcher.PriceFetcher
	notifier alerting.Notifier
	logger   zerolog.Logger

	assets         map[chain.Chain]string
	trendThreshold decimal.Decimal
	operatorEmail  string
	alertsOn       bool

	feeRate   decimal.Decimal
	swapBase  string
	swapQuote string
	swapChain chain.Chain

	now func() time.Time
}

// CycleReport summarises one sampling cycle.
type CycleReport struct {
	Chain               chain.Chain
	Price               decimal.Decimal
	TrendNotified       bool
	ThresholdMatches    int
	NotificationsSent   int
	NotificationsFailed int
}

// New constructs the monitoring service.
func New(cfg *config.Config, targets []config.Target, store storage.PricePointStore, registry storage.AlertRegistry, priceFetcher fetcher.PriceFetcher, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	assets := make(map[chain.Chain]string, len(targets))
	for _, target := range targets {
		assets[target.Chain] = target.AssetAddress
	}

	swapChain, err := chain.Parse(cfg.Swap.PricingChain)
	if err != nil {
		swapChain = chain.Ethereum
	}

	return &Service{
		store:          store,
		registry:       registry,
		fetcher:        priceFetcher,
		notifier:       notifier,
		logger:         logger.With().Str("component", "service").Logger(),
		assets:         assets,
		trendThreshold: decimal.NewFromFloat(cfg.Alerting.TrendThreshold),
		operatorEmail:  cfg.Alerting.OperatorEmail,
		alertsOn:       cfg.Alerting.Enabled,
		feeRate:        decimal.NewFromFloat(cfg.Swap.FeeRate),
		swapBase:       cfg.Swap.BaseAsset,
		swapQuote:      cfg.Swap.QuoteAsset,
		swapChain:      swapChain,
		now:            time.Now,
	}
}

// RunCycle executes one sampling cycle for a chain: fetch the current price,
// persist it, then run trend detection and threshold evaluation. A fetch or
// persistence failure aborts the cycle; every later stage is isolated, so a
// failure there is logged and the remaining stages still run.
func (s *Service) RunCycle(ctx context.Context, c chain.Chain) (CycleReport, error) {
	report := CycleReport{Chain: c}
	started := s.now()
	defer func() {
		metrics.CycleDuration.WithLabelValues(c.String()).Observe(time.Since(started).Seconds())
	}()

	address, ok := s.assets[c]
	if !ok {
		metrics.CyclesTotal.WithLabelValues(c.String(), "error").Inc()
		return report, fmt.Errorf("no asset address configured for chain %s", c)
	}

	price, err := s.fetcher.FetchCurrentPrice(ctx, c, address)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues(c.String(), "error").Inc()
		return report, fmt.Errorf("fetch current price for %s (%s): %w", c, address, err)
	}
	report.Price = price

	point := storage.PricePoint{Chain: c, Price: price, Timestamp: s.now().UTC()}
	if err := s.store.InsertPricePoint(ctx, point); err != nil {
		metrics.CyclesTotal.WithLabelValues(c.String(), "error").Inc()
		return report, fmt.Errorf("persist price point for %s: %w", c, err)
	}

	s.logger.Info().Str("chain", c.String()).Str("price", price.String()).Msg("price sampled")

	s.runTrendStage(ctx, c, &report)
	s.runThresholdStage(ctx, c, price, &report)

	metrics.CyclesTotal.WithLabelValues(c.String(), "ok").Inc()
	return report, nil
}

func (s *Service) runTrendStage(ctx context.Context, c chain.Chain, report *CycleReport) {
	trend, err := s.ComputeChange(ctx, c)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", c.String()).Msg("trend analysis failed")
		return
	}
	if trend.InsufficientData {
		s.logger.Debug().Str("chain", c.String()).Msg("insufficient data for trend comparison")
		return
	}

	if !trend.PercentageChange.GreaterThan(s.trendThreshold) {
		s.logger.Debug().Str("chain", c.String()).
			Str("change", trend.PercentageChange.String()).
			Msg("price change below significant-increase threshold")
		return
	}

	s.logger.Info().Str("chain", c.String()).
		Str("latest", trend.LatestPrice.String()).
		Str("one_hour_old", trend.OneHourOldPrice.String()).
		Str("change", trend.PercentageChange.String()).
		Msg("significant price increase detected")

	if !s.alertsOn || s.notifier == nil || s.operatorEmail == "" {
		return
	}

	req := alerting.Request{
		To:      s.operatorEmail,
		Subject: fmt.Sprintf("Price Alert: Significant Increase for %s", c),
		Body: fmt.Sprintf(
			"The price of %s has increased by more than %s%% in the last hour. Current price: %s USD.",
			c, s.trendThreshold.Mul(decimal.NewFromInt(100)), trend.LatestPrice,
		),
	}
	if err := s.notifier.Send(ctx, req); err != nil {
		metrics.NotificationsFailedTotal.WithLabelValues(c.String(), "trend").Inc()
		s.logger.Error().Err(err).Str("chain", c.String()).Msg("failed to notify operator of price increase")
		return
	}
	metrics.NotificationsSentTotal.WithLabelValues(c.String(), "trend").Inc()
	report.TrendNotified = true
}

func (s *Service) runThresholdStage(ctx context.Context, c chain.Chain, price decimal.Decimal, report *CycleReport) {
	requests, err := s.EvaluateAlerts(ctx, c, price)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", c.String()).Msg("alert evaluation failed")
		return
	}
	report.ThresholdMatches = len(requests)

	if !s.alertsOn || s.notifier == nil {
		return
	}

	// One failed send must not prevent the remaining recipients from being
	// notified.
	for _, req := range requests {
		if err := s.notifier.Send(ctx, req); err != nil {
			report.NotificationsFailed++
			metrics.NotificationsFailedTotal.WithLabelValues(c.String(), "threshold").Inc()
			s.logger.Error().Err(err).Str("chain", c.String()).Str("to", req.To).Msg("failed to send threshold alert")
			continue
		}
		report.NotificationsSent++
		metrics.NotificationsSentTotal.WithLabelValues(c.String(), "threshold").Inc()
	}
}
