package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"pricewatcher/internal/alerting"
	"pricewatcher/internal/chain"
	"pricewatcher/internal/config"
	"pricewatcher/internal/fetcher"
	"pricewatcher/internal/scheduler"
	"pricewatcher/internal/server"
	"pricewatcher/internal/service"
	"pricewatcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher(targets []config.Target) (fetcher.PriceFetcher, error) {
	switch a.Config.Source.Provider {
	case "moralis":
		return fetcher.NewMoralis(fetcher.MoralisOptions{
			BaseURL: a.Config.Source.Moralis.BaseURL,
			APIKey:  a.Config.Source.Moralis.APIKey,
			Timeout: a.Config.Source.Moralis.RequestTimeout,
		}, a.Logger), nil
	case "onchain":
		feeds := make(map[chain.Chain]string, len(targets))
		for _, target := range targets {
			if target.FeedAddress != "" {
				feeds[target.Chain] = target.FeedAddress
			}
		}
		return fetcher.NewOnchain(fetcher.OnchainOptions{
			RPCURL:  a.Config.Source.Onchain.RPCURL,
			Feeds:   feeds,
			Timeout: a.Config.Source.Onchain.RequestTimeout,
		}, a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown source provider %q", a.Config.Source.Provider)
	}
}

func (a *App) newNotifier() (alerting.Notifier, error) {
	if !a.Config.Alerting.Enabled {
		return nil, nil
	}
	smtp := a.Config.SMTP
	return alerting.NewSMTPNotifier(alerting.SMTPOptions{
		Host:     smtp.Host,
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     smtp.From,
		Timeout:  smtp.Timeout,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running service: the HTTP API plus one sampling loop
// per configured chain.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	targets, err := a.Config.Targets()
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
	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		a.Logger.Warn().Msg("alerting disabled; notifications will not be sent")
	}

	// Seed each chain with the last day of hourly prices so trend analysis
	// and the hourly endpoint have history from the first cycle onwards.
	a.seedHistory(ctx, store, priceFetcher, targets)

	svc := service.New(a.Config, targets, store, store, priceFetcher, notifier, a.Logger)

	srv := server.New(a.Config.Server, svc, store, a.Logger)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			select {
			case errCh <- err:
			default:
			}
			cancel()
		}
	}()

	for _, target := range targets {
		c := target.Chain
		sched := scheduler.New(c.String(), scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sched.Run(ctx, func(jobCtx context.Context) error {
				_, err := svc.RunCycle(jobCtx, c)
				return err
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Str("chain", c.String()).Msg("sampling loop terminated")
			}
		}()
	}

	a.Logger.Info().Int("chains", len(targets)).Msg("price watcher started")

	wg.Wait()

	select {
	case err := <-errCh:
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	default:
	}

	a.Logger.Info().Msg("price watcher stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Chain string
	Limit int
}

// ExportOptions hold parameters for exporting hourly statistics.
type ExportOptions struct {
	Chain     string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	Chain string
}
