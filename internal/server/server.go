package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pricewatcher/internal/config"
	"pricewatcher/internal/storage"
)

// Server exposes the consumer-facing read API and operational endpoints.
type Server struct {
	httpServer      *http.Server
	logger          zerolog.Logger
	shutdownTimeout time.Duration
}

// New wires the router and handlers.
func New(cfg config.ServerConfig, prices PriceReader, registry storage.AlertRegistry, logger zerolog.Logger) *Server {
	serverLogger := logger.With().Str("component", "http_server").Logger()

	r := chi.NewRouter()
	r.Use(Recover(serverLogger))
	r.Use(RequestLogger(serverLogger))
	r.Use(Metrics())
	r.Use(CORS())

	r.Get("/healthz", Health())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/price", func(r chi.Router) {
		r.Get("/hourly", HourlyPrices(prices, serverLogger))
		r.Get("/swap-rate", SwapRate(prices, serverLogger))
	})
	r.Route("/alerts", func(r chi.Router) {
		r.Post("/", CreateAlert(registry, serverLogger))
		r.Get("/", ListAlerts(registry, serverLogger))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger:          serverLogger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return <-errCh
}
