package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
	"pricewatcher/internal/service"
	"pricewatcher/internal/storage"
)

// PriceReader is the slice of the core service the read API needs.
type PriceReader interface {
	HourlyPrices(ctx context.Context, c chain.Chain) ([]service.HourlyBucket, error)
	CalculateSwapRate(ctx context.Context, amount decimal.Decimal) (service.SwapQuote, error)
}

// Health answers liveness probes.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// HourlyPrices serves the trailing-day hourly aggregation for a chain.
func HourlyPrices(prices PriceReader, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := chain.Parse(r.URL.Query().Get("chain"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chain")
			return
		}

		buckets, err := prices.HourlyPrices(r.Context(), c)
		if err != nil {
			logger.Error().Err(err).Str("chain", c.String()).Msg("hourly prices query failed")
			writeError(w, http.StatusInternalServerError, "failed to fetch hourly prices")
			return
		}

		writeJSON(w, http.StatusOK, buckets)
	}
}

// SwapRate quotes an ETH-to-BTC conversion at current prices.
func SwapRate(prices PriceReader, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("ethAmount")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "ethAmount required")
			return
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil || amount.LessThanOrEqual(decimal.Zero) {
			writeError(w, http.StatusBadRequest, "ethAmount must be a positive number")
			return
		}

		quote, err := prices.CalculateSwapRate(r.Context(), amount)
		if err != nil {
			logger.Error().Err(err).Str("amount", amount.String()).Msg("swap rate calculation failed")
			writeError(w, http.StatusBadGateway, "failed to calculate swap rate")
			return
		}

		writeJSON(w, http.StatusOK, quote)
	}
}

// CreateAlert registers a threshold notification request.
func CreateAlert(registry storage.AlertRegistry, logger zerolog.Logger) http.HandlerFunc {
	type request struct {
		Chain  string  `json:"chain"`
		Dollar float64 `json:"dollar"`
		Email  string  `json:"email"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		c, err := chain.Parse(req.Chain)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chain")
			return
		}
		if req.Dollar <= 0 {
			writeError(w, http.StatusBadRequest, "dollar must be greater than zero")
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			writeError(w, http.StatusBadRequest, "invalid email address")
			return
		}

		saved, err := registry.InsertAlertRegistration(r.Context(), storage.AlertRegistration{
			Chain:           c,
			ThresholdDollar: decimal.NewFromFloat(req.Dollar),
			Email:           req.Email,
		})
		if err != nil {
			logger.Error().Err(err).Str("chain", c.String()).Str("email", req.Email).Msg("failed to save alert registration")
			writeError(w, http.StatusInternalServerError, "failed to save alert")
			return
		}

		writeJSON(w, http.StatusCreated, registrationView(saved))
	}
}

// ListAlerts lists registrations for a chain.
func ListAlerts(registry storage.AlertRegistry, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := chain.Parse(r.URL.Query().Get("chain"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chain")
			return
		}

		regs, err := registry.ListAlertRegistrationsByChain(r.Context(), c)
		if err != nil {
			logger.Error().Err(err).Str("chain", c.String()).Msg("failed to list alert registrations")
			writeError(w, http.StatusInternalServerError, "failed to list alerts")
			return
		}

		views := make([]alertView, 0, len(regs))
		for _, reg := range regs {
			views = append(views, registrationView(reg))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

type alertView struct {
	ID        int64           `json:"id"`
	Chain     string          `json:"chain"`
	Dollar    decimal.Decimal `json:"dollar"`
	Email     string          `json:"email"`
	CreatedAt string          `json:"createdAt"`
}

func registrationView(reg storage.AlertRegistration) alertView {
	return alertView{
		ID:        reg.ID,
		Chain:     reg.Chain.String(),
		Dollar:    reg.ThresholdDollar,
		Email:     reg.Email,
		CreatedAt: reg.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
