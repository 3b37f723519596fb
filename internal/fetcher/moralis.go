package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
)

const backfillHours = 24

// MoralisOptions parameterise the Moralis REST fetcher.
type MoralisOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Moralis fetches token prices from the Moralis deep-index API.
type Moralis struct {
	opts    MoralisOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// NewMoralis constructs a Moralis fetcher.
func NewMoralis(opts MoralisOptions, logger zerolog.Logger) *Moralis {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://deep-index.moralis.io/api/v2.2"
	}

	return &Moralis{
		opts:    opts,
		logger:  logger.With().Str("component", "moralis_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		now:     time.Now,
	}
}

// FetchCurrentPrice retrieves the current USD price of a token.
func (m *Moralis) FetchCurrentPrice(ctx context.Context, c chain.Chain, address string) (decimal.Decimal, error) {
	if address == "" {
		return decimal.Decimal{}, errors.New("token address required")
	}
	return m.fetchTokenPrice(ctx, c, address, 0)
}

// FetchHourlyHistory retrieves up to 24 hourly samples for the trailing day.
// For each hour it resolves the block closest to the timestamp and reads the
// price at that block. Interval failures are skipped so a partial history is
// returned instead of an error.
func (m *Moralis) FetchHourlyHistory(ctx context.Context, c chain.Chain, address string) ([]HistoricalPrice, error) {
	if address == "" {
		return nil, errors.New("token address required")
	}

	now := m.now().UTC()
	prices := make([]HistoricalPrice, 0, backfillHours)

	for i := 0; i < backfillHours; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ts := now.Add(-time.Duration(i) * time.Hour)

		block, err := m.fetchBlockForDate(ctx, c, ts)
		if err != nil {
			m.logger.Warn().Err(err).Str("chain", c.String()).Time("ts", ts).Msg("skip interval: block lookup failed")
			continue
		}
		if block == 0 {
			continue
		}

		price, err := m.fetchTokenPrice(ctx, c, address, block)
		if err != nil {
			m.logger.Warn().Err(err).Str("chain", c.String()).Time("ts", ts).Uint64("block", block).Msg("skip interval: price lookup failed")
			continue
		}

		prices = append(prices, HistoricalPrice{Timestamp: ts, Price: price})
		m.logger.Debug().Str("chain", c.String()).Int("hour", backfillHours-i).Msg("synced trailing-day interval")
	}

	// Intervals were walked newest-first; flip to chronological order.
	for i, j := 0, len(prices)-1; i < j; i, j = i+1, j-1 {
		prices[i], prices[j] = prices[j], prices[i]
	}
	return prices, nil
}

func (m *Moralis) fetchTokenPrice(ctx context.Context, c chain.Chain, address string, toBlock uint64) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("chain", c.HexID())
	if toBlock > 0 {
		query.Set("to_block", strconv.FormatUint(toBlock, 10))
	}

	endpoint := fmt.Sprintf("%s/erc20/%s/price?%s", m.baseURL, address, query.Encode())

	var res tokenPriceResponse
	if err := m.getJSON(ctx, endpoint, &res); err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch token price for %s: %w", address, err)
	}

	return decimal.NewFromFloat(res.USDPrice), nil
}

func (m *Moralis) fetchBlockForDate(ctx context.Context, c chain.Chain, ts time.Time) (uint64, error) {
	query := url.Values{}
	query.Set("chain", c.HexID())
	query.Set("date", ts.Format(time.RFC3339))

	endpoint := fmt.Sprintf("%s/dateToBlock?%s", m.baseURL, query.Encode())

	var res dateToBlockResponse
	if err := m.getJSON(ctx, endpoint, &res); err != nil {
		return 0, fmt.Errorf("resolve block for %s: %w", ts.Format(time.RFC3339), err)
	}

	return res.Block, nil
}

func (m *Moralis) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if m.opts.APIKey != "" {
		req.Header.Set("X-API-Key", m.opts.APIKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payload)
	}

	return json.Unmarshal(payload, out)
}

type tokenPriceResponse struct {
	USDPrice     float64 `json:"usdPrice"`
	TokenSymbol  string  `json:"tokenSymbol"`
	TokenAddress string  `json:"tokenAddress"`
}

type dateToBlockResponse struct {
	Block     uint64 `json:"block"`
	Date      string `json:"date"`
	Timestamp uint64 `json:"timestamp"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("moralis api error (%d): %s", status, apiErr.Message)
	}
	if len(payload) > 0 {
		return fmt.Errorf("moralis api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("moralis api error (%d)", status)
}

var _ PriceFetcher = (*Moralis)(nil)
