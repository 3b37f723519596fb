package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
	"pricewatcher/internal/service"
	"pricewatcher/internal/storage"
)

type fakePriceReader struct {
	buckets []service.HourlyBucket
	quote   service.SwapQuote
	err     error
}

func (f *fakePriceReader) HourlyPrices(context.Context, chain.Chain) ([]service.HourlyBucket, error) {
	return f.buckets, f.err
}

func (f *fakePriceReader) CalculateSwapRate(context.Context, decimal.Decimal) (service.SwapQuote, error) {
	return f.quote, f.err
}

type fakeRegistry struct {
	regs []storage.AlertRegistration
	err  error
}

func (f *fakeRegistry) InsertAlertRegistration(_ context.Context, reg storage.AlertRegistration) (storage.AlertRegistration, error) {
	if f.err != nil {
		return storage.AlertRegistration{}, f.err
	}
	reg.ID = int64(len(f.regs) + 1)
	reg.CreatedAt = time.Now().UTC()
	f.regs = append(f.regs, reg)
	return reg, nil
}

func (f *fakeRegistry) ListAlertRegistrationsByChain(_ context.Context, c chain.Chain) ([]storage.AlertRegistration, error) {
	if f.err != nil {
		return nil, f.err
	}
	matched := make([]storage.AlertRegistration, 0)
	for _, reg := range f.regs {
		if reg.Chain == c {
			matched = append(matched, reg)
		}
	}
	return matched, nil
}

func TestHourlyPricesRejectsUnknownChain(t *testing.T) {
	handler := HourlyPrices(&fakePriceReader{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/price/hourly?chain=solana", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHourlyPricesEmptyChainReturnsEmptyArray(t *testing.T) {
	handler := HourlyPrices(&fakePriceReader{buckets: []service.HourlyBucket{}}, zerolog.Nop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/price/hourly?chain=ethereum", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty JSON array, got %q", got)
	}
}

func TestSwapRateValidatesAmount(t *testing.T) {
	handler := SwapRate(&fakePriceReader{}, zerolog.Nop())

	for _, query := range []string{"", "ethAmount=abc", "ethAmount=-1", "ethAmount=0"} {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/price/swap-rate?"+query, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestSwapRateSuccess(t *testing.T) {
	reader := &fakePriceReader{quote: service.SwapQuote{
		BTC:    decimal.NewFromFloat(0.485),
		FeeEth: decimal.NewFromFloat(0.3),
		FeeUsd: decimal.NewFromInt(600),
	}}
	handler := SwapRate(reader, zerolog.Nop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/price/swap-rate?ethAmount=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["btc"] != "0.485" || body["feeEth"] != "0.3" || body["feeUsd"] != "600" {
		t.Fatalf("unexpected quote body: %v", body)
	}
}

func TestSwapRateUpstreamFailure(t *testing.T) {
	handler := SwapRate(&fakePriceReader{err: errors.New("provider down")}, zerolog.Nop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/price/swap-rate?ethAmount=1", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestCreateAlertValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"unknown chain", `{"chain":"solana","dollar":100,"email":"a@example.com"}`},
		{"non-positive dollar", `{"chain":"ethereum","dollar":0,"email":"a@example.com"}`},
		{"bad email", `{"chain":"ethereum","dollar":100,"email":"not-an-email"}`},
	}

	for _, tc := range cases {
		registry := &fakeRegistry{}
		handler := CreateAlert(registry, zerolog.Nop())

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(tc.body)))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
		if len(registry.regs) != 0 {
			t.Fatalf("%s: nothing should be saved", tc.name)
		}
	}
}

func TestCreateAlertSuccess(t *testing.T) {
	registry := &fakeRegistry{}
	handler := CreateAlert(registry, zerolog.Nop())

	body := `{"chain":"0x89","dollar":1000,"email":"user@example.com"}`
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/alerts", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(registry.regs) != 1 {
		t.Fatalf("expected one saved registration, got %d", len(registry.regs))
	}
	saved := registry.regs[0]
	if saved.Chain != chain.Polygon {
		t.Fatalf("hex chain id should resolve to polygon, got %v", saved.Chain)
	}
	if !saved.ThresholdDollar.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("threshold mismatch: %s", saved.ThresholdDollar)
	}
}

func TestListAlertsFiltersByChain(t *testing.T) {
	registry := &fakeRegistry{regs: []storage.AlertRegistration{
		{ID: 1, Chain: chain.Ethereum, ThresholdDollar: decimal.NewFromInt(10), Email: "a@example.com"},
		{ID: 2, Chain: chain.Polygon, ThresholdDollar: decimal.NewFromInt(20), Email: "b@example.com"},
	}}
	handler := ListAlerts(registry, zerolog.Nop())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/alerts?chain=ethereum", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var views []alertView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(views) != 1 || views[0].Email != "a@example.com" {
		t.Fatalf("unexpected listing: %+v", views)
	}
}
