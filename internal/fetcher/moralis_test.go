package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestMoralisFetchCurrentPriceMissingAddress(t *testing.T) {
	m := NewMoralis(MoralisOptions{}, noopLogger())
	if _, err := m.FetchCurrentPrice(context.Background(), chain.Ethereum, ""); err == nil {
		t.Fatal("missing address should be an error")
	}
}

func TestMoralisFetchCurrentPriceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/erc20/0xabc/price") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("chain"); got != "0x1" {
			t.Fatalf("expected chain=0x1, got %q", got)
		}
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Fatalf("expected api key header, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"usdPrice": 2531.25})
	}))
	defer srv.Close()

	m := NewMoralis(MoralisOptions{BaseURL: srv.URL, APIKey: "secret", Timeout: time.Second}, noopLogger())

	price, err := m.FetchCurrentPrice(context.Background(), chain.Ethereum, "0xabc")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(2531.25)) {
		t.Fatalf("expected 2531.25, got %s", price)
	}
}

func TestMoralisFetchCurrentPriceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "rate limited"})
	}))
	defer srv.Close()

	m := NewMoralis(MoralisOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	_, err := m.FetchCurrentPrice(context.Background(), chain.Polygon, "0xabc")
	if err == nil {
		t.Fatal("HTTP 429 should be an error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error should carry the api message, got %v", err)
	}
}

// Five of the 24 trailing-hour intervals fail at the block lookup; the
// history must still contain the other 19 points in chronological order.
func TestMoralisHourlyHistoryPartialFailures(t *testing.T) {
	var (
		mu         sync.Mutex
		blockCalls int
	)
	failing := map[int]bool{1: true, 5: true, 9: true, 13: true, 17: true}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "dateToBlock"):
			mu.Lock()
			blockCalls++
			call := blockCalls
			mu.Unlock()
			if failing[call] {
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "no block found"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"block": 1000 + call})
		case strings.Contains(r.URL.Path, "/price"):
			_ = json.NewEncoder(w).Encode(map[string]any{"usdPrice": 1800.0})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	m := NewMoralis(MoralisOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	prices, err := m.FetchHourlyHistory(context.Background(), chain.Ethereum, "0xabc")
	if err != nil {
		t.Fatalf("partial history should not be an error: %v", err)
	}
	if len(prices) != 19 {
		t.Fatalf("expected 19 points, got %d", len(prices))
	}
	for i := 1; i < len(prices); i++ {
		if !prices[i].Timestamp.After(prices[i-1].Timestamp) {
			t.Fatalf("history not chronological at index %d", i)
		}
	}
	if blockCalls != 24 {
		t.Fatalf("expected 24 block lookups, got %d", blockCalls)
	}
}

func TestMoralisHourlyHistorySkipsZeroBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "dateToBlock"):
			_ = json.NewEncoder(w).Encode(map[string]any{"block": 0})
		default:
			t.Fatalf("price should never be requested when no block resolves, path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	m := NewMoralis(MoralisOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	prices, err := m.FetchHourlyHistory(context.Background(), chain.Ethereum, "0xabc")
	if err != nil {
		t.Fatalf("empty history should not be an error: %v", err)
	}
	if len(prices) != 0 {
		t.Fatalf("expected no points, got %d", len(prices))
	}
}
