package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatcher/internal/alerting"
	"pricewatcher/internal/chain"
	"pricewatcher/internal/config"
	"pricewatcher/internal/fetcher"
	"pricewatcher/internal/storage"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	points    []storage.PricePoint
	insertErr error
	listErr   error
}

func (f *fakeStore) InsertPricePoint(_ context.Context, point storage.PricePoint) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.points = append(f.points, point)
	return nil
}

func (f *fakeStore) InsertPricePoints(_ context.Context, points []storage.PricePoint) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeStore) ListPricePointsSince(_ context.Context, c chain.Chain, since time.Time) ([]storage.PricePoint, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	matched := make([]storage.PricePoint, 0)
	for _, point := range f.points {
		if point.Chain == c && point.Timestamp.After(since) {
			matched = append(matched, point)
		}
	}
	return matched, nil
}

func (f *fakeStore) ListRecentPricePoints(_ context.Context, c chain.Chain, limit int) ([]storage.PricePoint, error) {
	matched := make([]storage.PricePoint, 0)
	for i := len(f.points) - 1; i >= 0 && len(matched) < limit; i-- {
		if f.points[i].Chain == c {
			matched = append(matched, f.points[i])
		}
	}
	return matched, nil
}

func (f *fakeStore) ClearPricePoints(_ context.Context, c chain.Chain) error {
	kept := f.points[:0]
	for _, point := range f.points {
		if point.Chain != c {
			kept = append(kept, point)
		}
	}
	f.points = kept
	return nil
}

func (f *fakeStore) CountPricePoints(_ context.Context, c chain.Chain) (int64, error) {
	var count int64
	for _, point := range f.points {
		if point.Chain == c {
			count++
		}
	}
	return count, nil
}

type fakeRegistry struct {
	regs    []storage.AlertRegistration
	listErr error
}

func (f *fakeRegistry) InsertAlertRegistration(_ context.Context, reg storage.AlertRegistration) (storage.AlertRegistration, error) {
	reg.ID = int64(len(f.regs) + 1)
	f.regs = append(f.regs, reg)
	return reg, nil
}

func (f *fakeRegistry) ListAlertRegistrationsByChain(_ context.Context, c chain.Chain) ([]storage.AlertRegistration, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	matched := make([]storage.AlertRegistration, 0)
	for _, reg := range f.regs {
		if reg.Chain == c {
			matched = append(matched, reg)
		}
	}
	return matched, nil
}

type fakeFetcher struct {
	prices   map[string]decimal.Decimal
	fetchErr error
}

func (f *fakeFetcher) FetchCurrentPrice(_ context.Context, _ chain.Chain, address string) (decimal.Decimal, error) {
	if f.fetchErr != nil {
		return decimal.Decimal{}, f.fetchErr
	}
	price, ok := f.prices[address]
	if !ok {
		return decimal.Decimal{}, errors.New("no price for address")
	}
	return price, nil
}

func (f *fakeFetcher) FetchHourlyHistory(context.Context, chain.Chain, string) ([]fetcher.HistoricalPrice, error) {
	return nil, nil
}

type fakeNotifier struct {
	sent    []alerting.Request
	failFor map[string]bool
}

func (f *fakeNotifier) Send(_ context.Context, req alerting.Request) error {
	if f.failFor[req.To] {
		return errors.New("delivery refused")
	}
	f.sent = append(f.sent, req)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Alerting: config.AlertingConfig{
			Enabled:        true,
			TrendThreshold: 0.03,
			OperatorEmail:  "ops@example.com",
		},
		Swap: config.SwapConfig{
			FeeRate:      0.03,
			BaseAsset:    "0xeth",
			QuoteAsset:   "0xbtc",
			PricingChain: "ethereum",
		},
	}
}

func testTargets() []config.Target {
	return []config.Target{
		{Chain: chain.Ethereum, AssetAddress: "0xweth"},
		{Chain: chain.Polygon, AssetAddress: "0xmatic"},
	}
}

func newTestService(store *fakeStore, registry *fakeRegistry, f *fakeFetcher, notifier *fakeNotifier) *Service {
	svc := New(testConfig(), testTargets(), store, registry, f, notifier, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestRunCycleFetchFailureWritesNothing(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(store, &fakeRegistry{}, &fakeFetcher{fetchErr: errors.New("provider down")}, notifier)

	if _, err := svc.RunCycle(context.Background(), chain.Ethereum); err == nil {
		t.Fatal("fetch failure should surface as an error")
	}
	if len(store.points) != 0 {
		t.Fatalf("no point should be persisted on fetch failure, got %d", len(store.points))
	}
	if len(notifier.sent) != 0 {
		t.Fatal("no notifications should be sent on an aborted cycle")
	}
}

func TestRunCyclePersistFailureAborts(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("disk full")}
	notifier := &fakeNotifier{}
	f := &fakeFetcher{prices: map[string]decimal.Decimal{"0xweth": decimal.NewFromInt(2000)}}
	svc := newTestService(store, &fakeRegistry{}, f, notifier)

	if _, err := svc.RunCycle(context.Background(), chain.Ethereum); err == nil {
		t.Fatal("persistence failure should surface as an error")
	}
	if len(notifier.sent) != 0 {
		t.Fatal("no notifications should be sent on an aborted cycle")
	}
}

func TestRunCycleAppendsExactlyOnePoint(t *testing.T) {
	store := &fakeStore{}
	f := &fakeFetcher{prices: map[string]decimal.Decimal{"0xweth": decimal.NewFromInt(2000)}}
	svc := newTestService(store, &fakeRegistry{}, f, &fakeNotifier{})

	report, err := svc.RunCycle(context.Background(), chain.Ethereum)
	if err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}
	if len(store.points) != 1 {
		t.Fatalf("expected exactly one persisted point, got %d", len(store.points))
	}
	if store.points[0].Chain != chain.Ethereum {
		t.Fatalf("point stored under wrong chain: %v", store.points[0].Chain)
	}
	if !report.Price.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("report price mismatch: %s", report.Price)
	}
}

func TestRunCycleRefiresAlertsEveryCycle(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{regs: []storage.AlertRegistration{
		{ID: 1, Chain: chain.Ethereum, ThresholdDollar: decimal.NewFromInt(1500), Email: "a@example.com"},
	}}
	f := &fakeFetcher{prices: map[string]decimal.Decimal{"0xweth": decimal.NewFromInt(2000)}}
	notifier := &fakeNotifier{}
	svc := newTestService(store, registry, f, notifier)

	for i := 0; i < 2; i++ {
		if _, err := svc.RunCycle(context.Background(), chain.Ethereum); err != nil {
			t.Fatalf("cycle %d should succeed: %v", i, err)
		}
	}

	if len(notifier.sent) != 2 {
		t.Fatalf("a standing threshold must re-fire every cycle, got %d sends", len(notifier.sent))
	}
}

func TestRunCycleFailedSendDoesNotBlockOthers(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{regs: []storage.AlertRegistration{
		{ID: 1, Chain: chain.Ethereum, ThresholdDollar: decimal.NewFromInt(1000), Email: "fail@example.com"},
		{ID: 2, Chain: chain.Ethereum, ThresholdDollar: decimal.NewFromInt(1500), Email: "ok@example.com"},
	}}
	f := &fakeFetcher{prices: map[string]decimal.Decimal{"0xweth": decimal.NewFromInt(2000)}}
	notifier := &fakeNotifier{failFor: map[string]bool{"fail@example.com": true}}
	svc := newTestService(store, registry, f, notifier)

	report, err := svc.RunCycle(context.Background(), chain.Ethereum)
	if err != nil {
		t.Fatalf("cycle should succeed despite a delivery failure: %v", err)
	}
	if report.NotificationsFailed != 1 || report.NotificationsSent != 1 {
		t.Fatalf("expected 1 failed and 1 sent, got %d/%d", report.NotificationsFailed, report.NotificationsSent)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].To != "ok@example.com" {
		t.Fatalf("second recipient should still be notified: %+v", notifier.sent)
	}
}

func TestRunCycleRegistryFailureIsIsolated(t *testing.T) {
	store := &fakeStore{}
	registry := &fakeRegistry{listErr: errors.New("registry down")}
	f := &fakeFetcher{prices: map[string]decimal.Decimal{"0xweth": decimal.NewFromInt(2000)}}
	svc := newTestService(store, registry, f, &fakeNotifier{})

	if _, err := svc.RunCycle(context.Background(), chain.Ethereum); err != nil {
		t.Fatalf("registry failure must not abort the cycle: %v", err)
	}
	if len(store.points) != 1 {
		t.Fatal("the sampled point should still be persisted")
	}
}

func TestRunCycleTrendNotifiesOperator(t *testing.T) {
	store := &fakeStore{points: []storage.PricePoint{
		{Chain: chain.Ethereum, Price: decimal.NewFromInt(100), Timestamp: testNow.Add(-55 * time.Minute)},
	}}
	f := &fakeFetcher{prices: map[string]decimal.Decimal{"0xweth": decimal.NewFromFloat(103.0001)}}
	notifier := &fakeNotifier{}
	svc := newTestService(store, &fakeRegistry{}, f, notifier)

	report, err := svc.RunCycle(context.Background(), chain.Ethereum)
	if err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}
	if !report.TrendNotified {
		t.Fatal("a >3% increase should notify the operator")
	}
	if len(notifier.sent) != 1 || notifier.sent[0].To != "ops@example.com" {
		t.Fatalf("trend mail should go to the operator address only: %+v", notifier.sent)
	}
}
