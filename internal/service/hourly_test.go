package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pricewatcher/internal/chain"
	"pricewatcher/internal/storage"
)

func TestHourlyPricesEmptyChain(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeRegistry{}, &fakeFetcher{}, &fakeNotifier{})

	buckets, err := svc.HourlyPrices(context.Background(), chain.Ethereum)
	if err != nil {
		t.Fatalf("empty chain must not be an error: %v", err)
	}
	if len(buckets) != 0 {
		t.Fatalf("expected no buckets, got %d", len(buckets))
	}
}

func TestHourlyPricesOmitsEmptyHours(t *testing.T) {
	windowStart := testNow.Add(-24 * time.Hour)
	store := &fakeStore{points: []storage.PricePoint{
		{Chain: chain.Ethereum, Price: decimal.NewFromInt(100), Timestamp: windowStart.Add(2*time.Hour + 10*time.Minute)},
		{Chain: chain.Ethereum, Price: decimal.NewFromInt(110), Timestamp: windowStart.Add(2*time.Hour + 40*time.Minute)},
		{Chain: chain.Ethereum, Price: decimal.NewFromInt(90), Timestamp: windowStart.Add(23*time.Hour + 5*time.Minute)},
	}}
	svc := newTestService(store, &fakeRegistry{}, &fakeFetcher{}, &fakeNotifier{})

	buckets, err := svc.HourlyPrices(context.Background(), chain.Ethereum)
	if err != nil {
		t.Fatalf("hourly prices: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 non-empty buckets, got %d", len(buckets))
	}

	first := buckets[0]
	if !first.StartTime.Equal(windowStart.Add(2 * time.Hour)) {
		t.Fatalf("first bucket misaligned: %s", first.StartTime)
	}
	if !first.MinPrice.Equal(decimal.NewFromInt(100)) || !first.MaxPrice.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("min/max wrong: %s / %s", first.MinPrice, first.MaxPrice)
	}
	if !first.AvgPrice.Equal(decimal.NewFromInt(105)) {
		t.Fatalf("avg wrong: %s", first.AvgPrice)
	}
	if len(first.Prices) != 2 {
		t.Fatalf("samples missing: %d", len(first.Prices))
	}
}

func TestHourlyPricesBucketInvariants(t *testing.T) {
	windowStart := testNow.Add(-24 * time.Hour)
	store := &fakeStore{}
	// Scatter samples through the trailing day: three per even hour.
	for hour := 0; hour < 24; hour += 2 {
		base := windowStart.Add(time.Duration(hour) * time.Hour)
		store.points = append(store.points,
			storage.PricePoint{Chain: chain.Ethereum, Price: decimal.NewFromInt(int64(100 + hour)), Timestamp: base.Add(5 * time.Minute)},
			storage.PricePoint{Chain: chain.Ethereum, Price: decimal.NewFromInt(int64(95 + hour)), Timestamp: base.Add(25 * time.Minute)},
			storage.PricePoint{Chain: chain.Ethereum, Price: decimal.NewFromInt(int64(105 + hour)), Timestamp: base.Add(45 * time.Minute)},
		)
	}
	svc := newTestService(store, &fakeRegistry{}, &fakeFetcher{}, &fakeNotifier{})

	buckets, err := svc.HourlyPrices(context.Background(), chain.Ethereum)
	if err != nil {
		t.Fatalf("hourly prices: %v", err)
	}
	if len(buckets) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(buckets))
	}

	for i, bucket := range buckets {
		if !bucket.EndTime.Equal(bucket.StartTime.Add(time.Hour)) {
			t.Fatalf("bucket %d is not one hour wide", i)
		}
		if bucket.MinPrice.GreaterThan(bucket.AvgPrice) || bucket.AvgPrice.GreaterThan(bucket.MaxPrice) {
			t.Fatalf("bucket %d violates min <= avg <= max: %s %s %s", i, bucket.MinPrice, bucket.AvgPrice, bucket.MaxPrice)
		}
		if i > 0 && buckets[i-1].EndTime.After(bucket.StartTime) {
			t.Fatalf("buckets %d and %d overlap", i-1, i)
		}
	}
}

func TestHourlyPricesBoundaryIsHalfOpen(t *testing.T) {
	windowStart := testNow.Add(-24 * time.Hour)
	hourThree := windowStart.Add(3 * time.Hour)
	store := &fakeStore{points: []storage.PricePoint{
		// Exactly on the boundary: belongs to hour three, not hour two.
		{Chain: chain.Ethereum, Price: decimal.NewFromInt(42), Timestamp: hourThree},
	}}
	svc := newTestService(store, &fakeRegistry{}, &fakeFetcher{}, &fakeNotifier{})

	buckets, err := svc.HourlyPrices(context.Background(), chain.Ethereum)
	if err != nil {
		t.Fatalf("hourly prices: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	if !buckets[0].StartTime.Equal(hourThree) {
		t.Fatalf("boundary sample landed in the wrong bucket: %s", buckets[0].StartTime)
	}
}
