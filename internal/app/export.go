package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"pricewatcher/internal/chain"
	"pricewatcher/internal/service"
)

// Export renders the last 24 hours of hourly statistics as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Chain == "" {
		return errors.New("--chain is required")
	}

	c, err := chain.Parse(opts.Chain)
	if err != nil {
		return err
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	targets, err := a.Config.Targets()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.New(a.Config, targets, store, store, nil, nil, a.Logger)

	buckets, err := svc.HourlyPrices(ctx, c)
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		a.Logger.Info().Str("chain", c.String()).Msg("no hourly data found for export window")
		return nil
	}

	exported := downsampleBuckets(buckets, opts.MaxPoints)
	a.Logger.Info().Int("total", len(buckets)).Int("exported", len(exported)).Msg("exporting hourly buckets")

	if opts.CSVPath != "" {
		if err := writeBucketsCSV(opts.CSVPath, exported); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBucketsPNG(opts.PNGPath, c, exported); err != nil {
			return err
		}
	}

	return nil
}

func downsampleBuckets(buckets []service.HourlyBucket, max int) []service.HourlyBucket {
	if max <= 0 || len(buckets) <= max {
		return buckets
	}

	result := make([]service.HourlyBucket, 0, max)
	step := float64(len(buckets)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(buckets) {
			idx = len(buckets) - 1
		}
		result = append(result, buckets[idx])
	}
	return result
}

func writeBucketsCSV(path string, buckets []service.HourlyBucket) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"start_ts", "end_ts", "min_usd", "max_usd", "avg_usd", "samples"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, bucket := range buckets {
		record := []string{
			bucket.StartTime.Format(time.RFC3339),
			bucket.EndTime.Format(time.RFC3339),
			bucket.MinPrice.String(),
			bucket.MaxPrice.String(),
			bucket.AvgPrice.String(),
			fmt.Sprintf("%d", len(bucket.Prices)),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeBucketsPNG(path string, c chain.Chain, buckets []service.HourlyBucket) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(buckets))
	minSeries := make([]float64, len(buckets))
	maxSeries := make([]float64, len(buckets))
	avgSeries := make([]float64, len(buckets))

	for i, bucket := range buckets {
		x[i] = bucket.StartTime
		minSeries[i] = bucket.MinPrice.InexactFloat64()
		maxSeries[i] = bucket.MaxPrice.InexactFloat64()
		avgSeries[i] = bucket.AvgPrice.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           fmt.Sprintf("%s price (USD)", c),
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Min",
				XValues: x,
				YValues: minSeries,
			},
			chart.TimeSeries{
				Name:    "Avg",
				XValues: x,
				YValues: avgSeries,
			},
			chart.TimeSeries{
				Name:    "Max",
				XValues: x,
				YValues: maxSeries,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
