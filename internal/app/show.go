package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent price points for the configured chains.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	targets, err := a.Config.Targets()
	if err != nil {
		return err
	}
	targets, err = filterTargets(targets, opts.Chain)
	if err != nil {
		return err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Chain\tTime (UTC)\tPrice (USD)")

	total := 0
	for _, target := range targets {
		points, err := store.ListRecentPricePoints(ctx, target.Chain, limit)
		if err != nil {
			return err
		}
		for _, point := range points {
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\n",
				point.Chain,
				point.Timestamp.UTC().Format(time.RFC3339),
				point.Price.StringFixed(6),
			)
		}
		total += len(points)
	}

	if total == 0 {
		fmt.Fprintln(os.Stdout, "no price points found")
		return nil
	}

	return writer.Flush()
}
