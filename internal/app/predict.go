package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

// Predict prints the composed monthly series and summary statistics for one
// product, mirroring what the series API endpoint serves.
func (a *App) Predict(ctx context.Context, opts PredictOptions) error {
	if opts.ProductID == "" {
		return errors.New("--product is required")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	series, err := a.newHistory(store).GetSeries(ctx, opts.ProductID)
	if err != nil {
		return err
	}

	if series.Sparse {
		fmt.Fprintln(os.Stdout, "price tracking just started; no aggregated history yet")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Month\tPrice\tPredicted\tUpper\tLower")
	for _, point := range series.Points {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			point.Label,
			decimalCell(point.Price),
			decimalCell(point.Predicted),
			decimalCell(point.Upper),
			decimalCell(point.Lower),
		)
	}
	writer.Flush()

	stats := series.Stats
	fmt.Fprintf(os.Stdout, "\nhighest=%s lowest=%s average=%s trend=%s next=%s delta=%s\n",
		stats.Highest.String(),
		stats.Lowest.String(),
		stats.Average.String(),
		stats.CurrentTrend.String(),
		stats.PredictedNext.String(),
		stats.PredictedDelta.String(),
	)
	return nil
}

func decimalCell(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
