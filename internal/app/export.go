package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"price-trend-engine/internal/forecast"
)

// Export renders one product's monthly series and forecast as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.ProductID == "" {
		return errors.New("--product is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

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
		a.Logger.Info().Str("product_id", opts.ProductID).Msg("no aggregated history yet; nothing to export")
		return nil
	}

	points := downsamplePoints(series.Points, opts.MaxPoints)
	a.Logger.Info().Str("product_id", opts.ProductID).
		Int("total", len(series.Points)).
		Int("exported", len(points)).
		Msg("exporting series")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, points); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSeriesPNG(opts.PNGPath, points); err != nil {
			return err
		}
	}

	return nil
}

func downsamplePoints(points []forecast.SeriesPoint, max int) []forecast.SeriesPoint {
	if max <= 0 || len(points) <= max {
		return points
	}

	result := make([]forecast.SeriesPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writeSeriesCSV(path string, points []forecast.SeriesPoint) error {
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

	header := []string{"month", "price", "predicted", "upper", "lower"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, point := range points {
		record := []string{
			point.Label,
			decimalField(point.Price),
			decimalField(point.Predicted),
			decimalField(point.Upper),
			decimalField(point.Lower),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func decimalField(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func writeSeriesPNG(path string, points []forecast.SeriesPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Price",
		},
		Series: []chart.Series{
			seriesLine("Price", points, func(p forecast.SeriesPoint) *decimal.Decimal { return p.Price }),
			seriesLine("Predicted", points, func(p forecast.SeriesPoint) *decimal.Decimal { return p.Predicted }),
			seriesLine("Upper Bound", points, func(p forecast.SeriesPoint) *decimal.Decimal { return p.Upper }),
			seriesLine("Lower Bound", points, func(p forecast.SeriesPoint) *decimal.Decimal { return p.Lower }),
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

func seriesLine(name string, points []forecast.SeriesPoint, pick func(forecast.SeriesPoint) *decimal.Decimal) chart.TimeSeries {
	x := make([]time.Time, 0, len(points))
	y := make([]float64, 0, len(points))
	for _, point := range points {
		value := pick(point)
		if value == nil {
			continue
		}
		x = append(x, point.Month)
		y = append(y, value.InexactFloat64())
	}
	return chart.TimeSeries{Name: name, XValues: x, YValues: y}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
