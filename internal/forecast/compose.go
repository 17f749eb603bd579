package forecast

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeriesPoint is one chart-ready entry of the merged series. Historical
// entries carry Price; forecast entries carry Predicted/Upper/Lower; the
// bridge point carries all four so the two line segments join visually.
type SeriesPoint struct {
	Month     time.Time
	Label     string
	Price     *decimal.Decimal
	Predicted *decimal.Decimal
	Upper     *decimal.Decimal
	Lower     *decimal.Decimal
}

// Stats summarises the historical segment plus the next projected move.
type Stats struct {
	Highest        decimal.Decimal
	Lowest         decimal.Decimal
	Average        decimal.Decimal
	CurrentTrend   decimal.Decimal
	PredictedNext  decimal.Decimal
	PredictedDelta decimal.Decimal
}

// Series is the composed presentation structure. Sparse signals that no
// aggregated history exists and the caller should render a "tracking just
// started" placeholder instead of a chart.
type Series struct {
	Sparse bool
	Points []SeriesPoint
	Stats  Stats
}

// Compose merges the historical monthly points and the forecast into one
// chronological sequence and computes summary statistics over the historical
// segment only. currentPrice is the product's live catalog price.
func Compose(points []MonthlyPoint, forecast []ForecastPoint, currentPrice decimal.Decimal) Series {
	if len(points) == 0 {
		return Series{Sparse: true}
	}

	merged := make([]SeriesPoint, 0, len(points)+len(forecast)+1)
	for _, point := range points {
		price := point.Price
		merged = append(merged, SeriesPoint{
			Month: point.Month,
			Label: point.Label(),
			Price: &price,
		})
	}

	if len(forecast) > 0 {
		last := points[len(points)-1]
		bridge := last.Price
		merged = append(merged, SeriesPoint{
			Month:     last.Month,
			Label:     last.Label(),
			Price:     &bridge,
			Predicted: &bridge,
			Upper:     &bridge,
			Lower:     &bridge,
		})
		for _, point := range forecast {
			predicted := point.Predicted
			upper := point.Upper
			lower := point.Lower
			merged = append(merged, SeriesPoint{
				Month:     point.Month,
				Label:     point.Label(),
				Predicted: &predicted,
				Upper:     &upper,
				Lower:     &lower,
			})
		}
	}

	return Series{
		Points: merged,
		Stats:  computeStats(points, forecast, currentPrice),
	}
}

func computeStats(points []MonthlyPoint, forecast []ForecastPoint, currentPrice decimal.Decimal) Stats {
	highest := points[0].Price
	lowest := points[0].Price
	sum := decimal.Zero
	for _, point := range points {
		if point.Price.GreaterThan(highest) {
			highest = point.Price
		}
		if point.Price.LessThan(lowest) {
			lowest = point.Price
		}
		sum = sum.Add(point.Price)
	}
	average := sum.Div(decimal.NewFromInt(int64(len(points)))).Round(0)

	previous := currentPrice
	if len(points) >= 2 {
		previous = points[len(points)-2].Price
	}

	predictedNext := currentPrice
	if len(forecast) > 0 {
		predictedNext = forecast[0].Predicted
	}

	return Stats{
		Highest:        highest,
		Lowest:         lowest,
		Average:        average,
		CurrentTrend:   currentPrice.Sub(previous),
		PredictedNext:  predictedNext,
		PredictedDelta: predictedNext.Sub(currentPrice),
	}
}
