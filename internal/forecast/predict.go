package forecast

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Policy tunes the trend projection. Values come from configuration so the
// forecast behaviour is adjustable and testable in isolation.
type Policy struct {
	// Window is the maximum number of recent monthly points fed into the
	// regression. Older history does not influence the fit.
	Window int
	// Horizon is the number of future calendar months projected.
	Horizon int
	// BandRate scales the confidence half-width per projected step,
	// relative to the last known price.
	BandRate float64
	// FloorRatio caps downward extrapolation: no prediction falls below
	// FloorRatio times the last known price.
	FloorRatio float64
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{Window: 6, Horizon: 3, BandRate: 0.08, FloorRatio: 0.5}
}

// ForecastPoint is one projected monthly price with a symmetric band.
type ForecastPoint struct {
	Month     time.Time
	Predicted decimal.Decimal
	Upper     decimal.Decimal
	Lower     decimal.Decimal
}

// Label renders the calendar bucket for presentation.
func (p ForecastPoint) Label() string {
	return p.Month.Format("Jan 2006")
}

// Predict fits an ordinary least-squares line over the most recent monthly
// points and projects the next Horizon calendar months counted from now.
//
// Fewer than two points yield no forecast: a single observation cannot
// establish a trend, and callers present a "not enough data" state instead of
// a flat guess. All outputs are rounded to whole currency units and lower
// bounds never go negative.
func Predict(points []MonthlyPoint, now time.Time, policy Policy) []ForecastPoint {
	if len(points) < 2 || policy.Horizon <= 0 {
		return nil
	}

	recent := points
	if policy.Window > 0 && len(recent) > policy.Window {
		recent = recent[len(recent)-policy.Window:]
	}
	n := len(recent)
	lastPrice := points[len(points)-1].Price.InexactFloat64()

	var sumX, sumY, sumXY, sumX2 float64
	for i, point := range recent {
		x := float64(i)
		y := point.Price.InexactFloat64()
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denom := float64(n)*sumX2 - sumX*sumX
	if denom == 0 {
		// Zero x-variance cannot happen for n >= 2, but a degenerate fit
		// must not divide by zero: predict the window mean instead.
		return flatForecast(sumY/float64(n), lastPrice, now, policy)
	}

	slope := (float64(n)*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / float64(n)

	forecast := make([]ForecastPoint, 0, policy.Horizon)
	for step := 1; step <= policy.Horizon; step++ {
		predicted := math.Max(
			lastPrice*policy.FloorRatio,
			math.Round(intercept+slope*float64(n+step-1)),
		)
		halfWidth := lastPrice * policy.BandRate * float64(step)
		forecast = append(forecast, ForecastPoint{
			Month:     futureMonth(now, step),
			Predicted: roundedDecimal(predicted),
			Upper:     roundedDecimal(predicted + halfWidth),
			Lower:     roundedDecimal(math.Max(0, predicted-halfWidth)),
		})
	}
	return forecast
}

func flatForecast(mean, lastPrice float64, now time.Time, policy Policy) []ForecastPoint {
	forecast := make([]ForecastPoint, 0, policy.Horizon)
	for step := 1; step <= policy.Horizon; step++ {
		halfWidth := lastPrice * policy.BandRate * float64(step)
		forecast = append(forecast, ForecastPoint{
			Month:     futureMonth(now, step),
			Predicted: roundedDecimal(mean),
			Upper:     roundedDecimal(mean + halfWidth),
			Lower:     roundedDecimal(math.Max(0, mean-halfWidth)),
		})
	}
	return forecast
}

func futureMonth(now time.Time, step int) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+time.Month(step), 1, 0, 0, 0, 0, time.UTC)
}

func roundedDecimal(v float64) decimal.Decimal {
	return decimal.NewFromInt(int64(math.Round(v)))
}
