package forecast

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func monthly(prices ...int64) []MonthlyPoint {
	points := make([]MonthlyPoint, 0, len(prices))
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i, price := range prices {
		points = append(points, MonthlyPoint{
			Month: start.AddDate(0, i, 0),
			Price: decimal.NewFromInt(price),
		})
	}
	return points
}

var testNow = time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

func TestPredictInsufficientData(t *testing.T) {
	if fc := Predict(nil, testNow, DefaultPolicy()); fc != nil {
		t.Fatalf("expected no forecast for empty input, got %v", fc)
	}
	if fc := Predict(monthly(500), testNow, DefaultPolicy()); fc != nil {
		t.Fatalf("expected no forecast for a single point, got %v", fc)
	}
}

func TestPredictLinearTrend(t *testing.T) {
	// Regression by hand over [100 110 105 120 115 130], x = 0..5:
	// slope = 540/105, intercept = (680 - slope*15)/6.
	fc := Predict(monthly(100, 110, 105, 120, 115, 130), testNow, DefaultPolicy())
	if len(fc) != 3 {
		t.Fatalf("expected 3 forecast points, got %d", len(fc))
	}

	wantPredicted := []int64{131, 136, 142}
	wantUpper := []int64{141, 157, 173}
	wantLower := []int64{121, 115, 111}
	wantLabels := []string{"Sep 2026", "Oct 2026", "Nov 2026"}
	for i, point := range fc {
		if !point.Predicted.Equal(decimal.NewFromInt(wantPredicted[i])) {
			t.Fatalf("step %d: expected predicted %d, got %s", i+1, wantPredicted[i], point.Predicted)
		}
		if !point.Upper.Equal(decimal.NewFromInt(wantUpper[i])) {
			t.Fatalf("step %d: expected upper %d, got %s", i+1, wantUpper[i], point.Upper)
		}
		if !point.Lower.Equal(decimal.NewFromInt(wantLower[i])) {
			t.Fatalf("step %d: expected lower %d, got %s", i+1, wantLower[i], point.Lower)
		}
		if point.Label() != wantLabels[i] {
			t.Fatalf("step %d: expected label %q, got %q", i+1, wantLabels[i], point.Label())
		}
	}
}

func TestPredictSteepDeclineFloorsAndClamps(t *testing.T) {
	fc := Predict(monthly(1000, 700, 400), testNow, DefaultPolicy())
	if len(fc) != 3 {
		t.Fatalf("expected 3 forecast points, got %d", len(fc))
	}

	// The fit extrapolates below zero; the floor holds at 50% of the last
	// price and lower bounds never go negative.
	floor := decimal.NewFromInt(200)
	for i, point := range fc {
		if !point.Predicted.Equal(floor) {
			t.Fatalf("step %d: expected floored prediction 200, got %s", i+1, point.Predicted)
		}
		if point.Lower.IsNegative() {
			t.Fatalf("step %d: lower bound went negative: %s", i+1, point.Lower)
		}
	}
}

func TestPredictFlatHistory(t *testing.T) {
	fc := Predict(monthly(100, 100, 100), testNow, DefaultPolicy())
	if len(fc) != 3 {
		t.Fatalf("expected 3 forecast points, got %d", len(fc))
	}

	for i, point := range fc {
		if !point.Predicted.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("step %d: flat history should predict 100, got %s", i+1, point.Predicted)
		}
		halfWidth := decimal.NewFromInt(int64(8 * (i + 1)))
		if !point.Upper.Sub(point.Predicted).Equal(halfWidth) {
			t.Fatalf("step %d: expected half-width %s above, got %s", i+1, halfWidth, point.Upper.Sub(point.Predicted))
		}
		if !point.Predicted.Sub(point.Lower).Equal(halfWidth) {
			t.Fatalf("step %d: expected half-width %s below, got %s", i+1, halfWidth, point.Predicted.Sub(point.Lower))
		}
	}
}

func TestPredictWindowLimitsHistory(t *testing.T) {
	// Two ancient outliers ahead of the same six points must not change the
	// fit: only the window participates.
	long := monthly(5000, 5000, 100, 110, 105, 120, 115, 130)
	short := monthly(100, 110, 105, 120, 115, 130)

	gotLong := Predict(long, testNow, DefaultPolicy())
	gotShort := Predict(short, testNow, DefaultPolicy())
	if len(gotLong) != len(gotShort) {
		t.Fatalf("forecast lengths differ: %d vs %d", len(gotLong), len(gotShort))
	}
	for i := range gotLong {
		if !gotLong[i].Predicted.Equal(gotShort[i].Predicted) {
			t.Fatalf("step %d: window not applied: %s vs %s", i+1, gotLong[i].Predicted, gotShort[i].Predicted)
		}
	}
}

func TestPredictHonoursHorizon(t *testing.T) {
	policy := DefaultPolicy()
	policy.Horizon = 5

	fc := Predict(monthly(100, 110, 120), testNow, policy)
	if len(fc) != 5 {
		t.Fatalf("expected 5 forecast points, got %d", len(fc))
	}
}
