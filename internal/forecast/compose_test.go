package forecast

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComposeSparseWhenNoHistory(t *testing.T) {
	series := Compose(nil, nil, decimal.NewFromInt(500))
	if !series.Sparse {
		t.Fatal("expected sparse series for empty history")
	}
	if len(series.Points) != 0 {
		t.Fatalf("sparse series should carry no points, got %d", len(series.Points))
	}
}

func TestComposeWithoutForecast(t *testing.T) {
	points := monthly(500)
	series := Compose(points, nil, decimal.NewFromInt(500))

	if series.Sparse {
		t.Fatal("series with history should not be sparse")
	}
	if len(series.Points) != 1 {
		t.Fatalf("expected 1 point without forecast, got %d", len(series.Points))
	}
	if series.Points[0].Predicted != nil {
		t.Fatal("historical point should not carry a prediction")
	}

	current := decimal.NewFromInt(500)
	if !series.Stats.PredictedNext.Equal(current) {
		t.Fatalf("predictedNext should fall back to current price, got %s", series.Stats.PredictedNext)
	}
	if !series.Stats.PredictedDelta.IsZero() {
		t.Fatalf("predictedDelta should be zero without forecast, got %s", series.Stats.PredictedDelta)
	}
	if !series.Stats.CurrentTrend.IsZero() {
		t.Fatalf("currentTrend should be zero with a single point, got %s", series.Stats.CurrentTrend)
	}
}

func TestComposeInsertsBridgePoint(t *testing.T) {
	points := monthly(100, 110, 105, 120, 115, 130)
	fc := Predict(points, testNow, DefaultPolicy())
	series := Compose(points, fc, decimal.NewFromInt(130))

	wantLen := len(points) + 1 + len(fc)
	if len(series.Points) != wantLen {
		t.Fatalf("expected %d merged points, got %d", wantLen, len(series.Points))
	}

	bridge := series.Points[len(points)]
	last := decimal.NewFromInt(130)
	if bridge.Label != points[len(points)-1].Label() {
		t.Fatalf("bridge should repeat the last historical month, got %q", bridge.Label)
	}
	for name, field := range map[string]*decimal.Decimal{
		"price":     bridge.Price,
		"predicted": bridge.Predicted,
		"upper":     bridge.Upper,
		"lower":     bridge.Lower,
	} {
		if field == nil || !field.Equal(last) {
			t.Fatalf("bridge %s should equal last price 130, got %v", name, field)
		}
	}

	first := series.Points[len(points)+1]
	if first.Price != nil {
		t.Fatal("forecast point should not carry a historical price")
	}
	if first.Predicted == nil || !first.Predicted.Equal(fc[0].Predicted) {
		t.Fatalf("first forecast point mismatch: %v", first.Predicted)
	}
}

func TestComposeStats(t *testing.T) {
	points := monthly(100, 110, 105, 120, 115, 130)
	fc := Predict(points, testNow, DefaultPolicy())
	series := Compose(points, fc, decimal.NewFromInt(130))

	stats := series.Stats
	if !stats.Highest.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("expected highest 130, got %s", stats.Highest)
	}
	if !stats.Lowest.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected lowest 100, got %s", stats.Lowest)
	}
	// mean of 680/6 = 113.33 rounds to 113
	if !stats.Average.Equal(decimal.NewFromInt(113)) {
		t.Fatalf("expected average 113, got %s", stats.Average)
	}
	if !stats.CurrentTrend.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected trend 130-115=15, got %s", stats.CurrentTrend)
	}
	if !stats.PredictedNext.Equal(fc[0].Predicted) {
		t.Fatalf("predictedNext should be the first forecast value, got %s", stats.PredictedNext)
	}
	if !stats.PredictedDelta.Equal(fc[0].Predicted.Sub(decimal.NewFromInt(130))) {
		t.Fatalf("predictedDelta mismatch: %s", stats.PredictedDelta)
	}
}

func TestComposeFlatHistoryStats(t *testing.T) {
	points := monthly(100, 100, 100)
	fc := Predict(points, testNow, DefaultPolicy())
	series := Compose(points, fc, decimal.NewFromInt(100))

	stats := series.Stats
	hundred := decimal.NewFromInt(100)
	if !stats.Highest.Equal(hundred) || !stats.Lowest.Equal(hundred) || !stats.Average.Equal(hundred) {
		t.Fatalf("flat history should yield 100/100/100, got %s/%s/%s", stats.Highest, stats.Lowest, stats.Average)
	}
	if !stats.PredictedDelta.IsZero() {
		t.Fatalf("flat history should predict no move, got delta %s", stats.PredictedDelta)
	}
}
