package forecast

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"price-trend-engine/internal/storage"
)

func event(productID string, price int64, recordedAt time.Time) storage.PriceEvent {
	return storage.PriceEvent{
		ProductID:  productID,
		Price:      decimal.NewFromInt(price),
		RecordedAt: recordedAt,
	}
}

func TestAggregateEmpty(t *testing.T) {
	if points := Aggregate(nil); points != nil {
		t.Fatalf("expected nil for empty input, got %v", points)
	}
}

func TestAggregateSingleEvent(t *testing.T) {
	points := Aggregate([]storage.PriceEvent{
		event("p1", 500, time.Date(2026, time.March, 12, 9, 0, 0, 0, time.UTC)),
	})
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if !points[0].Price.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected price 500, got %s", points[0].Price)
	}
	if points[0].Label() != "Mar 2026" {
		t.Fatalf("unexpected label %q", points[0].Label())
	}
}

func TestAggregateLastWriteWinsWithinMonth(t *testing.T) {
	events := []storage.PriceEvent{
		event("p1", 100, time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)),
		event("p1", 110, time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC)),
		event("p1", 115, time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC)),
		event("p1", 120, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)),
	}

	points := Aggregate(events)
	if len(points) != 3 {
		t.Fatalf("expected 3 monthly points, got %d", len(points))
	}
	if !points[1].Price.Equal(decimal.NewFromInt(115)) {
		t.Fatalf("middle month should take the later event, got %s", points[1].Price)
	}
	for i := 1; i < len(points); i++ {
		if !points[i-1].Month.Before(points[i].Month) {
			t.Fatalf("points not ascending at index %d", i)
		}
	}
}

func TestMonthStartNormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2026, time.June, 1, 1, 0, 0, 0, loc)

	// 01 Jun 01:00 IST is still 31 May in UTC.
	got := MonthStart(ts)
	want := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
