package forecast

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"price-trend-engine/internal/storage"
)

// MonthlyPoint is one aggregated price per calendar month.
type MonthlyPoint struct {
	Month time.Time
	Price decimal.Decimal
}

// Label renders the calendar bucket for presentation.
func (p MonthlyPoint) Label() string {
	return p.Month.Format("Jan 2006")
}

// Aggregate collapses a recorded-order event timeline into one point per
// calendar month (UTC), ascending. Within a month the chronologically last
// event wins; earlier same-month events are shadowed.
func Aggregate(events []storage.PriceEvent) []MonthlyPoint {
	if len(events) == 0 {
		return nil
	}

	index := make(map[time.Time]int, len(events))
	points := make([]MonthlyPoint, 0, len(events))
	for _, event := range events {
		month := MonthStart(event.RecordedAt)
		if i, ok := index[month]; ok {
			points[i].Price = event.Price
			continue
		}
		index[month] = len(points)
		points = append(points, MonthlyPoint{Month: month, Price: event.Price})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Month.Before(points[j].Month)
	})
	return points
}

// MonthStart truncates a timestamp to the first instant of its UTC month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
