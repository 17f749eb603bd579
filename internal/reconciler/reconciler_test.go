package reconciler

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-trend-engine/internal/config"
	"price-trend-engine/internal/history"
	"price-trend-engine/internal/storage"
)

type memEventStore struct {
	events []storage.PriceEvent
	nextID int64
}

func (m *memEventStore) InsertPriceEvent(_ context.Context, event storage.PriceEvent) (storage.PriceEvent, error) {
	m.nextID++
	event.ID = m.nextID
	event.CreatedAt = time.Now().UTC()
	m.events = append(m.events, event)
	return event, nil
}

func (m *memEventStore) InsertInitialEvent(ctx context.Context, event storage.PriceEvent) (storage.PriceEvent, bool, error) {
	for _, existing := range m.events {
		if existing.ProductID == event.ProductID && existing.ChangeKind == storage.ChangeInitial {
			return storage.PriceEvent{}, false, nil
		}
	}
	stored, err := m.InsertPriceEvent(ctx, event)
	return stored, err == nil, err
}

func (m *memEventStore) ListEventsByProduct(_ context.Context, productID string) ([]storage.PriceEvent, error) {
	out := make([]storage.PriceEvent, 0)
	for _, event := range m.events {
		if event.ProductID == productID {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

func (m *memEventStore) LatestEvent(ctx context.Context, productID string) (*storage.PriceEvent, error) {
	events, err := m.ListEventsByProduct(ctx, productID)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[len(events)-1], nil
}

type memCatalog struct {
	products []storage.Product
}

func (m *memCatalog) FindProduct(_ context.Context, id string) (storage.Product, error) {
	for _, product := range m.products {
		if product.ID == id {
			return product, nil
		}
	}
	return storage.Product{}, storage.ErrProductNotFound
}

func (m *memCatalog) ListProducts(_ context.Context) ([]storage.Product, error) {
	return m.products, nil
}

func newTestReconciler(events *memEventStore, catalog *memCatalog) *Reconciler {
	cfg := &config.Config{
		Forecast: config.ForecastConfig{Window: 6, Horizon: 3, BandRate: 0.08, FloorRatio: 0.5},
	}
	svc := history.New(cfg, events, catalog, nil, zerolog.Nop())
	return New(svc, events, catalog, nil, 0, zerolog.Nop())
}

func TestTickBootstrapsMissingTimelines(t *testing.T) {
	events := &memEventStore{}
	catalog := &memCatalog{products: []storage.Product{
		{ID: "p1", Price: decimal.NewFromInt(500), CreatedAt: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)},
	}}
	rec := newTestReconciler(events, catalog)

	if err := rec.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("tick should succeed: %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected bootstrap event, got %d events", len(events.events))
	}
	if events.events[0].ChangeKind != storage.ChangeInitial {
		t.Fatalf("expected initial event, got %s", events.events[0].ChangeKind)
	}
}

func TestTickRecordsMissedPriceChange(t *testing.T) {
	events := &memEventStore{}
	events.events = append(events.events, storage.PriceEvent{
		ID:         1,
		ProductID:  "p1",
		Price:      decimal.NewFromInt(500),
		ChangeKind: storage.ChangeInitial,
		RecordedAt: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	})
	events.nextID = 1
	catalog := &memCatalog{products: []storage.Product{
		{ID: "p1", Price: decimal.NewFromInt(450)},
	}}
	rec := newTestReconciler(events, catalog)

	if err := rec.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("tick should succeed: %v", err)
	}
	if len(events.events) != 2 {
		t.Fatalf("expected a catch-up event, got %d events", len(events.events))
	}
	latest := events.events[1]
	if latest.ChangeKind != storage.ChangeDecrease {
		t.Fatalf("expected decrease, got %s", latest.ChangeKind)
	}
	if latest.PreviousPrice == nil || !latest.PreviousPrice.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("previous price not carried: %v", latest.PreviousPrice)
	}
}

func TestTickNoOpWhenInSync(t *testing.T) {
	events := &memEventStore{}
	events.events = append(events.events, storage.PriceEvent{
		ID:         1,
		ProductID:  "p1",
		Price:      decimal.NewFromInt(500),
		ChangeKind: storage.ChangeInitial,
		RecordedAt: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	})
	events.nextID = 1
	catalog := &memCatalog{products: []storage.Product{
		{ID: "p1", Price: decimal.NewFromInt(500)},
	}}
	rec := newTestReconciler(events, catalog)

	if err := rec.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("tick should succeed: %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("in-sync product must not gain events, got %d", len(events.events))
	}
}
