package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-trend-engine/internal/alerting"
	"price-trend-engine/internal/config"
	"price-trend-engine/internal/forecast"
	"price-trend-engine/internal/storage"
)

// Catalog mutation operations delivered after a catalog write commits.
const (
	OpCreate = "create"
	OpUpdate = "update"
)

// MutationDoc is the price-relevant projection of a catalog item inside a
// mutation notification.
type MutationDoc struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Mutation is a catalog change notification. PreviousDoc is absent on create.
type Mutation struct {
	Operation   string
	Doc         MutationDoc
	PreviousDoc *MutationDoc
}

// Service implements the price timeline: recording catalog changes,
// reconstructing per-product history, and composing the trend series.
type Service struct {
	events   storage.EventStore
	catalog  storage.CatalogReader
	notifier alerting.Notifier
	logger   zerolog.Logger

	policy   forecast.Policy
	dropPct  decimal.Decimal
	channels []string
	alertsOn bool
	now      func() time.Time
}

// New constructs the history service.
func New(cfg *config.Config, events storage.EventStore, catalog storage.CatalogReader, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	dropPct := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.DropPct > 0 {
		dropPct = decimal.NewFromFloat(cfg.Alerting.DropPct)
	}

	return &Service{
		events:   events,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger.With().Str("component", "history").Logger(),
		policy: forecast.Policy{
			Window:     cfg.Forecast.Window,
			Horizon:    cfg.Forecast.Horizon,
			BandRate:   cfg.Forecast.BandRate,
			FloorRatio: cfg.Forecast.FloorRatio,
		},
		dropPct:  dropPct,
		channels: cfg.Alerting.Channels,
		alertsOn: cfg.Alerting.Enabled,
		now:      time.Now,
	}
}

// RecordIfChanged appends exactly one timeline event for an effective price
// change, and nothing otherwise. The returned event is nil on a no-op.
//
// A persistence failure surfaces to the caller but does not roll back the
// catalog mutation that triggered it; that write has already committed.
func (s *Service) RecordIfChanged(ctx context.Context, mutation Mutation) (*storage.PriceEvent, error) {
	switch mutation.Operation {
	case OpCreate:
		return s.recordInitial(ctx, mutation.Doc)
	case OpUpdate:
		if mutation.PreviousDoc == nil {
			s.logger.Debug().Str("product_id", mutation.Doc.ID).Msg("update without previous doc; nothing to compare")
			return nil, nil
		}
		if mutation.Doc.Price.Equal(mutation.PreviousDoc.Price) {
			return nil, nil
		}
		return s.recordChange(ctx, mutation.Doc, mutation.PreviousDoc.Price)
	default:
		return nil, fmt.Errorf("unknown mutation operation %q", mutation.Operation)
	}
}

func (s *Service) recordInitial(ctx context.Context, doc MutationDoc) (*storage.PriceEvent, error) {
	event, won, err := s.events.InsertInitialEvent(ctx, storage.PriceEvent{
		ProductID:  doc.ID,
		Price:      doc.Price,
		ChangeKind: storage.ChangeInitial,
		RecordedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("append initial event: %w", err)
	}
	if !won {
		// A bootstrap query raced the create notification; the timeline
		// already holds the one allowed initial event.
		s.logger.Debug().Str("product_id", doc.ID).Msg("initial event already recorded")
		return nil, nil
	}

	s.logger.Info().Str("product_id", doc.ID).
		Str("price", doc.Price.String()).
		Msg("recorded initial price")
	return &event, nil
}

func (s *Service) recordChange(ctx context.Context, doc MutationDoc, previous decimal.Decimal) (*storage.PriceEvent, error) {
	kind := changeKind(doc.Price, previous)
	prev := previous
	event, err := s.events.InsertPriceEvent(ctx, storage.PriceEvent{
		ProductID:     doc.ID,
		Price:         doc.Price,
		PreviousPrice: &prev,
		ChangeKind:    kind,
		RecordedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("append price event: %w", err)
	}

	s.logger.Info().Str("product_id", doc.ID).
		Str("price", doc.Price.String()).
		Str("previous_price", previous.String()).
		Str("change_kind", kind).
		Msg("recorded price change")

	if kind == storage.ChangeDecrease {
		s.maybeAlert(ctx, doc, previous, event.RecordedAt)
	}
	return &event, nil
}

// maybeAlert dispatches a price-drop notification when the drop meets the
// configured threshold. Dispatch is best effort: failures are logged, never
// returned, so alerting cannot fail a recording.
func (s *Service) maybeAlert(ctx context.Context, doc MutationDoc, previous decimal.Decimal, recordedAt time.Time) {
	if !s.alertsOn || s.notifier == nil || s.dropPct.IsZero() || previous.IsZero() {
		return
	}

	drop := previous.Sub(doc.Price).Div(previous).Mul(decimal.NewFromInt(100))
	if drop.LessThan(s.dropPct) {
		return
	}

	note := alerting.Notification{
		ProductID:    doc.ID,
		ProductName:  doc.Name,
		OldPrice:     previous,
		NewPrice:     doc.Price,
		DropPct:      drop,
		ThresholdPct: s.dropPct,
		RecordedAt:   recordedAt,
		Channels:     s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("product_id", doc.ID).Msg("failed to dispatch price-drop alert")
	}
}

// GetHistory returns a product's ordered timeline. A product with no recorded
// events gets a single bootstrap event synthesised from its current catalog
// price, backdated to the product's own creation time and persisted so the
// next call returns the same record instead of re-synthesising.
func (s *Service) GetHistory(ctx context.Context, productID string) ([]storage.PriceEvent, error) {
	events, err := s.events.ListEventsByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	if len(events) > 0 {
		return events, nil
	}

	product, err := s.catalog.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	event, won, err := s.events.InsertInitialEvent(ctx, storage.PriceEvent{
		ProductID:  product.ID,
		Price:      product.Price,
		ChangeKind: storage.ChangeInitial,
		RecordedAt: product.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("persist bootstrap event: %w", err)
	}
	if !won {
		// Lost the bootstrap race; return the winner's row.
		events, err = s.events.ListEventsByProduct(ctx, productID)
		if err != nil {
			return nil, fmt.Errorf("re-read timeline after bootstrap conflict: %w", err)
		}
		return events, nil
	}

	s.logger.Info().Str("product_id", product.ID).
		Str("price", product.Price.String()).
		Time("recorded_at", event.RecordedAt).
		Msg("bootstrapped price timeline")
	return []storage.PriceEvent{event}, nil
}

// GetSeries composes the chart-ready series and summary statistics for one
// product: aggregated monthly history, a short-horizon forecast when enough
// history exists, and a sparse marker when aggregation yields nothing.
func (s *Service) GetSeries(ctx context.Context, productID string) (forecast.Series, error) {
	product, err := s.catalog.FindProduct(ctx, productID)
	if err != nil {
		return forecast.Series{}, err
	}

	events, err := s.GetHistory(ctx, productID)
	if err != nil {
		return forecast.Series{}, err
	}

	points := forecast.Aggregate(events)
	projected := forecast.Predict(points, s.now().UTC(), s.policy)
	return forecast.Compose(points, projected, product.Price), nil
}

// Policy exposes the active forecast policy.
func (s *Service) Policy() forecast.Policy {
	return s.policy
}

func changeKind(price, previous decimal.Decimal) string {
	switch price.Cmp(previous) {
	case 1:
		return storage.ChangeIncrease
	case -1:
		return storage.ChangeDecrease
	default:
		return storage.ChangeUnchanged
	}
}
