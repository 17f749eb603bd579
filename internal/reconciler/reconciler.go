package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"price-trend-engine/internal/history"
	"price-trend-engine/internal/storage"
)

// Reconciler periodically walks the catalog and appends timeline events for
// price changes whose mutation notifications were lost, bootstrapping
// products that have no history at all. A Postgres advisory lock keeps a
// single instance active across replicas.
type Reconciler struct {
	history *history.Service
	events  storage.EventStore
	catalog storage.CatalogReader
	locker  storage.AdvisoryLocker
	lockKey int64
	logger  zerolog.Logger
}

// New constructs a Reconciler.
func New(svc *history.Service, events storage.EventStore, catalog storage.CatalogReader, locker storage.AdvisoryLocker, lockKey int64, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		history: svc,
		events:  events,
		catalog: catalog,
		locker:  locker,
		lockKey: lockKey,
		logger:  logger.With().Str("component", "reconciler").Logger(),
	}
}

// Tick runs one reconciliation pass. Per-product failures are logged and
// counted; the pass keeps going.
func (r *Reconciler) Tick(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := r.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		r.logger.Debug().Time("bucket", bucket).Msg("skip pass because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	products, err := r.catalog.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list catalog products: %w", err)
	}

	var recorded, failed int
	for _, product := range products {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		changed, err := r.reconcileProduct(ctx, product)
		if err != nil {
			failed++
			r.logger.Error().Err(err).Str("product_id", product.ID).Msg("reconcile product failed")
			continue
		}
		if changed {
			recorded++
		}
	}

	r.logger.Info().Time("bucket", bucket).
		Int("products", len(products)).
		Int("recorded", recorded).
		Int("failed", failed).
		Msg("reconciliation pass complete")

	if failed > 0 {
		return fmt.Errorf("%d of %d products failed to reconcile", failed, len(products))
	}
	return nil
}

func (r *Reconciler) reconcileProduct(ctx context.Context, product storage.Product) (bool, error) {
	latest, err := r.events.LatestEvent(ctx, product.ID)
	if err != nil {
		return false, err
	}

	if latest == nil {
		if _, err := r.history.GetHistory(ctx, product.ID); err != nil {
			return false, err
		}
		return true, nil
	}

	if latest.Price.Equal(product.Price) {
		return false, nil
	}

	previous := history.MutationDoc{ID: product.ID, Name: product.Name, Price: latest.Price}
	event, err := r.history.RecordIfChanged(ctx, history.Mutation{
		Operation:   history.OpUpdate,
		Doc:         history.MutationDoc{ID: product.ID, Name: product.Name, Price: product.Price},
		PreviousDoc: &previous,
	})
	if err != nil {
		return false, err
	}
	return event != nil, nil
}

func (r *Reconciler) acquireLock(ctx context.Context) (func(), bool, error) {
	if r.lockKey == 0 || r.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := r.locker.TryAdvisoryLock(ctx, r.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
