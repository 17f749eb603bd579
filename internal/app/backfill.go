package app

import (
	"context"
	"errors"
)

// Backfill bootstraps an initial timeline event for every catalog product
// that has no recorded history yet. With DryRun set it only reports what
// would be created.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	products, err := store.ListProducts(ctx)
	if err != nil {
		return err
	}

	svc := a.newHistory(store)

	var bootstrapped, skipped, failed int
	for _, product := range products {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		latest, err := store.LatestEvent(ctx, product.ID)
		if err != nil {
			failed++
			a.Logger.Error().Err(err).Str("product_id", product.ID).Msg("backfill lookup failed")
			continue
		}
		if latest != nil {
			skipped++
			continue
		}

		if opts.DryRun {
			bootstrapped++
			a.Logger.Info().Str("product_id", product.ID).
				Str("price", product.Price.String()).
				Msg("dry-run: would bootstrap timeline")
			continue
		}

		if _, err := svc.GetHistory(ctx, product.ID); err != nil {
			failed++
			a.Logger.Error().Err(err).Str("product_id", product.ID).Msg("backfill bootstrap failed")
			continue
		}
		bootstrapped++
	}

	a.Logger.Info().
		Int("bootstrapped", bootstrapped).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("backfill complete")

	if failed > 0 {
		return errors.New("some products failed to backfill; check logs")
	}
	return nil
}
