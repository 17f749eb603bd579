package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"price-trend-engine/internal/alerting"
	"price-trend-engine/internal/config"
	"price-trend-engine/internal/history"
	"price-trend-engine/internal/reconciler"
	"price-trend-engine/internal/scheduler"
	"price-trend-engine/internal/server"
	"price-trend-engine/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newHistory(store *storage.Store) *history.Service {
	return history.New(a.Config, store, store, a.newNotifier(), a.Logger)
}

// Serve runs the HTTP API until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := server.New(a.newHistory(store), a.Logger)
	httpServer := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("http server shutdown failed")
		return err
	}

	a.Logger.Info().Msg("http server stopped")
	return nil
}

// Reconcile runs the periodic catalog reconciliation loop until interrupted.
func (a *App) Reconcile(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newHistory(store)
	rec := reconciler.New(svc, store, store, store, a.Config.Reconciler.AdvisoryLockKey, a.Logger)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Reconciler.Interval,
		AlignToStart: a.Config.Reconciler.AlignToBucket,
		StartupDelay: a.Config.Reconciler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Reconciler.Interval).Msg("starting reconciliation loop")
	err = sched.Run(ctx, rec.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("reconciliation loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("reconciliation loop stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting a product's series.
type ExportOptions struct {
	ProductID string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// BackfillOptions configure the bootstrap backfill job.
type BackfillOptions struct {
	DryRun bool
}

// PredictOptions configure the predict command.
type PredictOptions struct {
	ProductID string
}
