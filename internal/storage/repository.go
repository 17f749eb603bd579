package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrProductNotFound indicates the referenced catalog item does not exist.
	ErrProductNotFound = errors.New("storage: product not found")
)

const (
	insertEventSQL = `INSERT INTO price_events (
        product_id,
        price,
        previous_price,
        change_kind,
        recorded_at
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    RETURNING id, created_at;`

	// Relies on the partial unique index price_events_initial_uidx
	// (product_id WHERE change_kind = 'initial'): a concurrent bootstrap
	// loses the insert and gets no row back.
	insertInitialEventSQL = `INSERT INTO price_events (
        product_id,
        price,
        previous_price,
        change_kind,
        recorded_at
    ) VALUES (
        $1,$2,NULL,'initial',$3
    )
    ON CONFLICT (product_id) WHERE change_kind = 'initial' DO NOTHING
    RETURNING id, created_at;`

	listEventsByProductSQL = `SELECT
        id,
        product_id,
        price,
        previous_price,
        change_kind,
        recorded_at,
        created_at
    FROM price_events
    WHERE product_id = $1
    ORDER BY recorded_at, id;`

	latestEventSQL = `SELECT
        id,
        product_id,
        price,
        previous_price,
        change_kind,
        recorded_at,
        created_at
    FROM price_events
    WHERE product_id = $1
    ORDER BY recorded_at DESC, id DESC
    LIMIT 1;`

	listRecentEventsSQL = `SELECT
        id,
        product_id,
        price,
        previous_price,
        change_kind,
        recorded_at,
        created_at
    FROM price_events
    ORDER BY recorded_at DESC, id DESC
    LIMIT $1;`

	countEventsSQL = `SELECT COUNT(*) FROM price_events;`

	findProductSQL = `SELECT id, name, price, created_at
    FROM products
    WHERE id = $1;`

	listProductsSQL = `SELECT id, name, price, created_at
    FROM products
    ORDER BY id;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// EventStore defines append-only persistence for the price timeline.
type EventStore interface {
	InsertPriceEvent(ctx context.Context, event PriceEvent) (PriceEvent, error)
	InsertInitialEvent(ctx context.Context, event PriceEvent) (PriceEvent, bool, error)
	ListEventsByProduct(ctx context.Context, productID string) ([]PriceEvent, error)
	LatestEvent(ctx context.Context, productID string) (*PriceEvent, error)
}

// CatalogReader exposes read-only access to catalog items.
type CatalogReader interface {
	FindProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to the price timeline and catalog reads.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertPriceEvent appends one event to a product's timeline.
func (s *Store) InsertPriceEvent(ctx context.Context, event PriceEvent) (PriceEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceEvent{}, err
	}

	var previous interface{}
	if event.PreviousPrice != nil {
		previous = event.PreviousPrice.String()
	}

	row := pool.QueryRow(ctx, insertEventSQL,
		event.ProductID,
		event.Price.String(),
		previous,
		event.ChangeKind,
		event.RecordedAt,
	)
	if scanErr := row.Scan(&event.ID, &event.CreatedAt); scanErr != nil {
		return PriceEvent{}, fmt.Errorf("insert price event: %w", scanErr)
	}
	return event, nil
}

// InsertInitialEvent appends the bootstrap event for a product. The second
// return value reports whether this call won the insert; false means another
// writer already bootstrapped the product and the caller should re-read.
func (s *Store) InsertInitialEvent(ctx context.Context, event PriceEvent) (PriceEvent, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceEvent{}, false, err
	}

	row := pool.QueryRow(ctx, insertInitialEventSQL,
		event.ProductID,
		event.Price.String(),
		event.RecordedAt,
	)
	if scanErr := row.Scan(&event.ID, &event.CreatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return PriceEvent{}, false, nil
		}
		return PriceEvent{}, false, fmt.Errorf("insert initial event: %w", scanErr)
	}

	event.PreviousPrice = nil
	event.ChangeKind = ChangeInitial
	return event, true, nil
}

// ListEventsByProduct returns a product's full timeline in recorded order.
func (s *Store) ListEventsByProduct(ctx context.Context, productID string) ([]PriceEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEventsByProductSQL, productID)
	if queryErr != nil {
		return nil, fmt.Errorf("list events by product: %w", queryErr)
	}
	defer rows.Close()

	return collectEvents(rows, 0)
}

// LatestEvent returns the most recent event of a product, or nil when the
// product has no timeline yet.
func (s *Store) LatestEvent(ctx context.Context, productID string) (*PriceEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, latestEventSQL, productID)
	if queryErr != nil {
		return nil, fmt.Errorf("latest event: %w", queryErr)
	}
	defer rows.Close()

	events, err := collectEvents(rows, 1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// ListRecentEvents lists the most recently recorded events across products.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]PriceEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEventsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent events: %w", queryErr)
	}
	defer rows.Close()

	return collectEvents(rows, limit)
}

// CountEvents counts stored events.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countEventsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count events: %w", scanErr)
	}
	return count, nil
}

// FindProduct looks up one catalog item.
func (s *Store) FindProduct(ctx context.Context, id string) (Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return Product{}, err
	}

	var (
		product  Product
		priceStr string
	)
	row := pool.QueryRow(ctx, findProductSQL, id)
	if scanErr := row.Scan(&product.ID, &product.Name, &priceStr, &product.CreatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("find product: %w", scanErr)
	}

	price, convErr := decimal.NewFromString(priceStr)
	if convErr != nil {
		return Product{}, fmt.Errorf("parse product price: %w", convErr)
	}
	product.Price = price
	return product, nil
}

// ListProducts returns all catalog items.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listProductsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list products: %w", queryErr)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var (
			product  Product
			priceStr string
		)
		if err := rows.Scan(&product.ID, &product.Name, &priceStr, &product.CreatedAt); err != nil {
			return nil, err
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse product price: %w", convErr)
		}
		product.Price = price
		products = append(products, product)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return products, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

func collectEvents(rows pgx.Rows, hint int) ([]PriceEvent, error) {
	events := make([]PriceEvent, 0, hint)
	for rows.Next() {
		event, scanErr := scanPriceEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func scanPriceEvent(rows pgx.Rows) (PriceEvent, error) {
	var (
		event       PriceEvent
		priceStr    string
		previousStr sql.NullString
	)

	if err := rows.Scan(
		&event.ID,
		&event.ProductID,
		&priceStr,
		&previousStr,
		&event.ChangeKind,
		&event.RecordedAt,
		&event.CreatedAt,
	); err != nil {
		return PriceEvent{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return PriceEvent{}, fmt.Errorf("parse event price: %w", err)
	}
	event.Price = price

	if previousStr.Valid {
		previous, err := decimal.NewFromString(previousStr.String)
		if err != nil {
			return PriceEvent{}, fmt.Errorf("parse previous price: %w", err)
		}
		event.PreviousPrice = &previous
	}

	return event, nil
}

var (
	_ EventStore     = (*Store)(nil)
	_ CatalogReader  = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
