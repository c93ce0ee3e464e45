// Package postgres implements store.Store with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// Schema is the single-table layout the store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id           BIGSERIAL PRIMARY KEY,
	order_id     VARCHAR(100) NOT NULL UNIQUE,
	amount       NUMERIC(14,4) NOT NULL,
	tax          NUMERIC(14,4) NOT NULL,
	total        NUMERIC(14,4) NOT NULL,
	status       VARCHAR(20) NOT NULL DEFAULT 'processing'
	             CHECK (status IN ('processing', 'completed', 'failed')),
	customer_id  VARCHAR(100),
	description  TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at TIMESTAMPTZ
);
`

const orderColumns = `order_id, amount::text, tax::text, total::text, status,
	COALESCE(customer_id, ''), COALESCE(description, ''), created_at, updated_at, processed_at`

const upsertSQL = `
INSERT INTO orders (order_id, amount, tax, total, status, customer_id, description, processed_at)
VALUES ($1, $2::numeric, $3::numeric, $4::numeric, 'completed', NULLIF($5, ''), NULLIF($6, ''), now())
ON CONFLICT (order_id) DO UPDATE SET
	amount       = EXCLUDED.amount,
	tax          = EXCLUDED.tax,
	total        = EXCLUDED.total,
	status       = 'completed',
	customer_id  = COALESCE(EXCLUDED.customer_id, orders.customer_id),
	description  = COALESCE(EXCLUDED.description, orders.description),
	processed_at = now(),
	updated_at   = now()
RETURNING ` + orderColumns

const findSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return pool, nil
}

// Store is a pgx-backed order store. Concurrent upserts of the same order_id
// are resolved by the unique constraint, not by application locking.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the orders table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("%w: migrate: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) UpsertOrder(ctx context.Context, o domain.ProcessedOrder) (domain.Order, error) {
	row := s.pool.QueryRow(ctx, upsertSQL,
		o.OrderID,
		o.Amount.StringFixed(domain.Scale),
		o.Tax.StringFixed(domain.Scale),
		o.Total.StringFixed(domain.Scale),
		o.CustomerID,
		o.Description,
	)
	order, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: upsert %s: %v", domain.ErrStoreUnavailable, o.OrderID, err)
	}
	return order, nil
}

func (s *Store) FindOrder(ctx context.Context, orderID string) (domain.Order, bool, error) {
	order, err := scanOrder(s.pool.QueryRow(ctx, findSQL, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("%w: find %s: %v", domain.ErrStoreUnavailable, orderID, err)
	}
	return order, true, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                  domain.Order
		amount, tax, total string
		status             string
		processedAt        *time.Time
	)
	if err := row.Scan(&o.OrderID, &amount, &tax, &total, &status,
		&o.CustomerID, &o.Description, &o.CreatedAt, &o.UpdatedAt, &processedAt); err != nil {
		return domain.Order{}, err
	}
	var err error
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Order{}, fmt.Errorf("parse amount: %w", err)
	}
	if o.Tax, err = decimal.NewFromString(tax); err != nil {
		return domain.Order{}, fmt.Errorf("parse tax: %w", err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, fmt.Errorf("parse total: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	o.ProcessedAt = processedAt
	return o, nil
}
