// Package store defines the durable, authoritative order store.
package store

import (
	"context"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// Store persists processed orders keyed on order_id.
type Store interface {
	// UpsertOrder inserts the order or overwrites an existing row with the same
	// order_id, marking it completed. It returns the row as persisted.
	UpsertOrder(ctx context.Context, o domain.ProcessedOrder) (domain.Order, error)
	FindOrder(ctx context.Context, orderID string) (domain.Order, bool, error)
}
