// Package cache is the best-effort read accelerator in front of the store.
package cache

import (
	"context"
	"time"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// DefaultTTL is the standard lifetime of an order entry.
const DefaultTTL = time.Hour

// Cache stores order snapshots with a per-key expiry.
type Cache interface {
	Get(ctx context.Context, key string) (domain.CacheEntry, bool, error)
	SetWithTTL(ctx context.Context, key string, entry domain.CacheEntry, ttl time.Duration) error
	// SetIfAbsent writes entry only when key holds nothing and reports
	// whether it did.
	SetIfAbsent(ctx context.Context, key string, entry domain.CacheEntry, ttl time.Duration) (bool, error)
	RefreshTTL(ctx context.Context, key string, ttl time.Duration) error
}

// Key returns the cache key of an order.
func Key(orderID string) string { return "order:" + orderID }
