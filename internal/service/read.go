package service

import (
	"context"
	"fmt"

	"github.com/nsridhar76/go-orderpipeline/internal/cache"
	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// Lookup is the result of GetOrder.
type Lookup struct {
	Order    domain.Order
	CacheHit bool
}

// GetOrder serves an order cache-first. A hit slides the entry's expiry; a
// miss falls back to the store and repopulates the cache. Cache faults are
// never returned. domain.ErrNotFound covers both "not processed yet" and
// "never submitted".
func (s *Service) GetOrder(ctx context.Context, orderID string) (Lookup, error) {
	if err := domain.ValidateOrderID(orderID); err != nil {
		return Lookup{}, err
	}
	key := cache.Key(orderID)

	entry, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheErrors.WithLabelValues("get").Inc()
		s.log.WarnContext(ctx, "cache read failed, using store", "order_id", orderID, "err", err)
	case ok && !entry.Pending:
		if err := s.cache.RefreshTTL(ctx, key, s.cfg.CacheTTL); err != nil {
			s.metrics.CacheErrors.WithLabelValues("expire").Inc()
			s.log.WarnContext(ctx, "cache ttl refresh failed", "order_id", orderID, "err", err)
		}
		s.metrics.CacheHits.Inc()
		return Lookup{Order: entry.Order, CacheHit: true}, nil
	}
	s.metrics.CacheMisses.Inc()

	o, found, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return Lookup{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if !found {
		return Lookup{}, fmt.Errorf("%w: %s", domain.ErrNotFound, orderID)
	}

	if err := s.cache.SetWithTTL(ctx, key, domain.NewCacheEntry(o), s.cfg.CacheTTL); err != nil {
		s.metrics.CacheErrors.WithLabelValues("set").Inc()
		s.log.WarnContext(ctx, "cache populate failed", "order_id", orderID, "err", err)
	}
	return Lookup{Order: o}, nil
}
