package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// RedisCache implements Cache with JSON documents in Redis.
type RedisCache struct {
	rdb redis.UniversalClient
}

func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("%w: get %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A document we cannot read is as good as absent.
		return domain.CacheEntry{}, false, fmt.Errorf("%w: decode %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return entry, true, nil
}

func (c *RedisCache) SetWithTTL(ctx context.Context, key string, entry domain.CacheEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return nil
}

func (c *RedisCache) SetIfAbsent(ctx context.Context, key string, entry domain.CacheEntry, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}
	ok, err := c.rdb.SetNX(ctx, key, raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: setnx %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return ok, nil
}

func (c *RedisCache) RefreshTTL(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("%w: expire %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	return nil
}
