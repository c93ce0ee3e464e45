package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb), mr
}

func sampleOrder() domain.Order {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Order{
		OrderID:     "ord-1",
		Amount:      decimal.RequireFromString("100.0000"),
		Tax:         decimal.RequireFromString("18.0000"),
		Total:       decimal.RequireFromString("118.0000"),
		Status:      domain.StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
		ProcessedAt: &now,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "order:ord-1", Key("ord-1"))
}

func TestSetAndGet(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.SetWithTTL(ctx, Key("ord-1"), domain.NewCacheEntry(sampleOrder()), DefaultTTL))
	assert.Equal(t, DefaultTTL, mr.TTL(Key("ord-1")))

	got, ok, err := c.Get(ctx, Key("ord-1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.Pending)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, "118.0000", got.Total.StringFixed(domain.Scale))
	require.NotNil(t, got.ProcessedAt)
}

func TestSetIfAbsentKeepsExistingEntry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.SetWithTTL(ctx, Key("ord-1"), domain.NewCacheEntry(sampleOrder()), DefaultTTL))
	pending := domain.CacheEntry{Order: domain.Order{OrderID: "ord-1", Status: domain.StatusProcessing}, Pending: true}
	written, err := c.SetIfAbsent(ctx, Key("ord-1"), pending, DefaultTTL)
	require.NoError(t, err)
	assert.False(t, written)

	got, _, err := c.Get(ctx, Key("ord-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	written, err = c.SetIfAbsent(ctx, Key("ord-2"), pending, DefaultTTL)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, DefaultTTL, mr.TTL(Key("ord-2")))
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t)
	_, ok, err := c.Get(context.Background(), Key("nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshTTLSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.SetWithTTL(ctx, Key("ord-1"), domain.NewCacheEntry(sampleOrder()), DefaultTTL))
	mr.FastForward(50 * time.Minute)
	assert.Equal(t, 10*time.Minute, mr.TTL(Key("ord-1")))

	require.NoError(t, c.RefreshTTL(ctx, Key("ord-1"), DefaultTTL))
	assert.Equal(t, DefaultTTL, mr.TTL(Key("ord-1")))

	mr.FastForward(DefaultTTL + time.Second)
	_, ok, err := c.Get(ctx, Key("ord-1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetUndecodable(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(Key("ord-1"), "{not json"))
	_, ok, err := c.Get(context.Background(), Key("ord-1"))
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	mr.Close()

	_, _, err := c.Get(ctx, Key("ord-1"))
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	assert.ErrorIs(t, c.SetWithTTL(ctx, Key("ord-1"), domain.NewCacheEntry(sampleOrder()), DefaultTTL), domain.ErrCacheUnavailable)
	assert.ErrorIs(t, c.RefreshTTL(ctx, Key("ord-1"), DefaultTTL), domain.ErrCacheUnavailable)
}
