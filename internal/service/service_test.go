package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsridhar76/go-orderpipeline/internal/cache"
	"github.com/nsridhar76/go-orderpipeline/internal/domain"
	"github.com/nsridhar76/go-orderpipeline/internal/metrics"
	"github.com/nsridhar76/go-orderpipeline/internal/queue"
	"github.com/nsridhar76/go-orderpipeline/internal/store/memory"
)

const stream = "orders:stream"

type harness struct {
	svc     *Service
	mr      *miniredis.Miniredis
	queue   *queue.RedisStream
	cache   *cache.RedisCache
	store   *memory.Store
	metrics *metrics.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		mr:      mr,
		queue:   queue.NewRedisStream(rdb),
		cache:   cache.NewRedisCache(rdb),
		store:   memory.New(),
		metrics: metrics.NewRegistry(),
	}
	h.svc = New(h.queue, h.cache, h.store, Config{StreamKey: stream, CacheTTL: time.Hour}, h.metrics, nil)
	h.svc.now = func() time.Time { return time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC) }
	return h
}

func (h *harness) queued(t *testing.T) []queue.Entry {
	t.Helper()
	entries, err := h.queue.ReadBlocking(context.Background(), stream, queue.StartID, 10*time.Millisecond, 100)
	require.NoError(t, err)
	return entries
}

// failingCache fails every call.
type failingCache struct{ calls int }

func (c *failingCache) Get(context.Context, string) (domain.CacheEntry, bool, error) {
	c.calls++
	return domain.CacheEntry{}, false, domain.ErrCacheUnavailable
}

func (c *failingCache) SetWithTTL(context.Context, string, domain.CacheEntry, time.Duration) error {
	c.calls++
	return domain.ErrCacheUnavailable
}

func (c *failingCache) SetIfAbsent(context.Context, string, domain.CacheEntry, time.Duration) (bool, error) {
	c.calls++
	return false, domain.ErrCacheUnavailable
}

func (c *failingCache) RefreshTTL(context.Context, string, time.Duration) error {
	c.calls++
	return domain.ErrCacheUnavailable
}

// racingQueue writes the completed record through to the cache as soon as
// the entry is appended, like a consumer that beats admission to it.
type racingQueue struct {
	queue.Queue
	cache cache.Cache
}

func (q racingQueue) Append(ctx context.Context, stream string, fields map[string]string) (string, error) {
	id, err := q.Queue.Append(ctx, stream, fields)
	if err != nil {
		return "", err
	}
	done := domain.Order{OrderID: fields[domain.FieldOrderID], Status: domain.StatusCompleted}
	return id, q.cache.SetWithTTL(ctx, cache.Key(done.OrderID), domain.NewCacheEntry(done), time.Hour)
}

// failingQueue rejects every append.
type failingQueue struct{ queue.Queue }

func (failingQueue) Append(context.Context, string, map[string]string) (string, error) {
	return "", errors.New("connection refused")
}

func TestSubmitAccepted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	acc, err := h.svc.Submit(ctx, SubmitRequest{OrderID: "ord-1", Amount: 100.00, Origin: "203.0.113.9"})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", acc.OrderID)
	assert.Equal(t, "100.0000", acc.Amount.StringFixed(domain.Scale))
	assert.NotEmpty(t, acc.EventID)

	entries := h.queued(t)
	require.Len(t, entries, 1)
	assert.Equal(t, acc.EntryID, entries[0].ID)
	assert.Equal(t, "ord-1", entries[0].Fields[domain.FieldOrderID])
	assert.Equal(t, "100.0000", entries[0].Fields[domain.FieldAmount])
	assert.Equal(t, "203.0.113.9", entries[0].Fields[domain.FieldOrigin])
	assert.Equal(t, acc.EventID, entries[0].Fields[domain.FieldEventID])

	assert.Zero(t, h.store.Len(), "admission must not write the store")
	marker, ok, err := h.cache.Get(ctx, cache.Key("ord-1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, marker.Pending)
	assert.Equal(t, domain.StatusProcessing, marker.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Accepted))
}

func TestSubmitMarkerDoesNotReplaceProcessedRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := New(racingQueue{Queue: h.queue, cache: h.cache}, h.cache, h.store, Config{StreamKey: stream, CacheTTL: time.Hour}, h.metrics, nil)

	_, err := svc.Submit(ctx, SubmitRequest{OrderID: "ord-1", Amount: 100})
	require.NoError(t, err)

	entry, ok, err := h.cache.Get(ctx, cache.Key("ord-1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, entry.Pending)
	assert.Equal(t, domain.StatusCompleted, entry.Status)
}

func TestSubmitDuplicateBeforeProcessing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, SubmitRequest{OrderID: "ord-1", Amount: 100})
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, SubmitRequest{OrderID: "ord-1", Amount: 50})

	var dup *domain.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Equal(t, domain.StatusProcessing, dup.Status)
	require.NotNil(t, dup.Snapshot)
	assert.Equal(t, "100.0000", dup.Snapshot.Amount.StringFixed(domain.Scale))

	assert.Len(t, h.queued(t), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Rejected.WithLabelValues("duplicate")))
}

func TestSubmitDuplicateFromStore(t *testing.T) {
	h := newHarness(t)
	h.store.Put(domain.Order{OrderID: "ord-9", Status: domain.StatusFailed})

	_, err := h.svc.Submit(context.Background(), SubmitRequest{OrderID: "ord-9", Amount: 10})
	var dup *domain.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, domain.StatusFailed, dup.Status)
	assert.Nil(t, dup.Snapshot)
	assert.Empty(t, h.queued(t))
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t)
	cases := []SubmitRequest{
		{OrderID: "bad id!", Amount: 10},
		{OrderID: "", Amount: 10},
		{OrderID: "ord-1", Amount: 0},
		{OrderID: "ord-1", Amount: -5},
		{OrderID: "ord-1", Amount: 1_000_000},
		{OrderID: "ord-1", Amount: math.NaN()},
		{OrderID: "ord-1", Amount: 10, CustomerID: string(make([]byte, 101))},
	}
	for _, req := range cases {
		_, err := h.svc.Submit(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrValidation, "%+v", req.OrderID)
	}
	assert.Empty(t, h.queued(t))
	assert.Empty(t, h.mr.Keys(), "validation failures have no side effects")
}

func TestSubmitCacheDownFallsBackToStore(t *testing.T) {
	h := newHarness(t)
	fc := &failingCache{}
	h.svc.cache = fc

	_, err := h.svc.Submit(context.Background(), SubmitRequest{OrderID: "ord-1", Amount: 10})
	require.NoError(t, err)
	assert.Len(t, h.queued(t), 1)

	h.store.Put(domain.Order{OrderID: "ord-2", Status: domain.StatusCompleted})
	_, err = h.svc.Submit(context.Background(), SubmitRequest{OrderID: "ord-2", Amount: 10})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Positive(t, fc.calls)
}

func TestSubmitStoreDownStillAdmits(t *testing.T) {
	h := newHarness(t)
	h.store.FindErr = domain.ErrStoreUnavailable

	_, err := h.svc.Submit(context.Background(), SubmitRequest{OrderID: "ord-1", Amount: 10})
	require.NoError(t, err)
	assert.Len(t, h.queued(t), 1)
}

func TestSubmitQueueUnavailable(t *testing.T) {
	h := newHarness(t)
	h.svc.queue = failingQueue{}

	_, err := h.svc.Submit(context.Background(), SubmitRequest{OrderID: "ord-1", Amount: 10})
	assert.ErrorIs(t, err, domain.ErrQueueUnavailable)
	_, ok, _ := h.cache.Get(context.Background(), cache.Key("ord-1"))
	assert.False(t, ok, "no marker for a rejected submission")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Rejected.WithLabelValues("queue_unavailable")))
}

func completed(id string) domain.Order {
	processed := time.Date(2026, 10, 1, 8, 0, 1, 0, time.UTC)
	return domain.Order{
		OrderID:     id,
		Amount:      decimal.RequireFromString("100.0000"),
		Tax:         decimal.RequireFromString("18.0000"),
		Total:       decimal.RequireFromString("118.0000"),
		Status:      domain.StatusCompleted,
		CreatedAt:   processed,
		UpdatedAt:   processed,
		ProcessedAt: &processed,
	}
}

func TestGetOrderMissPopulatesCacheThenHits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(completed("ord-1"))

	miss, err := h.svc.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.False(t, miss.CacheHit)
	assert.Equal(t, time.Hour, h.mr.TTL(cache.Key("ord-1")))

	h.mr.FastForward(30 * time.Minute)
	hit, err := h.svc.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, hit.CacheHit)
	assert.Equal(t, time.Hour, h.mr.TTL(cache.Key("ord-1")), "hit slides the expiry")

	for _, pair := range [][2]decimal.Decimal{
		{miss.Order.Amount, hit.Order.Amount},
		{miss.Order.Tax, hit.Order.Tax},
		{miss.Order.Total, hit.Order.Total},
	} {
		assert.True(t, pair[0].Equal(pair[1]))
	}
	assert.Equal(t, miss.Order.Status, hit.Order.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CacheMisses))
}

func TestGetOrderNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.GetOrder(context.Background(), "ord-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, h.mr.Keys())
}

func TestGetOrderPendingMarkerIsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.Submit(ctx, SubmitRequest{OrderID: "ord-1", Amount: 10})
	require.NoError(t, err)

	_, err = h.svc.GetOrder(ctx, "ord-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "processing and unknown look the same")
}

func TestGetOrderCacheDown(t *testing.T) {
	h := newHarness(t)
	h.store.Put(completed("ord-1"))
	h.svc.cache = &failingCache{}

	got, err := h.svc.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.False(t, got.CacheHit)
	assert.Equal(t, "118.0000", got.Order.Total.StringFixed(domain.Scale))
}

func TestGetOrderStoreDown(t *testing.T) {
	h := newHarness(t)
	h.store.FindErr = domain.ErrStoreUnavailable
	_, err := h.svc.GetOrder(context.Background(), "ord-1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestGetOrderInvalidID(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.GetOrder(context.Background(), "bad id!")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
