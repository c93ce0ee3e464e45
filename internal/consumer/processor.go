// Package consumer turns queued order submissions into persisted, cached orders.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nsridhar76/go-orderpipeline/internal/cache"
	"github.com/nsridhar76/go-orderpipeline/internal/domain"
	"github.com/nsridhar76/go-orderpipeline/internal/messaging"
	"github.com/nsridhar76/go-orderpipeline/internal/metrics"
	"github.com/nsridhar76/go-orderpipeline/internal/queue"
	"github.com/nsridhar76/go-orderpipeline/internal/store"
)

// ErrCircuitOpen is returned by Run once consecutive loop errors reach the
// configured ceiling. The supervisor restarts the processor after a cooldown.
var ErrCircuitOpen = errors.New("consumer circuit open")

type Config struct {
	StreamKey string
	// StartID is where a fresh processor begins: queue.TailID for entries
	// appended after start, queue.StartID to replay the whole stream.
	StartID              string
	BlockTimeout         time.Duration
	BatchSize            int64
	TaxRate              decimal.Decimal
	CacheTTL             time.Duration
	MaxConsecutiveErrors int
	BaseBackoff          time.Duration
	MaxBackoff           time.Duration
	EntryTimeout         time.Duration
	// PublishTimeout bounds the completion event separately, so an
	// unreachable broker costs each entry at most this long.
	PublishTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.StartID == "" {
		c.StartID = queue.TailID
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.TaxRate.IsZero() {
		c.TaxRate = domain.DefaultTaxRate
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = cache.DefaultTTL
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.EntryTimeout <= 0 {
		c.EntryTimeout = 10 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	return c
}

// Processor reads one queue stream as an independent reader. Several
// processes may read the same stream; duplicates are absorbed by the upsert.
type Processor struct {
	queue     queue.Queue
	store     store.Store
	cache     cache.Cache
	publisher messaging.EventPublisher
	cfg       Config
	metrics   *metrics.Registry
	log       *slog.Logger

	// position is the id of the last finished entry. It outlives Run so a
	// restarted loop re-reads the entry that failed.
	position string

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

func NewProcessor(q queue.Queue, s store.Store, c cache.Cache, pub messaging.EventPublisher, cfg Config, m *metrics.Registry, log *slog.Logger) *Processor {
	cfg = cfg.withDefaults()
	if m == nil {
		m = metrics.NewRegistry()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		queue:     q,
		store:     s,
		cache:     c,
		publisher: pub,
		cfg:       cfg,
		metrics:   m,
		log:       log.With("stream", cfg.StreamKey),
		position:  cfg.StartID,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// Position returns the id of the last entry the processor finished.
func (p *Processor) Position() string { return p.position }

// Run processes entries until ctx is cancelled (returns nil) or the error
// ceiling is hit (returns ErrCircuitOpen). Cancellation is observed before
// each read, before each entry and during backoff; an entry already being
// processed is always finished.
func (p *Processor) Run(ctx context.Context) error {
	p.log.InfoContext(ctx, "consumer started", "position", p.position)
	consecutive := 0
	for {
		if ctx.Err() != nil {
			p.log.Info("consumer stopping", "position", p.position)
			return nil
		}

		err := p.iterate(ctx)
		if err == nil {
			consecutive = 0
			continue
		}
		if ctx.Err() != nil {
			p.log.Info("consumer stopping", "position", p.position)
			return nil
		}

		consecutive++
		p.metrics.LoopErrors.Inc()
		if consecutive >= p.cfg.MaxConsecutiveErrors {
			p.log.ErrorContext(ctx, "consumer giving up", "attempt", consecutive, "err", err)
			return fmt.Errorf("%w after %d consecutive errors: %v", ErrCircuitOpen, consecutive, err)
		}

		delay := Backoff(consecutive, p.cfg.BaseBackoff, p.cfg.MaxBackoff)
		p.log.ErrorContext(ctx, "consumer iteration failed", "attempt", consecutive, "delay", delay, "err", err)
		p.metrics.BackoffSec.Add(delay.Seconds())
		if err := p.sleep(ctx, delay); err != nil {
			p.log.Info("consumer stopping", "position", p.position)
			return nil
		}
	}
}

func (p *Processor) iterate(ctx context.Context) error {
	if p.position == queue.TailID {
		last, err := p.queue.LastID(ctx, p.cfg.StreamKey)
		if err != nil {
			return fmt.Errorf("resolve start position: %w", err)
		}
		p.position = last
	}

	entries, err := p.queue.ReadBlocking(ctx, p.cfg.StreamKey, p.position, p.cfg.BlockTimeout, p.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("read after %s: %w", p.position, err)
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil
		}
		if err := p.handle(ctx, e); err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
		p.position = e.ID
	}
	return nil
}

// handle processes a single entry. A nil return means the entry is done,
// either persisted or dropped as malformed.
func (p *Processor) handle(ctx context.Context, e queue.Entry) error {
	ev, err := domain.DecodeOrderEvent(e.Fields)
	if err != nil {
		p.metrics.Dropped.Inc()
		p.log.WarnContext(ctx, "dropping malformed entry", "entry_id", e.ID, "err", err)
		return nil
	}

	start := p.now()
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.EntryTimeout)
	defer cancel()

	order, err := p.store.UpsertOrder(ectx, domain.Process(ev, p.cfg.TaxRate))
	if err != nil {
		return fmt.Errorf("persist order %s: %w", ev.OrderID, err)
	}

	if err := p.cache.SetWithTTL(ectx, cache.Key(order.OrderID), domain.NewCacheEntry(order), p.cfg.CacheTTL); err != nil {
		p.metrics.CacheErrors.WithLabelValues("set").Inc()
		p.log.WarnContext(ctx, "write-through failed", "order_id", order.OrderID, "entry_id", e.ID, "err", err)
	}
	p.publish(ctx, &order)

	p.metrics.Processed.Inc()
	p.metrics.ProcessLatency.Observe(p.now().Sub(start).Seconds())
	p.log.DebugContext(ctx, "order processed", "order_id", order.OrderID, "entry_id", e.ID, "total", order.Total.StringFixed(domain.Scale))
	return nil
}

func (p *Processor) publish(ctx context.Context, o *domain.Order) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.PublishTimeout)
	defer cancel()
	if err := p.publisher.PublishOrderCompleted(pctx, o); err != nil {
		p.log.WarnContext(ctx, "completion event not published", "order_id", o.OrderID, "err", err)
	}
}

// Backoff returns min(base * 2^(attempt-1), max).
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
