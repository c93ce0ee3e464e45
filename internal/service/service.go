// Package service implements the Admission API: order submission and the
// cache-aside order lookup.
package service

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nsridhar76/go-orderpipeline/internal/cache"
	"github.com/nsridhar76/go-orderpipeline/internal/metrics"
	"github.com/nsridhar76/go-orderpipeline/internal/queue"
	"github.com/nsridhar76/go-orderpipeline/internal/store"
)

type Config struct {
	StreamKey string
	CacheTTL  time.Duration
}

// Service owns the clients it was constructed with; it does not close them.
type Service struct {
	queue   queue.Queue
	cache   cache.Cache
	store   store.Store
	cfg     Config
	metrics *metrics.Registry
	log     *slog.Logger

	now   func() time.Time
	newID func() string
}

func New(q queue.Queue, c cache.Cache, s store.Store, cfg Config, m *metrics.Registry, log *slog.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		queue:   q,
		cache:   c,
		store:   s,
		cfg:     cfg,
		metrics: m,
		log:     log,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}
