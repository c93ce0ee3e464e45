package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/nsridhar76/go-orderpipeline/internal/cache"
	"github.com/nsridhar76/go-orderpipeline/internal/config"
	"github.com/nsridhar76/go-orderpipeline/internal/consumer"
	"github.com/nsridhar76/go-orderpipeline/internal/health"
	"github.com/nsridhar76/go-orderpipeline/internal/logging"
	"github.com/nsridhar76/go-orderpipeline/internal/messaging"
	"github.com/nsridhar76/go-orderpipeline/internal/messaging/kafka"
	"github.com/nsridhar76/go-orderpipeline/internal/messaging/noop"
	"github.com/nsridhar76/go-orderpipeline/internal/metrics"
	"github.com/nsridhar76/go-orderpipeline/internal/queue"
	"github.com/nsridhar76/go-orderpipeline/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (optional, ORDERPIPE_* env overrides)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("orders-worker failed: %v", err)
	}
}

func run(cfg config.Config) error {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	st := postgres.New(pool)
	if cfg.Postgres.Migrate {
		if err := st.Migrate(ctx); err != nil {
			return err
		}
	}

	var pub messaging.EventPublisher = noop.Publisher{}
	if cfg.Kafka.Enabled {
		kp := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		pub = kp
	}

	rate, err := cfg.TaxRate()
	if err != nil {
		return err
	}
	m := metrics.NewRegistry()
	proc := consumer.NewProcessor(
		queue.NewRedisStream(rdb),
		st,
		cache.NewRedisCache(rdb),
		pub,
		consumer.Config{
			StreamKey:            cfg.Queue.StreamKey,
			StartID:              cfg.Queue.StartID,
			BlockTimeout:         cfg.Queue.BlockTimeout,
			BatchSize:            cfg.Queue.BatchSize,
			TaxRate:              rate,
			CacheTTL:             cfg.Cache.TTL,
			MaxConsecutiveErrors: cfg.Consumer.MaxConsecutiveErrors,
			BaseBackoff:          cfg.Consumer.BaseBackoff,
			MaxBackoff:           cfg.Consumer.MaxBackoff,
			EntryTimeout:         cfg.Consumer.EntryTimeout,
			PublishTimeout:       cfg.Consumer.PublishTimeout,
		},
		m,
		logger,
	)

	hs := health.NewServer()
	lis, err := net.Listen("tcp", cfg.Worker.HealthAddr)
	if err != nil {
		return fmt.Errorf("listen health %s: %w", cfg.Worker.HealthAddr, err)
	}
	go func() {
		if err := hs.Serve(lis); err != nil {
			logger.Error("health server stopped", "err", err)
		}
	}()
	defer hs.Stop()

	metricsSrv := serveMetrics(cfg.Worker.MetricsAddr, m, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("worker started", "stream", cfg.Queue.StreamKey, "start_id", cfg.Queue.StartID, "kafka", cfg.Kafka.Enabled)
	return consumer.NewSupervisor(proc, cfg.Consumer.RestartCooldown, hs, m, logger).Run(ctx)
}

func serveMetrics(addr string, m *metrics.Registry, logger *slog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
	return srv
}
