package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nsridhar76/go-orderpipeline/internal/cache"
	"github.com/nsridhar76/go-orderpipeline/internal/config"
	"github.com/nsridhar76/go-orderpipeline/internal/httpapi"
	"github.com/nsridhar76/go-orderpipeline/internal/logging"
	"github.com/nsridhar76/go-orderpipeline/internal/metrics"
	"github.com/nsridhar76/go-orderpipeline/internal/queue"
	"github.com/nsridhar76/go-orderpipeline/internal/service"
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
		log.Fatalf("orders-api failed: %v", err)
	}
}

func run(cfg config.Config) error {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Submissions fail with queue_unavailable until Redis is back.
		logger.Warn("redis not reachable at startup", "addr", cfg.Redis.Addr, "err", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	m := metrics.NewRegistry()
	svc := service.New(
		queue.NewRedisStream(rdb),
		cache.NewRedisCache(rdb),
		postgres.New(pool),
		service.Config{StreamKey: cfg.Queue.StreamKey, CacheTTL: cfg.Cache.TTL},
		m,
		logger,
	)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(svc, m.Handler(), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
