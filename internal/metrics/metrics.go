package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// Admission and reads
	Accepted    prometheus.Counter
	Rejected    *prometheus.CounterVec
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors *prometheus.CounterVec

	// Consumer
	Processed      prometheus.Counter
	Dropped        prometheus.Counter
	LoopErrors     prometheus.Counter
	BackoffSec     prometheus.Counter
	Restarts       prometheus.Counter
	ProcessLatency prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	accepted := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_admission_accepted_total"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "orders_admission_rejected_total"}, []string{"reason"})
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_read_cache_hits_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_read_cache_misses_total"})
	cacheErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "orders_cache_errors_total"}, []string{"op"})

	processed := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_consumer_processed_total"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_consumer_dropped_total"})
	loopErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_consumer_loop_errors_total"})
	backoff := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_consumer_backoff_seconds_total"})
	restarts := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_consumer_restarts_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orders_consumer_process_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(accepted, rejected, hits, misses, cacheErrors, processed, dropped, loopErrors, backoff, restarts, latency)
	return &Registry{
		reg:            r,
		Accepted:       accepted,
		Rejected:       rejected,
		CacheHits:      hits,
		CacheMisses:    misses,
		CacheErrors:    cacheErrors,
		Processed:      processed,
		Dropped:        dropped,
		LoopErrors:     loopErrors,
		BackoffSec:     backoff,
		Restarts:       restarts,
		ProcessLatency: latency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
