package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/nsridhar76/go-orderpipeline/internal/metrics"
)

// Runner is a loop that returns nil when its context is cancelled and an
// error when it gives up.
type Runner interface {
	Run(ctx context.Context) error
}

// StatusReporter receives lifecycle transitions, e.g. a health endpoint.
type StatusReporter interface {
	SetServing(serving bool)
}

type nopStatus struct{}

func (nopStatus) SetServing(bool) {}

// Supervisor owns a Runner's lifecycle: whenever it exits while the context
// is still live, it waits for the cooldown and starts it again. There is no
// restart ceiling.
type Supervisor struct {
	runner   Runner
	cooldown time.Duration
	status   StatusReporter
	metrics  *metrics.Registry
	log      *slog.Logger

	sleep func(context.Context, time.Duration) error
}

func NewSupervisor(r Runner, cooldown time.Duration, status StatusReporter, m *metrics.Registry, log *slog.Logger) *Supervisor {
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}
	if status == nil {
		status = nopStatus{}
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{runner: r, cooldown: cooldown, status: status, metrics: m, log: log, sleep: sleepContext}
}

// Run blocks until ctx is cancelled and the runner has drained.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		s.status.SetServing(true)
		err := s.runner.Run(ctx)
		s.status.SetServing(false)
		if ctx.Err() != nil {
			s.log.Info("consumer drained")
			return nil
		}

		s.metrics.Restarts.Inc()
		s.log.ErrorContext(ctx, "consumer exited, restarting after cooldown", "delay", s.cooldown, "err", err)
		if err := s.sleep(ctx, s.cooldown); err != nil {
			s.log.Info("consumer drained")
			return nil
		}
	}
}
