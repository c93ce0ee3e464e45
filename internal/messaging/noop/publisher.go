package noop

import (
	"context"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// Publisher is a no-op EventPublisher used when Kafka is not configured.
type Publisher struct{}

func (Publisher) PublishOrderCompleted(_ context.Context, _ *domain.Order) error { return nil }
