// Package messaging defines event types for order domain events.
package messaging

import (
	"context"
	"time"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// Event type constants for order domain events.
const (
	EventOrderCompleted = "order.completed"
)

// OrderEvent is the Kafka message envelope for order domain events.
type OrderEvent struct {
	EventType  string    `json:"event_type"`
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount"`
	Tax        string    `json:"tax"`
	Total      string    `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher announces processed orders to downstream systems.
type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, o *domain.Order) error
}

// NewOrderCompleted builds the envelope for a completed order.
func NewOrderCompleted(o *domain.Order) OrderEvent {
	occurred := o.UpdatedAt
	if o.ProcessedAt != nil {
		occurred = *o.ProcessedAt
	}
	return OrderEvent{
		EventType:  EventOrderCompleted,
		OrderID:    o.OrderID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
		Amount:     o.Amount.StringFixed(domain.Scale),
		Tax:        o.Tax.StringFixed(domain.Scale),
		Total:      o.Total.StringFixed(domain.Scale),
		OccurredAt: occurred.UTC(),
	}
}
