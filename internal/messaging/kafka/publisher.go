// Package kafka publishes order domain events with segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
	"github.com/nsridhar76/go-orderpipeline/internal/messaging"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes order events keyed by order id, so all events of one
// order land on the same partition.
type Publisher struct {
	w messageWriter
}

// NewPublisher returns a Publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}}
}

func (p *Publisher) PublishOrderCompleted(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, messaging.NewOrderCompleted(o))
}

func (p *Publisher) publish(ctx context.Context, ev messaging.OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.EventType, err)
	}
	msg := kafkago.Message{
		Key:   []byte(ev.OrderID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", ev.EventType, ev.OrderID, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
