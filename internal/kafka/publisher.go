package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/storefront-orders/internal/events"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/segmentio/kafka-go"
)

type sink interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// EventPublisher routes envelopes to the producer of their topic.
type EventPublisher struct {
	sinks     map[string]sink
	producers []*Producer
}

var _ events.Publisher = (*EventPublisher)(nil)

// NewEventPublisher starts one producer per known topic.
func NewEventPublisher(brokers []string, buf int, log logging.Logger) *EventPublisher {
	p := &EventPublisher{sinks: map[string]sink{}}
	for _, topic := range []string{events.TopicAccountRegistered, events.TopicOrderPlaced} {
		prod := NewProducer(brokers, topic, buf, log)
		prod.Start()
		p.sinks[topic] = prod
		p.producers = append(p.producers, prod)
	}
	return p
}

func (p *EventPublisher) Publish(ctx context.Context, env events.Envelope) error {
	topic, ok := events.TopicFor(env.EventType)
	if !ok {
		return fmt.Errorf("kafka: no topic for event type %q", env.EventType)
	}
	s, ok := p.sinks[topic]
	if !ok {
		return fmt.Errorf("kafka: no producer for topic %q", topic)
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return s.Publish(ctx, env.Key, b, EventHeaders(env)...)
}

// Close flushes every producer.
func (p *EventPublisher) Close() {
	for _, prod := range p.producers {
		prod.Close()
	}
	for _, prod := range p.producers {
		prod.WaitClosed()
	}
}
