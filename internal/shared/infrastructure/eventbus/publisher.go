package eventbus

import (
	"context"
	"encoding/json"

	"github.com/recruitflow/scheduler/internal/shared/domain"
)

// Publisher defines the interface for publishing raw messages to a broker.
type Publisher interface {
	// Publish sends a message to the event bus.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close closes the publisher connection.
	Close() error
}

// DomainEventPublisher wraps a Publisher and serializes domain events into
// the ConsumedEvent envelope, so consumers see a uniform wire format
// regardless of which broker carried the message.
type DomainEventPublisher struct {
	publisher Publisher
}

// NewDomainEventPublisher creates an envelope-building publisher.
func NewDomainEventPublisher(publisher Publisher) *DomainEventPublisher {
	return &DomainEventPublisher{publisher: publisher}
}

// PublishDomainEvent envelopes and publishes a domain event.
func (p *DomainEventPublisher) PublishDomainEvent(ctx context.Context, event domain.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	envelope := ConsumedEvent{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	return p.publisher.Publish(ctx, event.RoutingKey(), body)
}

// Close closes the underlying publisher.
func (p *DomainEventPublisher) Close() error {
	return p.publisher.Close()
}
