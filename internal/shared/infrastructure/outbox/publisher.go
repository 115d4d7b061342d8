package outbox

import (
	"context"

	"github.com/recruitflow/scheduler/internal/shared/domain"
)

// Publisher persists domain events to the outbox instead of publishing them
// directly. The processor relays them to the broker, so an event is never
// lost between a committed state change and a broker outage.
type Publisher struct {
	repo Repository
}

// NewPublisher creates an outbox-backed event publisher.
func NewPublisher(repo Repository) *Publisher {
	return &Publisher{repo: repo}
}

// PublishDomainEvent stores the event for asynchronous delivery.
func (p *Publisher) PublishDomainEvent(ctx context.Context, event domain.DomainEvent) error {
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}
	return p.repo.Save(ctx, msg)
}
