// Package notify delivers candidate-facing notifications over the event
// bus. A downstream consumer turns them into email or chat messages; the
// scheduler itself only emits them.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/eventbus"
)

// RoutingKeyPrefix namespaces notification messages on the bus.
const RoutingKeyPrefix = "scheduling.notification."

// Message is the wire format of one candidate notification.
type Message struct {
	CandidateID uuid.UUID         `json:"candidate_id"`
	Kind        string            `json:"kind"`
	Details     map[string]string `json:"details,omitempty"`
	SentAt      time.Time         `json:"sent_at"`
}

// BusDispatcher publishes notifications to the event bus. Dispatch is
// fire-and-forget; publish failures are logged and dropped.
type BusDispatcher struct {
	publisher eventbus.Publisher
	logger    *slog.Logger
}

// NewBusDispatcher creates a bus-backed notification dispatcher.
func NewBusDispatcher(publisher eventbus.Publisher, logger *slog.Logger) *BusDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusDispatcher{publisher: publisher, logger: logger}
}

// Notify publishes one notification message, wrapped in the standard event
// envelope so bus consumers see a uniform shape.
func (d *BusDispatcher) Notify(ctx context.Context, candidateID uuid.UUID, kind application.NotificationKind, details map[string]string) {
	msg := Message{
		CandidateID: candidateID,
		Kind:        string(kind),
		Details:     details,
		SentAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error("failed to marshal notification",
			"candidate_id", candidateID,
			"kind", kind,
			"error", err,
		)
		return
	}

	routingKey := RoutingKeyPrefix + string(kind)
	envelope := eventbus.ConsumedEvent{
		EventID:       uuid.New(),
		AggregateID:   candidateID,
		AggregateType: "notification",
		RoutingKey:    routingKey,
		OccurredAt:    msg.SentAt,
		Payload:       payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		d.logger.Error("failed to marshal notification envelope",
			"candidate_id", candidateID,
			"kind", kind,
			"error", err,
		)
		return
	}

	if err := d.publisher.Publish(ctx, routingKey, body); err != nil {
		d.logger.Error("failed to publish notification",
			"candidate_id", candidateID,
			"kind", kind,
			"error", err,
		)
	}
}
