package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerRegistry_Register(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(testLogger())

	consumer := &mockConsumer{
		eventTypes: []string{"scheduling.hold.acquired", "scheduling.hold.released"},
	}
	registry.Register(consumer)

	assert.Len(t, registry.GetConsumers("scheduling.hold.acquired"), 1)
	assert.Len(t, registry.GetConsumers("scheduling.hold.released"), 1)
	assert.Empty(t, registry.GetConsumers("scheduling.booking.confirmed"))
	assert.Equal(t, 2, registry.ConsumerCount())
}

func TestConsumerRegistry_GetAllEventTypes(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(testLogger())

	registry.Register(&mockConsumer{eventTypes: []string{"scheduling.booking.confirmed"}})
	registry.Register(&mockConsumer{eventTypes: []string{"scheduling.booking.cancelled"}})

	types := registry.GetAllEventTypes()
	assert.ElementsMatch(t, []string{
		"scheduling.booking.confirmed",
		"scheduling.booking.cancelled",
	}, types)
}

func TestConsumerRegistry_Dispatch(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(testLogger())

	consumer := &mockConsumer{eventTypes: []string{"scheduling.booking.confirmed"}}
	registry.Register(consumer)

	event := &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "scheduling.booking.confirmed",
		OccurredAt: time.Now(),
	}
	require.NoError(t, registry.Dispatch(context.Background(), event))

	require.Len(t, consumer.events, 1)
	assert.Equal(t, event.EventID, consumer.events[0].EventID)
}

func TestConsumerRegistry_DispatchNoConsumers(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(testLogger())

	event := &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "scheduling.booking.failed",
	}
	assert.NoError(t, registry.Dispatch(context.Background(), event))
}

func TestConsumerRegistry_DispatchContinuesOnFailure(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(testLogger())

	failing := &mockConsumer{
		eventTypes: []string{"scheduling.booking.confirmed"},
		handleErr:  errors.New("boom"),
	}
	healthy := &mockConsumer{eventTypes: []string{"scheduling.booking.confirmed"}}
	registry.Register(failing)
	registry.Register(healthy)

	event := &eventbus.ConsumedEvent{
		EventID:    uuid.New(),
		RoutingKey: "scheduling.booking.confirmed",
	}
	err := registry.Dispatch(context.Background(), event)

	assert.Error(t, err)
	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1)
}
