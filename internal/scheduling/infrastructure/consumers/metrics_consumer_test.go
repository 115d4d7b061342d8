package consumers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/shared/infrastructure/eventbus"
	"github.com/recruitflow/scheduler/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsConsumer_CountsByRoutingKey(t *testing.T) {
	metrics := observability.NewInMemoryMetrics()
	consumer := NewMetricsConsumer(metrics)

	events := []string{
		"scheduling.hold.acquired",
		"scheduling.booking.confirmed",
		"scheduling.booking.confirmed",
		"scheduling.booking.cancelled",
	}
	for _, key := range events {
		err := consumer.Handle(context.Background(), &eventbus.ConsumedEvent{
			EventID:    uuid.New(),
			RoutingKey: key,
		})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricHoldsAcquired))
	assert.Equal(t, int64(2), metrics.GetCounter(observability.MetricBookingsConfirmed))
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricBookingsCancelled))
	assert.Equal(t, int64(2), metrics.GetCounter(observability.MetricEventsConsumed,
		observability.T("routing_key", "scheduling.booking.confirmed")))
}

func TestMetricsConsumer_EventTypesCoverAllCounters(t *testing.T) {
	consumer := NewMetricsConsumer(nil)
	types := consumer.EventTypes()
	assert.Len(t, types, len(counterByRoutingKey))
	for key := range counterByRoutingKey {
		assert.Contains(t, types, key)
	}
}

func TestNotificationConsumer_HandlesAllKinds(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	consumer := NewNotificationConsumer(logger)

	require.Len(t, consumer.EventTypes(), 3)
	for _, key := range consumer.EventTypes() {
		err := consumer.Handle(context.Background(), &eventbus.ConsumedEvent{
			EventID:     uuid.New(),
			AggregateID: uuid.New(),
			RoutingKey:  key,
		})
		require.NoError(t, err)
	}
}
