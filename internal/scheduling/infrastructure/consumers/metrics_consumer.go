// Package consumers holds event consumers run by the worker binary.
package consumers

import (
	"context"
	"log/slog"

	"github.com/recruitflow/scheduler/internal/shared/infrastructure/eventbus"
	"github.com/recruitflow/scheduler/pkg/observability"
)

// MetricsConsumer translates scheduling events into counters.
type MetricsConsumer struct {
	metrics observability.Metrics
}

// NewMetricsConsumer creates a metrics consumer.
func NewMetricsConsumer(metrics observability.Metrics) *MetricsConsumer {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &MetricsConsumer{metrics: metrics}
}

// counterByRoutingKey maps event routing keys to their counter metric.
var counterByRoutingKey = map[string]string{
	"scheduling.hold.acquired":       observability.MetricHoldsAcquired,
	"scheduling.booking.confirmed":   observability.MetricBookingsConfirmed,
	"scheduling.booking.failed":      observability.MetricBookingsFailed,
	"scheduling.booking.cancelled":   observability.MetricBookingsCancelled,
	"scheduling.booking.rescheduled": observability.MetricReschedules,
}

func (c *MetricsConsumer) EventTypes() []string {
	types := make([]string, 0, len(counterByRoutingKey))
	for key := range counterByRoutingKey {
		types = append(types, key)
	}
	return types
}

func (c *MetricsConsumer) Handle(_ context.Context, event *eventbus.ConsumedEvent) error {
	c.metrics.Counter(observability.MetricEventsConsumed, 1,
		observability.T("routing_key", event.RoutingKey))
	if name, ok := counterByRoutingKey[event.RoutingKey]; ok {
		c.metrics.Counter(name, 1)
	}
	return nil
}

// NotificationConsumer delivers candidate-facing notifications. Delivery is
// currently a structured log entry; the channel adapters hang off here.
type NotificationConsumer struct {
	logger *slog.Logger
}

// NewNotificationConsumer creates a notification consumer.
func NewNotificationConsumer(logger *slog.Logger) *NotificationConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationConsumer{logger: logger}
}

func (c *NotificationConsumer) EventTypes() []string {
	return []string{
		"scheduling.notification.proposed",
		"scheduling.notification.confirmed",
		"scheduling.notification.cancelled",
	}
}

func (c *NotificationConsumer) Handle(_ context.Context, event *eventbus.ConsumedEvent) error {
	c.logger.Info("delivering candidate notification",
		"routing_key", event.RoutingKey,
		"candidate_id", event.AggregateID,
		"event_id", event.EventID,
	)
	return nil
}
