package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed in half-open
	// state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state.
	Timeout time.Duration

	// FailureThreshold trips the breaker after this many consecutive
	// failures.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Resilient decorates a calendar provider with a circuit breaker. An open
// circuit surfaces application.ErrCircuitOpen so callers can degrade
// instead of piling timeouts on a struggling upstream.
type Resilient struct {
	inner   application.CalendarProvider
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewResilient wraps a provider with breaker protection.
func NewResilient(inner application.CalendarProvider, cfg BreakerConfig, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        inner.ID(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"provider", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &Resilient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// ID implements application.CalendarProvider.
func (r *Resilient) ID() string { return r.inner.ID() }

// FetchBusyIntervals implements application.CalendarProvider.
func (r *Resilient) FetchBusyIntervals(ctx context.Context, interviewerID uuid.UUID, window domain.TimeRange) ([]domain.TimeRange, error) {
	result, err := r.execute(func() (any, error) {
		return r.inner.FetchBusyIntervals(ctx, interviewerID, window)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.TimeRange), nil
}

// CreateEvent implements application.CalendarProvider.
func (r *Resilient) CreateEvent(ctx context.Context, interviewerID uuid.UUID, details application.EventDetails) (string, error) {
	result, err := r.execute(func() (any, error) {
		return r.inner.CreateEvent(ctx, interviewerID, details)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// CancelEvent implements application.CalendarProvider.
func (r *Resilient) CancelEvent(ctx context.Context, eventID string) error {
	_, err := r.execute(func() (any, error) {
		return nil, r.inner.CancelEvent(ctx, eventID)
	})
	return err
}

func (r *Resilient) execute(fn func() (any, error)) (any, error) {
	result, err := r.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, application.ErrCircuitOpen
	}
	return result, err
}
