package application_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/stretchr/testify/assert"
)

func TestLoadBalancer_PenaltyFavorsUnderloaded(t *testing.T) {
	lb := application.NewLoadBalancer(0)
	busy, idle := uuid.New(), uuid.New()

	lb.RecordBooking([]uuid.UUID{busy})
	lb.RecordBooking([]uuid.UUID{busy})
	lb.RecordBooking([]uuid.UUID{busy})
	lb.RecordBooking([]uuid.UUID{idle})

	assert.Greater(t, lb.Penalty([]uuid.UUID{busy}), lb.Penalty([]uuid.UUID{idle}))
	assert.Equal(t, 0.0, lb.Penalty([]uuid.UUID{uuid.New()}))
}

func TestLoadBalancer_CancellationReversesBooking(t *testing.T) {
	lb := application.NewLoadBalancer(0)
	id := uuid.New()

	lb.RecordBooking([]uuid.UUID{id})
	lb.RecordBooking([]uuid.UUID{id})
	assert.Equal(t, 2, lb.Count(id))

	lb.RecordCancellation([]uuid.UUID{id})
	assert.Equal(t, 1, lb.Count(id))

	// Cancelling with nothing recorded is a no-op.
	lb.RecordCancellation([]uuid.UUID{id})
	lb.RecordCancellation([]uuid.UUID{id})
	assert.Equal(t, 0, lb.Count(id))
}

func TestLoadBalancer_WindowExpiresOldBookings(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	lb := application.NewLoadBalancer(7 * 24 * time.Hour).WithClock(clock.Now)
	id := uuid.New()

	lb.RecordBooking([]uuid.UUID{id})
	clock.Advance(3 * 24 * time.Hour)
	lb.RecordBooking([]uuid.UUID{id})
	assert.Equal(t, 2, lb.Count(id))

	// Five more days: the first booking is now outside the window.
	clock.Advance(5 * 24 * time.Hour)
	assert.Equal(t, 1, lb.Count(id))

	clock.Advance(7 * 24 * time.Hour)
	assert.Equal(t, 0, lb.Count(id))
	assert.Equal(t, 0.0, lb.Penalty([]uuid.UUID{id}))
}

func TestLoadBalancer_EmptyPoolHasNoPenalty(t *testing.T) {
	lb := application.NewLoadBalancer(0)
	assert.Equal(t, 0.0, lb.Penalty([]uuid.UUID{uuid.New(), uuid.New()}))
}
