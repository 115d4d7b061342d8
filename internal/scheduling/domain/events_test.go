package domain_test

import (
	"testing"

	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The Event suffix keeps the confirmation and cancellation event types
// from colliding with the BookingStatus constants of the same names.
func TestBookingRecord_EventTypes(t *testing.T) {
	booking := newTestBooking(t)
	require.NoError(t, booking.Confirm())
	require.NoError(t, booking.Cancel("candidate withdrew"))

	events := booking.DomainEvents()
	require.Len(t, events, 2)

	confirmed, ok := events[0].(domain.BookingConfirmedEvent)
	require.True(t, ok)
	assert.Equal(t, booking.RequestID(), confirmed.RequestID)
	assert.Equal(t, booking.ID(), confirmed.AggregateID())

	cancelled, ok := events[1].(domain.BookingCancelledEvent)
	require.True(t, ok)
	assert.Equal(t, "candidate withdrew", cancelled.Reason)

	// The status constants stay plain strings alongside the event types.
	assert.Equal(t, domain.BookingStatus("confirmed"), domain.BookingConfirmed)
	assert.Equal(t, domain.BookingStatus("cancelled"), domain.BookingCancelled)
}
