package domain

import (
	"time"

	"github.com/google/uuid"
	sharedDomain "github.com/recruitflow/scheduler/internal/shared/domain"
)

const (
	AggregateType = "Booking"

	RoutingKeyHoldAcquired     = "scheduling.hold.acquired"
	RoutingKeyHoldReleased     = "scheduling.hold.released"
	RoutingKeyBookingConfirmed = "scheduling.booking.confirmed"
	RoutingKeyBookingFailed    = "scheduling.booking.failed"
	RoutingKeyBookingCancelled = "scheduling.booking.cancelled"
	RoutingKeyRescheduled      = "scheduling.booking.rescheduled"
)

// HoldAcquired is emitted when a slot hold is taken.
type HoldAcquired struct {
	sharedDomain.BaseEvent
	SlotKey   string    `json:"slot_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewHoldAcquired creates a HoldAcquired event.
func NewHoldAcquired(requestID uuid.UUID, key SlotKey, expiresAt time.Time) HoldAcquired {
	return HoldAcquired{
		BaseEvent: sharedDomain.NewBaseEvent(requestID, AggregateType, RoutingKeyHoldAcquired),
		SlotKey:   key.String(),
		ExpiresAt: expiresAt,
	}
}

// HoldReleased is emitted when a hold is released before confirmation.
type HoldReleased struct {
	sharedDomain.BaseEvent
	SlotKey string `json:"slot_key"`
	Reason  string `json:"reason"`
}

// NewHoldReleased creates a HoldReleased event.
func NewHoldReleased(requestID uuid.UUID, key SlotKey, reason string) HoldReleased {
	return HoldReleased{
		BaseEvent: sharedDomain.NewBaseEvent(requestID, AggregateType, RoutingKeyHoldReleased),
		SlotKey:   key.String(),
		Reason:    reason,
	}
}

// BookingConfirmedEvent is emitted when all calendar events were created.
type BookingConfirmedEvent struct {
	sharedDomain.BaseEvent
	RequestID      uuid.UUID   `json:"request_id"`
	CandidateID    uuid.UUID   `json:"candidate_id"`
	StartTime      time.Time   `json:"start_time"`
	EndTime        time.Time   `json:"end_time"`
	InterviewerIDs []uuid.UUID `json:"interviewer_ids"`
}

// NewBookingConfirmed creates a BookingConfirmedEvent.
func NewBookingConfirmed(bookingID, requestID, candidateID uuid.UUID, slot TimeRange, interviewerIDs []uuid.UUID) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		BaseEvent:      sharedDomain.NewBaseEvent(bookingID, AggregateType, RoutingKeyBookingConfirmed),
		RequestID:      requestID,
		CandidateID:    candidateID,
		StartTime:      slot.Start,
		EndTime:        slot.End,
		InterviewerIDs: append([]uuid.UUID(nil), interviewerIDs...),
	}
}

// BookingFailed is emitted when a commit was rolled back.
type BookingFailed struct {
	sharedDomain.BaseEvent
	RequestID uuid.UUID `json:"request_id"`
	Reason    string    `json:"reason"`
}

// NewBookingFailed creates a BookingFailed event.
func NewBookingFailed(bookingID, requestID uuid.UUID, reason string) BookingFailed {
	return BookingFailed{
		BaseEvent: sharedDomain.NewBaseEvent(bookingID, AggregateType, RoutingKeyBookingFailed),
		RequestID: requestID,
		Reason:    reason,
	}
}

// BookingCancelledEvent is emitted when a confirmed booking is cancelled.
type BookingCancelledEvent struct {
	sharedDomain.BaseEvent
	RequestID uuid.UUID `json:"request_id"`
	Reason    string    `json:"reason"`
}

// NewBookingCancelled creates a BookingCancelledEvent.
func NewBookingCancelled(bookingID, requestID uuid.UUID, reason string) BookingCancelledEvent {
	return BookingCancelledEvent{
		BaseEvent: sharedDomain.NewBaseEvent(bookingID, AggregateType, RoutingKeyBookingCancelled),
		RequestID: requestID,
		Reason:    reason,
	}
}

// InterviewRescheduled is emitted when a booking was cancelled and its
// request re-entered the proposal flow.
type InterviewRescheduled struct {
	sharedDomain.BaseEvent
	OldBookingID uuid.UUID `json:"old_booking_id"`
	NewRequestID uuid.UUID `json:"new_request_id"`
}

// NewInterviewRescheduled creates an InterviewRescheduled event.
func NewInterviewRescheduled(oldBookingID, newRequestID uuid.UUID) InterviewRescheduled {
	return InterviewRescheduled{
		BaseEvent:    sharedDomain.NewBaseEvent(oldBookingID, AggregateType, RoutingKeyRescheduled),
		OldBookingID: oldBookingID,
		NewRequestID: newRequestID,
	}
}
