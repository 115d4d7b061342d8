package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound = errors.New("booking not found")

	// ErrBookingOverlap is returned by Save when committing a confirmed
	// booking would leave an interviewer double-booked. Repositories must
	// enforce this check atomically with the write.
	ErrBookingOverlap = errors.New("confirmed booking overlaps an existing one")
)

// BookingRepository persists booking records. It is the only store consulted
// for the no-double-booking invariant.
type BookingRepository interface {
	// Save persists a booking (create or update). Saving a confirmed
	// booking fails with ErrBookingOverlap if any interviewer on the panel
	// already has a confirmed booking overlapping the slot.
	Save(ctx context.Context, booking *BookingRecord) error

	// FindByID finds a booking by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*BookingRecord, error)

	// FindByRequestID finds the booking created for a scheduling request,
	// if any. Used for idempotent confirmation.
	FindByRequestID(ctx context.Context, requestID uuid.UUID) (*BookingRecord, error)

	// FindConfirmedOverlapping returns confirmed bookings for an
	// interviewer whose slot overlaps the given range.
	FindConfirmedOverlapping(ctx context.Context, interviewerID uuid.UUID, r TimeRange) ([]*BookingRecord, error)
}

// InterviewerDirectory supplies interviewer records and panel data. It is an
// external collaborator; the orchestrator never mutates it.
type InterviewerDirectory interface {
	GetInterviewers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Interviewer, error)
}
