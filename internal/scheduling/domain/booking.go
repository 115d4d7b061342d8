package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	sharedDomain "github.com/recruitflow/scheduler/internal/shared/domain"
)

var (
	ErrBookingNotPending   = errors.New("booking is not pending")
	ErrBookingNotConfirmed = errors.New("booking is not confirmed")
)

// BookingStatus is the lifecycle state of a booking record.
type BookingStatus string

const (
	BookingPending         BookingStatus = "pending"
	BookingConfirmed       BookingStatus = "confirmed"
	BookingPartiallyFailed BookingStatus = "partially_failed"
	BookingCancelled       BookingStatus = "cancelled"
)

// EventRef points at one calendar event created for a booking.
type EventRef struct {
	InterviewerID uuid.UUID
	ProviderID    string
	EventID       string
}

// BookingRecord is the durable record of an interview booking and the single
// source of truth for interviewer conflicts. Only confirmed records count
// toward the no-double-booking invariant.
type BookingRecord struct {
	sharedDomain.BaseAggregateRoot
	requestID     uuid.UUID
	candidateID   uuid.UUID
	roleID        uuid.UUID
	interviewType InterviewType
	slot          TimeRange
	panel         PanelResolution
	eventRefs     []EventRef
	status        BookingStatus
	location      string
	videoURL      string
	notes         string
}

// NewBookingRecord creates a pending booking for a held slot.
func NewBookingRecord(requestID, candidateID, roleID uuid.UUID, interviewType InterviewType, slot TimeRange, panel PanelResolution) *BookingRecord {
	return &BookingRecord{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		requestID:         requestID,
		candidateID:       candidateID,
		roleID:            roleID,
		interviewType:     interviewType,
		slot:              slot,
		panel:             panel,
		eventRefs:         make([]EventRef, 0, len(panel.InterviewerIDs)),
		status:            BookingPending,
	}
}

func (b *BookingRecord) RequestID() uuid.UUID         { return b.requestID }
func (b *BookingRecord) CandidateID() uuid.UUID       { return b.candidateID }
func (b *BookingRecord) RoleID() uuid.UUID            { return b.roleID }
func (b *BookingRecord) InterviewType() InterviewType { return b.interviewType }
func (b *BookingRecord) Slot() TimeRange              { return b.slot }
func (b *BookingRecord) Panel() PanelResolution       { return b.panel }
func (b *BookingRecord) Status() BookingStatus        { return b.status }
func (b *BookingRecord) Location() string             { return b.location }
func (b *BookingRecord) VideoURL() string             { return b.videoURL }
func (b *BookingRecord) Notes() string                { return b.notes }

// EventRefs returns a copy of the recorded calendar event references.
func (b *BookingRecord) EventRefs() []EventRef {
	return append([]EventRef(nil), b.eventRefs...)
}

// SetDetails attaches optional logistics recovered at confirmation time.
func (b *BookingRecord) SetDetails(location, videoURL, notes string) {
	b.location = location
	b.videoURL = videoURL
	b.notes = notes
	b.Touch()
}

// AddEventRef records a calendar event created for this booking.
func (b *BookingRecord) AddEventRef(ref EventRef) {
	b.eventRefs = append(b.eventRefs, ref)
	b.Touch()
}

// ClearEventRefs drops all event references after compensating rollback.
func (b *BookingRecord) ClearEventRefs() {
	b.eventRefs = b.eventRefs[:0]
	b.Touch()
}

// Confirm moves the booking to confirmed and emits the confirmation event.
func (b *BookingRecord) Confirm() error {
	if b.status != BookingPending {
		return ErrBookingNotPending
	}
	b.status = BookingConfirmed
	b.Touch()
	b.AddDomainEvent(NewBookingConfirmed(b.ID(), b.requestID, b.candidateID, b.slot, b.panel.InterviewerIDs))
	return nil
}

// MarkPartiallyFailed records a commit that had to be rolled back.
func (b *BookingRecord) MarkPartiallyFailed(reason string) {
	b.status = BookingPartiallyFailed
	b.Touch()
	b.AddDomainEvent(NewBookingFailed(b.ID(), b.requestID, reason))
}

// Cancel moves a confirmed booking to cancelled.
func (b *BookingRecord) Cancel(reason string) error {
	if b.status != BookingConfirmed {
		return ErrBookingNotConfirmed
	}
	b.status = BookingCancelled
	b.Touch()
	b.AddDomainEvent(NewBookingCancelled(b.ID(), b.requestID, reason))
	return nil
}

// ConflictsWith reports whether the booking occupies an interviewer during an
// overlapping range. Only confirmed bookings block.
func (b *BookingRecord) ConflictsWith(interviewerID uuid.UUID, r TimeRange) bool {
	if b.status != BookingConfirmed {
		return false
	}
	if !b.slot.Overlaps(r) {
		return false
	}
	for _, id := range b.panel.InterviewerIDs {
		if id == interviewerID {
			return true
		}
	}
	return false
}

// RehydrateBookingRecord recreates a booking from persisted state.
func RehydrateBookingRecord(
	id uuid.UUID,
	requestID, candidateID, roleID uuid.UUID,
	interviewType InterviewType,
	slot TimeRange,
	panel PanelResolution,
	eventRefs []EventRef,
	status BookingStatus,
	location, videoURL, notes string,
	createdAt, updatedAt time.Time,
) *BookingRecord {
	return &BookingRecord{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		),
		requestID:     requestID,
		candidateID:   candidateID,
		roleID:        roleID,
		interviewType: interviewType,
		slot:          slot,
		panel:         panel,
		eventRefs:     append([]EventRef(nil), eventRefs...),
		status:        status,
		location:      location,
		videoURL:      videoURL,
		notes:         notes,
	}
}
