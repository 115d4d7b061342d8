// Package application implements the interview scheduling orchestrator:
// availability aggregation, slot ranking, load balancing, slot holds,
// booking confirmation with compensating rollback, and rescheduling.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	sharedDomain "github.com/recruitflow/scheduler/internal/shared/domain"
)

var (
	// ErrCircuitOpen is returned when a provider's circuit breaker is open
	// and calls short-circuit without reaching the provider.
	ErrCircuitOpen = errors.New("provider circuit open")

	// ErrInsufficientAvailabilityData is returned when availability data is
	// unavailable for every required interviewer.
	ErrInsufficientAvailabilityData = errors.New("availability data unavailable for all required interviewers")

	// ErrHoldExpired is returned when a confirmation arrives after the
	// hold's lease lapsed.
	ErrHoldExpired = errors.New("hold expired")

	// ErrSlotNoLongerAvailable is returned when a late conflict is detected
	// at confirmation time.
	ErrSlotNoLongerAvailable = errors.New("slot no longer available")

	// ErrBookingFailed is returned after provider retries are exhausted and
	// the partial booking was rolled back.
	ErrBookingFailed = errors.New("booking failed after rollback")

	// ErrNeedsRescheduling is returned when a booking was cancelled but no
	// replacement proposal could be produced. The interview must be
	// rescheduled manually or retried.
	ErrNeedsRescheduling = errors.New("booking cancelled, rescheduling required")
)

// ProviderError wraps a calendar provider failure with its classification.
// Transient failures are retried with backoff; permanent ones abandon the
// attempt immediately.
type ProviderError struct {
	Provider  string
	Op        string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("provider %s: %s: %s failure: %v", e.Provider, e.Op, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether an error is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}

// EventDetails carries the data needed to create one calendar event.
type EventDetails struct {
	BookingID     uuid.UUID
	RequestID     uuid.UUID
	CandidateID   uuid.UUID
	InterviewType domain.InterviewType
	Slot          domain.TimeRange
	Title         string
	Location      string
	VideoURL      string
	Notes         string
}

// CalendarProvider is the adapter boundary to one external calendar system.
// Implementations classify failures via ProviderError.
type CalendarProvider interface {
	// ID identifies the provider instance (e.g. "google", "caldav").
	ID() string

	// FetchBusyIntervals returns the interviewer's busy ranges inside the
	// window, in UTC.
	FetchBusyIntervals(ctx context.Context, interviewerID uuid.UUID, window domain.TimeRange) ([]domain.TimeRange, error)

	// CreateEvent creates a calendar event on the interviewer's calendar
	// and returns the provider's event id.
	CreateEvent(ctx context.Context, interviewerID uuid.UUID, details EventDetails) (string, error)

	// CancelEvent removes a previously created event.
	CancelEvent(ctx context.Context, eventID string) error
}

// ProviderRegistry resolves the provider responsible for an interviewer's
// calendar.
type ProviderRegistry interface {
	ProviderFor(providerID string) (CalendarProvider, bool)
}

// NotificationKind tags outbound candidate notifications.
type NotificationKind string

const (
	NotifyProposed  NotificationKind = "proposed"
	NotifyConfirmed NotificationKind = "confirmed"
	NotifyCancelled NotificationKind = "cancelled"
)

// NotificationDispatcher is fire-and-forget: failures are logged by the
// implementation and never block a booking decision.
type NotificationDispatcher interface {
	Notify(ctx context.Context, candidateID uuid.UUID, kind NotificationKind, details map[string]string)
}

// AuditEntry is one immutable record of an orchestrator state transition.
type AuditEntry struct {
	Actor     string
	Action    string
	Subject   uuid.UUID
	Rationale string
	At        time.Time
}

// AuditRecorder receives audit entries. Correctness never depends on it
// succeeding synchronously.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// EventPublisher dispatches domain events to the event bus.
type EventPublisher interface {
	PublishDomainEvent(ctx context.Context, event sharedDomain.DomainEvent) error
}

// publishAll publishes and clears an aggregate's uncommitted events,
// logging failures without propagating them.
func publishAll(ctx context.Context, publisher EventPublisher, agg sharedDomain.AggregateRoot) {
	if publisher == nil {
		return
	}
	for _, ev := range agg.DomainEvents() {
		_ = publisher.PublishDomainEvent(ctx, ev)
	}
	agg.ClearDomainEvents()
}
