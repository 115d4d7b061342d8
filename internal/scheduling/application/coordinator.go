package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// CoordinatorConfig configures provider retry behavior during commit.
type CoordinatorConfig struct {
	// MaxAttempts bounds retries per calendar event creation.
	MaxAttempts int

	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
}

// DefaultCoordinatorConfig returns the production defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxAttempts: 3,
		BackoffBase: 250 * time.Millisecond,
	}
}

// BookingDetails carries optional logistics attached at confirmation.
type BookingDetails struct {
	Location string
	VideoURL string
	Notes    string
}

// BookingCoordinator commits a held slot as calendar events across one or
// more providers, with compensating rollback on partial failure. It owns
// BookingRecord state and is the only writer of load counters.
type BookingCoordinator struct {
	holds        *HoldManager
	bookings     domain.BookingRepository
	availability *AvailabilityAggregator
	providers    ProviderRegistry
	directory    domain.InterviewerDirectory
	load         *LoadBalancer
	publisher    EventPublisher
	notifier     NotificationDispatcher
	audit        AuditRecorder
	cfg          CoordinatorConfig
	logger       *slog.Logger
	now          func() time.Time
	sleep        func(time.Duration)
}

// NewBookingCoordinator creates a booking coordinator.
func NewBookingCoordinator(
	holds *HoldManager,
	bookings domain.BookingRepository,
	availability *AvailabilityAggregator,
	providers ProviderRegistry,
	directory domain.InterviewerDirectory,
	load *LoadBalancer,
	publisher EventPublisher,
	notifier NotificationDispatcher,
	audit AuditRecorder,
	cfg CoordinatorConfig,
	logger *slog.Logger,
) *BookingCoordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingCoordinator{
		holds:        holds,
		bookings:     bookings,
		availability: availability,
		providers:    providers,
		directory:    directory,
		load:         load,
		publisher:    publisher,
		notifier:     notifier,
		audit:        audit,
		cfg:          cfg,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		sleep:        time.Sleep,
	}
}

// WithClock overrides the coordinator's clock and backoff sleeper. Test hook.
func (c *BookingCoordinator) WithClock(now func() time.Time, sleep func(time.Duration)) *BookingCoordinator {
	c.now = now
	c.sleep = sleep
	return c
}

// Confirm commits the hold owned by the lease token as a confirmed booking.
// A retried confirm for an already-confirmed request id is a no-op returning
// the existing record.
func (c *BookingCoordinator) Confirm(ctx context.Context, req *domain.SchedulingRequest, leaseToken uuid.UUID, details BookingDetails) (*domain.BookingRecord, error) {
	// Idempotency first: a confirmed record for this request wins over any
	// hold state.
	if existing, err := c.bookings.FindByRequestID(ctx, req.ID()); err == nil && existing.Status() == domain.BookingConfirmed {
		return existing, nil
	}

	hold, err := c.holds.FindByRequest(ctx, req.ID())
	if err != nil {
		if errors.Is(err, ErrHoldNotFound) {
			return nil, ErrHoldExpired
		}
		return nil, err
	}
	if !hold.OwnedBy(leaseToken) {
		return nil, ErrHoldLeaseMismatch
	}
	if hold.Expired(c.now()) {
		_ = c.holds.Release(ctx, hold.Key, leaseToken, "expired at confirm")
		return nil, ErrHoldExpired
	}

	// Last-look revalidation against provider data that changed between
	// proposal and confirmation.
	if err := c.revalidate(ctx, hold); err != nil {
		_ = c.holds.Release(ctx, hold.Key, leaseToken, "slot no longer available")
		return nil, err
	}

	booking := domain.NewBookingRecord(req.ID(), req.CandidateID(), req.RoleID(), req.InterviewType(), hold.Slot, hold.Panel)
	booking.SetDetails(details.Location, details.VideoURL, details.Notes)

	if created, err := c.commitEvents(ctx, booking); err != nil {
		if created > 0 {
			// At least one event had been made live before the failure;
			// record the rolled-back attempt.
			booking.MarkPartiallyFailed(err.Error())
			if saveErr := c.bookings.Save(ctx, booking); saveErr != nil {
				c.logger.Error("failed to persist partially failed booking", "booking_id", booking.ID(), "error", saveErr)
			}
			publishAll(ctx, c.publisher, booking)
		}
		_ = c.holds.Release(ctx, hold.Key, leaseToken, "commit failed")
		c.recordAudit(ctx, "booking_failed", booking.ID(), err.Error())
		return nil, fmt.Errorf("%w: %v", ErrBookingFailed, err)
	}

	if err := booking.Confirm(); err != nil {
		return nil, err
	}
	if err := c.bookings.Save(ctx, booking); err != nil {
		// The repository detected a concurrent confirmed booking for an
		// overlapping slot. Undo our events; the other booking stands.
		c.rollbackEvents(ctx, booking)
		_ = c.holds.Release(ctx, hold.Key, leaseToken, "late conflict")
		if errors.Is(err, domain.ErrBookingOverlap) {
			c.recordAudit(ctx, "booking_conflict", booking.ID(), "overlap detected at commit")
			return nil, ErrSlotNoLongerAvailable
		}
		return nil, err
	}

	c.load.RecordBooking(booking.Panel().InterviewerIDs)
	_ = c.holds.Release(ctx, hold.Key, leaseToken, "superseded by booking")

	publishAll(ctx, c.publisher, booking)
	c.recordAudit(ctx, "booking_confirmed", booking.ID(), "all calendar events created")
	c.notify(ctx, booking, NotifyConfirmed)

	return booking, nil
}

// CancelBooking cancels a confirmed booking's calendar events and marks it
// cancelled.
func (c *BookingCoordinator) CancelBooking(ctx context.Context, bookingID uuid.UUID, reason string) (*domain.BookingRecord, error) {
	booking, err := c.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	c.rollbackEvents(ctx, booking)
	if err := booking.Cancel(reason); err != nil {
		return nil, err
	}
	booking.ClearEventRefs()
	if err := c.bookings.Save(ctx, booking); err != nil {
		return nil, err
	}

	c.load.RecordCancellation(booking.Panel().InterviewerIDs)
	publishAll(ctx, c.publisher, booking)
	c.recordAudit(ctx, "booking_cancelled", booking.ID(), reason)
	c.notify(ctx, booking, NotifyCancelled)

	return booking, nil
}

// revalidate re-checks availability and confirmed bookings one last time.
// Provider failures here are tolerated: the repository's overlap check at
// Save remains the hard guarantee.
func (c *BookingCoordinator) revalidate(ctx context.Context, hold *domain.Hold) error {
	for _, id := range hold.Panel.InterviewerIDs {
		overlapping, err := c.bookings.FindConfirmedOverlapping(ctx, id, hold.Slot)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return ErrSlotNoLongerAvailable
		}

		busy, err := c.availability.Revalidate(ctx, id, hold.Slot)
		if err != nil {
			c.logger.Warn("availability revalidation unavailable, proceeding",
				"interviewer_id", id, "error", err)
			continue
		}
		for _, b := range busy {
			if b.Overlaps(hold.Slot) {
				return ErrSlotNoLongerAvailable
			}
		}
	}
	return nil
}

// commitEvents creates one calendar event per panel member, in sequence.
// On failure it compensates the successes already made before returning the
// number of events that had been created live.
func (c *BookingCoordinator) commitEvents(ctx context.Context, booking *domain.BookingRecord) (int, error) {
	interviewers, err := c.directory.GetInterviewers(ctx, booking.Panel().InterviewerIDs)
	if err != nil {
		return 0, err
	}

	details := EventDetails{
		BookingID:     booking.ID(),
		RequestID:     booking.RequestID(),
		CandidateID:   booking.CandidateID(),
		InterviewType: booking.InterviewType(),
		Slot:          booking.Slot(),
		Title:         fmt.Sprintf("Interview: %s", booking.InterviewType()),
		Location:      booking.Location(),
		VideoURL:      booking.VideoURL(),
		Notes:         booking.Notes(),
	}

	created := 0
	for _, id := range booking.Panel().InterviewerIDs {
		iv, ok := interviewers[id]
		if !ok {
			c.rollbackEvents(ctx, booking)
			booking.ClearEventRefs()
			return created, fmt.Errorf("interviewer %s not found in directory", id)
		}

		provider, ok := c.providers.ProviderFor(iv.ProviderID)
		if !ok {
			c.rollbackEvents(ctx, booking)
			booking.ClearEventRefs()
			return created, fmt.Errorf("no provider adapter for %q", iv.ProviderID)
		}

		eventID, err := c.createWithRetry(ctx, provider, id, details)
		if err != nil {
			c.rollbackEvents(ctx, booking)
			booking.ClearEventRefs()
			return created, fmt.Errorf("event creation for interviewer %s: %w", id, err)
		}
		created++
		booking.AddEventRef(domain.EventRef{
			InterviewerID: id,
			ProviderID:    iv.ProviderID,
			EventID:       eventID,
		})
	}

	return created, nil
}

// createWithRetry retries transient provider failures with exponential
// backoff up to the configured cap. Open circuits and permanent failures
// abandon immediately.
func (c *BookingCoordinator) createWithRetry(ctx context.Context, provider CalendarProvider, interviewerID uuid.UUID, details EventDetails) (string, error) {
	backoff := c.cfg.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		eventID, err := provider.CreateEvent(ctx, interviewerID, details)
		if err == nil {
			return eventID, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) || !IsTransient(err) {
			return "", err
		}
		if attempt < c.cfg.MaxAttempts {
			c.logger.Warn("event creation retry",
				"provider", provider.ID(),
				"interviewer_id", interviewerID,
				"attempt", attempt,
				"error", err,
			)
			c.sleep(backoff)
			backoff *= 2
		}
	}

	return "", lastErr
}

// rollbackEvents issues compensating cancellations for every event already
// created on the booking. Failures are logged and retried once; the audit
// trail records anything left behind.
func (c *BookingCoordinator) rollbackEvents(ctx context.Context, booking *domain.BookingRecord) {
	for _, ref := range booking.EventRefs() {
		provider, ok := c.providers.ProviderFor(ref.ProviderID)
		if !ok {
			c.logger.Error("cannot compensate event, provider missing",
				"provider", ref.ProviderID, "event_id", ref.EventID)
			continue
		}
		if err := provider.CancelEvent(ctx, ref.EventID); err != nil {
			if IsTransient(err) {
				c.sleep(c.cfg.BackoffBase)
				err = provider.CancelEvent(ctx, ref.EventID)
			}
			if err != nil {
				c.logger.Error("compensating cancellation failed",
					"provider", ref.ProviderID, "event_id", ref.EventID, "error", err)
				c.recordAudit(ctx, "compensation_failed", booking.ID(),
					fmt.Sprintf("event %s on %s not cancelled", ref.EventID, ref.ProviderID))
			}
		}
	}
}

func (c *BookingCoordinator) recordAudit(ctx context.Context, action string, subject uuid.UUID, rationale string) {
	if c.audit == nil {
		return
	}
	c.audit.Record(ctx, AuditEntry{
		Actor:     "scheduler",
		Action:    action,
		Subject:   subject,
		Rationale: rationale,
		At:        c.now(),
	})
}

func (c *BookingCoordinator) notify(ctx context.Context, booking *domain.BookingRecord, kind NotificationKind) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, booking.CandidateID(), kind, map[string]string{
		"booking_id": booking.ID().String(),
		"start":      booking.Slot().Start.Format(time.RFC3339),
		"end":        booking.Slot().End.Format(time.RFC3339),
		"type":       string(booking.InterviewType()),
	})
}
