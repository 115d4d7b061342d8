package application

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// OutcomeKind tags every orchestrator result so callers can distinguish "no
// availability" from "provider degraded" from "conflict, retry with
// refreshed data". Never a bare success/failure boolean.
type OutcomeKind string

const (
	OutcomeOK               OutcomeKind = "ok"
	OutcomeNoAvailability   OutcomeKind = "no_availability"
	OutcomeProviderDegraded OutcomeKind = "provider_degraded"
	OutcomeInsufficientData OutcomeKind = "insufficient_availability_data"
	OutcomeConflict         OutcomeKind = "hold_conflict"
	OutcomeHoldExpired      OutcomeKind = "hold_expired"
	OutcomeSlotTaken        OutcomeKind = "slot_no_longer_available"
	OutcomeBookingFailed    OutcomeKind = "booking_failed"
	OutcomeNeedsReschedule  OutcomeKind = "needs_rescheduling"
	OutcomeValidationFailed OutcomeKind = "validation_failed"
	OutcomeNotFound         OutcomeKind = "not_found"
	OutcomeInternalError    OutcomeKind = "internal_error"
)

// ProposeOutcome is the result of a slot proposal.
type ProposeOutcome struct {
	Kind       OutcomeKind
	RequestID  uuid.UUID
	Candidates []domain.SlotCandidate
	Degraded   bool
	Reason     string
}

// HoldOutcome is the result of a hold attempt.
type HoldOutcome struct {
	Kind           OutcomeKind
	Hold           *domain.Hold
	ConflictExpiry time.Time
	Reason         string
}

// ConfirmOutcome is the result of a confirmation attempt.
type ConfirmOutcome struct {
	Kind    OutcomeKind
	Booking *domain.BookingRecord
	Reason  string
}

// RescheduleOutcome is the result of a reschedule.
type RescheduleOutcome struct {
	Kind       OutcomeKind
	RequestID  uuid.UUID
	Candidates []domain.SlotCandidate
	Degraded   bool
	Reason     string
}

// CancelOutcome is the result of a cancellation.
type CancelOutcome struct {
	Kind    OutcomeKind
	Booking *domain.BookingRecord
	Reason  string
}

// requestTTL bounds how long an unconfirmed scheduling request stays
// resolvable by id. Generous compared to hold TTLs.
const requestTTL = 24 * time.Hour

type trackedRequest struct {
	req     *domain.SchedulingRequest
	addedAt time.Time

	// panels carries substitution provenance from the last proposal, so a
	// hold on a ranked candidate books the resolved panel rather than a
	// bare id list reparsed from the slot key.
	panels map[domain.SlotKey]domain.PanelResolution
}

// Orchestrator is the recruiter/candidate-facing facade over the scheduling
// services. It tracks in-flight requests by id so holds and confirmations
// can refer back to the immutable request.
type Orchestrator struct {
	ranker      *SlotRanker
	holds       *HoldManager
	coordinator *BookingCoordinator
	rescheduler *RescheduleService
	bookings    domain.BookingRepository
	notifier    NotificationDispatcher
	logger      *slog.Logger

	mu       sync.Mutex
	requests map[uuid.UUID]trackedRequest
	now      func() time.Time
}

// NewOrchestrator creates the scheduling facade.
func NewOrchestrator(
	ranker *SlotRanker,
	holds *HoldManager,
	coordinator *BookingCoordinator,
	rescheduler *RescheduleService,
	bookings domain.BookingRepository,
	notifier NotificationDispatcher,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		ranker:      ranker,
		holds:       holds,
		coordinator: coordinator,
		rescheduler: rescheduler,
		bookings:    bookings,
		notifier:    notifier,
		logger:      logger,
		requests:    make(map[uuid.UUID]trackedRequest),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ProposeSlots ranks feasible slots for a request and tracks the request
// for the subsequent hold/confirm steps.
func (o *Orchestrator) ProposeSlots(ctx context.Context, req *domain.SchedulingRequest) ProposeOutcome {
	o.track(req)

	proposal, err := o.ranker.ProposeSlots(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientAvailabilityData):
			return ProposeOutcome{Kind: OutcomeInsufficientData, RequestID: req.ID(), Reason: err.Error()}
		case errors.Is(err, ErrNoInterviewerIDs), errors.Is(err, ErrWindowTooWide):
			return ProposeOutcome{Kind: OutcomeValidationFailed, RequestID: req.ID(), Reason: err.Error()}
		default:
			o.logger.Error("slot proposal failed", "request_id", req.ID(), "error", err)
			return ProposeOutcome{Kind: OutcomeInternalError, RequestID: req.ID(), Reason: err.Error()}
		}
	}

	if o.notifier != nil && len(proposal.Candidates) > 0 {
		o.notifier.Notify(ctx, req.CandidateID(), NotifyProposed, map[string]string{
			"request_id": req.ID().String(),
			"candidates": strconv.Itoa(len(proposal.Candidates)),
		})
	}

	o.rememberPanels(req.ID(), proposal.Candidates)

	kind := OutcomeOK
	switch {
	case len(proposal.Candidates) == 0 && proposal.Degraded:
		kind = OutcomeProviderDegraded
	case len(proposal.Candidates) == 0:
		kind = OutcomeNoAvailability
	}
	return ProposeOutcome{
		Kind:       kind,
		RequestID:  req.ID(),
		Candidates: proposal.Candidates,
		Degraded:   proposal.Degraded,
	}
}

// HoldSlot reserves a proposed slot key for the request.
func (o *Orchestrator) HoldSlot(ctx context.Context, requestID uuid.UUID, key domain.SlotKey) HoldOutcome {
	req, ok := o.lookup(requestID)
	if !ok {
		return HoldOutcome{Kind: OutcomeNotFound, Reason: "unknown or expired scheduling request"}
	}

	ids, slot, err := domain.ParseSlotKey(key)
	if err != nil {
		return HoldOutcome{Kind: OutcomeValidationFailed, Reason: err.Error()}
	}

	// Prefer the panel the ranker resolved for this key; it carries the
	// substitution provenance the slot key alone cannot.
	panel, ok := o.lookupPanel(requestID, key)
	if !ok {
		panel = domain.PanelResolution{InterviewerIDs: ids}
	}

	hold, err := o.holds.TryHold(ctx, key, req.ID(), slot, panel, 0)
	if err != nil {
		var conflict *HoldConflictError
		if errors.As(err, &conflict) {
			return HoldOutcome{Kind: OutcomeConflict, ConflictExpiry: conflict.ExistingExpiry, Reason: err.Error()}
		}
		o.logger.Error("hold acquisition failed", "request_id", requestID, "slot_key", key, "error", err)
		return HoldOutcome{Kind: OutcomeInternalError, Reason: err.Error()}
	}
	return HoldOutcome{Kind: OutcomeOK, Hold: hold}
}

// ConfirmHold commits the request's held slot as a booking.
func (o *Orchestrator) ConfirmHold(ctx context.Context, requestID uuid.UUID, leaseToken uuid.UUID, details BookingDetails) ConfirmOutcome {
	req, ok := o.lookup(requestID)
	if !ok {
		return ConfirmOutcome{Kind: OutcomeNotFound, Reason: "unknown or expired scheduling request"}
	}

	booking, err := o.coordinator.Confirm(ctx, req, leaseToken, details)
	if err != nil {
		switch {
		case errors.Is(err, ErrHoldExpired):
			return ConfirmOutcome{Kind: OutcomeHoldExpired, Reason: err.Error()}
		case errors.Is(err, ErrHoldLeaseMismatch):
			return ConfirmOutcome{Kind: OutcomeValidationFailed, Reason: err.Error()}
		case errors.Is(err, ErrSlotNoLongerAvailable):
			return ConfirmOutcome{Kind: OutcomeSlotTaken, Reason: err.Error()}
		case errors.Is(err, ErrBookingFailed):
			return ConfirmOutcome{Kind: OutcomeBookingFailed, Reason: err.Error()}
		default:
			o.logger.Error("confirmation failed", "request_id", requestID, "error", err)
			return ConfirmOutcome{Kind: OutcomeInternalError, Reason: err.Error()}
		}
	}

	o.untrack(requestID)
	return ConfirmOutcome{Kind: OutcomeOK, Booking: booking}
}

// Reschedule cancels an existing booking and restarts the scheduling flow
// with a new request.
func (o *Orchestrator) Reschedule(ctx context.Context, bookingID uuid.UUID, newReq *domain.SchedulingRequest) RescheduleOutcome {
	o.track(newReq)

	proposal, err := o.rescheduler.Reschedule(ctx, bookingID, newReq)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookingNotFound):
			return RescheduleOutcome{Kind: OutcomeNotFound, RequestID: newReq.ID(), Reason: err.Error()}
		case errors.Is(err, ErrNeedsRescheduling):
			return RescheduleOutcome{Kind: OutcomeNeedsReschedule, RequestID: newReq.ID(), Reason: err.Error()}
		case errors.Is(err, domain.ErrBookingNotConfirmed):
			return RescheduleOutcome{Kind: OutcomeValidationFailed, RequestID: newReq.ID(), Reason: err.Error()}
		default:
			o.logger.Error("reschedule failed", "booking_id", bookingID, "error", err)
			return RescheduleOutcome{Kind: OutcomeInternalError, RequestID: newReq.ID(), Reason: err.Error()}
		}
	}

	o.rememberPanels(newReq.ID(), proposal.Candidates)

	kind := OutcomeOK
	if len(proposal.Candidates) == 0 {
		kind = OutcomeNoAvailability
	}
	return RescheduleOutcome{
		Kind:       kind,
		RequestID:  newReq.ID(),
		Candidates: proposal.Candidates,
		Degraded:   proposal.Degraded,
	}
}

// Cancel cancels a confirmed booking outright.
func (o *Orchestrator) Cancel(ctx context.Context, bookingID uuid.UUID, reason string) CancelOutcome {
	booking, err := o.coordinator.CancelBooking(ctx, bookingID, reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookingNotFound):
			return CancelOutcome{Kind: OutcomeNotFound, Reason: err.Error()}
		case errors.Is(err, domain.ErrBookingNotConfirmed):
			return CancelOutcome{Kind: OutcomeValidationFailed, Reason: err.Error()}
		default:
			o.logger.Error("cancellation failed", "booking_id", bookingID, "error", err)
			return CancelOutcome{Kind: OutcomeInternalError, Reason: err.Error()}
		}
	}
	return CancelOutcome{Kind: OutcomeOK, Booking: booking}
}

// GetBooking looks up a booking record.
func (o *Orchestrator) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.BookingRecord, error) {
	return o.bookings.FindByID(ctx, bookingID)
}

func (o *Orchestrator) track(req *domain.SchedulingRequest) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	for id, tracked := range o.requests {
		if now.Sub(tracked.addedAt) > requestTTL {
			delete(o.requests, id)
		}
	}
	o.requests[req.ID()] = trackedRequest{req: req, addedAt: now}
}

func (o *Orchestrator) rememberPanels(requestID uuid.UUID, candidates []domain.SlotCandidate) {
	o.mu.Lock()
	defer o.mu.Unlock()

	tracked, ok := o.requests[requestID]
	if !ok {
		return
	}
	tracked.panels = make(map[domain.SlotKey]domain.PanelResolution, len(candidates))
	for _, c := range candidates {
		tracked.panels[c.Key] = c.Panel
	}
	o.requests[requestID] = tracked
}

func (o *Orchestrator) lookupPanel(requestID uuid.UUID, key domain.SlotKey) (domain.PanelResolution, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	tracked, ok := o.requests[requestID]
	if !ok {
		return domain.PanelResolution{}, false
	}
	panel, ok := tracked.panels[key]
	return panel, ok
}

func (o *Orchestrator) lookup(requestID uuid.UUID) (*domain.SchedulingRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tracked, ok := o.requests[requestID]
	if !ok {
		return nil, false
	}
	return tracked.req, true
}

func (o *Orchestrator) untrack(requestID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.requests, requestID)
}
