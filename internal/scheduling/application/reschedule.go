package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// RescheduleService cancels an existing booking and restarts slot
// generation, reusing the same consistency machinery. Cancellation and
// re-proposal are deliberately not atomic: a crash between them leaves the
// old booking cancelled and nothing new held, surfaced as
// ErrNeedsRescheduling rather than a silently lost interview.
type RescheduleService struct {
	coordinator *BookingCoordinator
	ranker      *SlotRanker
	publisher   EventPublisher
	logger      *slog.Logger
}

// NewRescheduleService creates a reschedule service.
func NewRescheduleService(coordinator *BookingCoordinator, ranker *SlotRanker, publisher EventPublisher, logger *slog.Logger) *RescheduleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RescheduleService{
		coordinator: coordinator,
		ranker:      ranker,
		publisher:   publisher,
		logger:      logger,
	}
}

// Reschedule cancels the existing booking and proposes slots for the new
// request. The returned proposal has the same shape as a fresh scheduling
// flow; the caller continues with hold and confirm as usual.
func (s *RescheduleService) Reschedule(ctx context.Context, bookingID uuid.UUID, newReq *domain.SchedulingRequest) (*ProposalResult, error) {
	booking, err := s.coordinator.CancelBooking(ctx, bookingID, "rescheduled")
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		ev := domain.NewInterviewRescheduled(booking.ID(), newReq.ID())
		_ = s.publisher.PublishDomainEvent(ctx, ev)
	}

	proposal, err := s.ranker.ProposeSlots(ctx, newReq)
	if err != nil {
		// The old booking is already gone; make the recoverable state
		// explicit instead of losing the interview silently.
		s.logger.Warn("re-proposal failed after cancellation",
			"old_booking_id", bookingID, "new_request_id", newReq.ID(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNeedsRescheduling, err)
	}

	return proposal, nil
}
