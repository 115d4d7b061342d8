package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/recruitflow/scheduler/pkg/observability"
)

// InterviewerWriter is the write side of the interviewer directory used by
// the admin endpoint.
type InterviewerWriter interface {
	Save(ctx context.Context, iv *domain.Interviewer) error
}

// SchedulingHandler handles scheduling API requests.
type SchedulingHandler struct {
	orchestrator *application.Orchestrator
	directory    InterviewerWriter
	health       *observability.HealthRegistry
	logger       *slog.Logger
}

// SchedulingHandlerConfig holds dependencies for the scheduling handler.
type SchedulingHandlerConfig struct {
	Orchestrator *application.Orchestrator
	Directory    InterviewerWriter
	Health       *observability.HealthRegistry
	Logger       *slog.Logger
}

// NewSchedulingHandler creates a new scheduling handler.
func NewSchedulingHandler(cfg SchedulingHandlerConfig) *SchedulingHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SchedulingHandler{
		orchestrator: cfg.Orchestrator,
		directory:    cfg.Directory,
		health:       cfg.Health,
		logger:       cfg.Logger,
	}
}

// Request and response shapes

type timeRangeDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type proposeRequest struct {
	RoleID              string              `json:"role_id"`
	CandidateID         string              `json:"candidate_id"`
	InterviewType       string              `json:"interview_type"`
	Panel               []string            `json:"panel"`
	Alternates          map[string][]string `json:"alternates,omitempty"`
	DurationMinutes     int                 `json:"duration_minutes"`
	BufferBeforeMinutes int                 `json:"buffer_before_minutes"`
	BufferAfterMinutes  int                 `json:"buffer_after_minutes"`
	CandidateWindows    []timeRangeDTO      `json:"candidate_windows"`
}

type substitutionDTO struct {
	RequiredID  string `json:"required_id"`
	AlternateID string `json:"alternate_id"`
	Reason      string `json:"reason,omitempty"`
}

type candidateDTO struct {
	SlotKey       string            `json:"slot_key"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Panel         []string          `json:"panel"`
	Substitutions []substitutionDTO `json:"substitutions,omitempty"`
	Score         float64           `json:"score"`
	Stale         bool              `json:"stale"`
}

type proposeResponse struct {
	Kind       string         `json:"kind"`
	RequestID  string         `json:"request_id"`
	Candidates []candidateDTO `json:"candidates"`
	Degraded   bool           `json:"degraded,omitempty"`
	Reason     string         `json:"reason,omitempty"`
}

type holdRequest struct {
	RequestID string `json:"request_id"`
	SlotKey   string `json:"slot_key"`
}

type holdResponse struct {
	Kind           string     `json:"kind"`
	LeaseToken     string     `json:"lease_token,omitempty"`
	SlotKey        string     `json:"slot_key,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ConflictExpiry *time.Time `json:"conflict_expiry,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

type confirmRequest struct {
	RequestID  string `json:"request_id"`
	LeaseToken string `json:"lease_token"`
	Location   string `json:"location,omitempty"`
	VideoURL   string `json:"video_url,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type eventRefDTO struct {
	InterviewerID string `json:"interviewer_id"`
	ProviderID    string `json:"provider_id"`
	EventID       string `json:"event_id"`
}

type bookingDTO struct {
	ID            string            `json:"id"`
	RequestID     string            `json:"request_id"`
	CandidateID   string            `json:"candidate_id"`
	RoleID        string            `json:"role_id"`
	InterviewType string            `json:"interview_type"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Panel         []string          `json:"panel"`
	Substitutions []substitutionDTO `json:"substitutions,omitempty"`
	Status        string            `json:"status"`
	Location      string            `json:"location,omitempty"`
	VideoURL      string            `json:"video_url,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	EventRefs     []eventRefDTO     `json:"event_refs,omitempty"`
}

type confirmResponse struct {
	Kind    string      `json:"kind"`
	Booking *bookingDTO `json:"booking,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type interviewerRequest struct {
	Name       string                    `json:"name"`
	TimeZone   string                    `json:"time_zone"`
	Hours      map[string][]clockSpanDTO `json:"working_hours"`
	SkillTags  []string                  `json:"skill_tags,omitempty"`
	ProviderID string                    `json:"provider_id"`
}

type clockSpanDTO struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Propose handles POST /api/v1/interviews/propose
func (h *SchedulingHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var body proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req, err := buildSchedulingRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := observability.WithCandidateID(r.Context(), req.CandidateID().String())
	outcome := h.orchestrator.ProposeSlots(ctx, req)
	h.logger.Info("slots proposed",
		observability.CandidateIDKey, observability.CandidateIDFromContext(ctx),
		"kind", string(outcome.Kind),
		"candidates", len(outcome.Candidates),
	)
	writeJSON(w, statusForOutcome(outcome.Kind), proposeResponse{
		Kind:       string(outcome.Kind),
		RequestID:  outcome.RequestID.String(),
		Candidates: toCandidateDTOs(outcome.Candidates),
		Degraded:   outcome.Degraded,
		Reason:     outcome.Reason,
	})
}

// Hold handles POST /api/v1/interviews/hold
func (h *SchedulingHandler) Hold(w http.ResponseWriter, r *http.Request) {
	var body holdRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	requestID, err := uuid.Parse(body.RequestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request_id")
		return
	}
	if body.SlotKey == "" {
		writeError(w, http.StatusBadRequest, "slot_key is required")
		return
	}

	outcome := h.orchestrator.HoldSlot(r.Context(), requestID, domain.SlotKey(body.SlotKey))
	resp := holdResponse{Kind: string(outcome.Kind), Reason: outcome.Reason}
	if outcome.Hold != nil {
		expires := outcome.Hold.ExpiresAt
		resp.LeaseToken = outcome.Hold.LeaseToken.String()
		resp.SlotKey = string(outcome.Hold.Key)
		resp.ExpiresAt = &expires
	}
	if !outcome.ConflictExpiry.IsZero() {
		conflict := outcome.ConflictExpiry
		resp.ConflictExpiry = &conflict
	}
	writeJSON(w, statusForOutcome(outcome.Kind), resp)
}

// Confirm handles POST /api/v1/interviews/confirm
func (h *SchedulingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var body confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	requestID, err := uuid.Parse(body.RequestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request_id")
		return
	}
	leaseToken, err := uuid.Parse(body.LeaseToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lease_token")
		return
	}

	outcome := h.orchestrator.ConfirmHold(r.Context(), requestID, leaseToken, application.BookingDetails{
		Location: body.Location,
		VideoURL: body.VideoURL,
		Notes:    body.Notes,
	})

	status := statusForOutcome(outcome.Kind)
	if outcome.Kind == application.OutcomeOK {
		status = http.StatusCreated
	}
	writeJSON(w, status, confirmResponse{
		Kind:    string(outcome.Kind),
		Booking: toBookingDTO(outcome.Booking),
		Reason:  outcome.Reason,
	})
}

// GetBooking handles GET /api/v1/interviews/{bookingID}
func (h *SchedulingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(r.PathValue("bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.orchestrator.GetBooking(r.Context(), bookingID)
	if err != nil {
		if errors.Is(err, domain.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "Booking not found")
			return
		}
		h.logger.Error("failed to load booking", "booking_id", bookingID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load booking")
		return
	}

	writeJSON(w, http.StatusOK, toBookingDTO(booking))
}

// Cancel handles DELETE /api/v1/interviews/{bookingID}
func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(r.PathValue("bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	var body cancelRequest
	if r.Body != nil {
		// An empty body means an unexplained cancellation, which is fine.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	outcome := h.orchestrator.Cancel(r.Context(), bookingID, body.Reason)
	writeJSON(w, statusForOutcome(outcome.Kind), confirmResponse{
		Kind:    string(outcome.Kind),
		Booking: toBookingDTO(outcome.Booking),
		Reason:  outcome.Reason,
	})
}

// Reschedule handles POST /api/v1/interviews/{bookingID}/reschedule
func (h *SchedulingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(r.PathValue("bookingID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	var body proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	req, err := buildSchedulingRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome := h.orchestrator.Reschedule(r.Context(), bookingID, req)
	writeJSON(w, statusForOutcome(outcome.Kind), proposeResponse{
		Kind:       string(outcome.Kind),
		RequestID:  outcome.RequestID.String(),
		Candidates: toCandidateDTOs(outcome.Candidates),
		Degraded:   outcome.Degraded,
		Reason:     outcome.Reason,
	})
}

// UpsertInterviewer handles PUT /api/v1/interviewers/{interviewerID}
func (h *SchedulingHandler) UpsertInterviewer(w http.ResponseWriter, r *http.Request) {
	interviewerID, err := uuid.Parse(r.PathValue("interviewerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid interviewer ID")
		return
	}

	var body interviewerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	loc := time.UTC
	if body.TimeZone != "" {
		loc, err = time.LoadLocation(body.TimeZone)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Unknown time_zone")
			return
		}
	}

	hours, err := parseWorkingHours(body.Hours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	iv := &domain.Interviewer{
		ID:         interviewerID,
		Name:       body.Name,
		Location:   loc,
		Hours:      hours,
		SkillTags:  body.SkillTags,
		ProviderID: body.ProviderID,
	}
	if err := h.directory.Save(r.Context(), iv); err != nil {
		h.logger.Error("failed to save interviewer", "interviewer_id", interviewerID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save interviewer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": interviewerID.String()})
}

// Health handles GET /health
func (h *SchedulingHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	overall := h.health.GetOverallHealth(r.Context())
	status := http.StatusOK
	if overall.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, overall)
}

// Helpers

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWorkingHours(raw map[string][]clockSpanDTO) (domain.WorkingHours, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	hours := make(domain.WorkingHours, len(raw))
	for day, spans := range raw {
		weekday, ok := weekdayNames[day]
		if !ok {
			return nil, &APIError{Code: "bad_request", Message: "unknown weekday: " + day}
		}
		for _, s := range spans {
			hours[weekday] = append(hours[weekday], domain.ClockSpan{
				StartMinute: s.StartMinute,
				EndMinute:   s.EndMinute,
			})
		}
	}
	return hours, nil
}

func buildSchedulingRequest(body proposeRequest) (*domain.SchedulingRequest, error) {
	roleID, err := uuid.Parse(body.RoleID)
	if err != nil {
		return nil, &APIError{Code: "bad_request", Message: "invalid role_id"}
	}
	candidateID, err := uuid.Parse(body.CandidateID)
	if err != nil {
		return nil, &APIError{Code: "bad_request", Message: "invalid candidate_id"}
	}

	required := make([]uuid.UUID, 0, len(body.Panel))
	for _, raw := range body.Panel {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, &APIError{Code: "bad_request", Message: "invalid panel member id: " + raw}
		}
		required = append(required, id)
	}

	var alternates map[uuid.UUID][]uuid.UUID
	if len(body.Alternates) > 0 {
		alternates = make(map[uuid.UUID][]uuid.UUID, len(body.Alternates))
		for rawRequired, rawAlts := range body.Alternates {
			requiredID, err := uuid.Parse(rawRequired)
			if err != nil {
				return nil, &APIError{Code: "bad_request", Message: "invalid alternates key: " + rawRequired}
			}
			for _, rawAlt := range rawAlts {
				altID, err := uuid.Parse(rawAlt)
				if err != nil {
					return nil, &APIError{Code: "bad_request", Message: "invalid alternate id: " + rawAlt}
				}
				alternates[requiredID] = append(alternates[requiredID], altID)
			}
		}
	}

	windows := make([]domain.TimeRange, 0, len(body.CandidateWindows))
	for _, w := range body.CandidateWindows {
		tr, err := domain.NewTimeRange(w.Start, w.End)
		if err != nil {
			return nil, err
		}
		windows = append(windows, tr)
	}

	return domain.NewSchedulingRequest(
		roleID, candidateID,
		domain.InterviewType(body.InterviewType),
		required,
		alternates,
		time.Duration(body.DurationMinutes)*time.Minute,
		time.Duration(body.BufferBeforeMinutes)*time.Minute,
		time.Duration(body.BufferAfterMinutes)*time.Minute,
		windows,
	)
}

func statusForOutcome(kind application.OutcomeKind) int {
	switch kind {
	case application.OutcomeOK, application.OutcomeNoAvailability, application.OutcomeProviderDegraded:
		return http.StatusOK
	case application.OutcomeValidationFailed:
		return http.StatusBadRequest
	case application.OutcomeNotFound:
		return http.StatusNotFound
	case application.OutcomeConflict, application.OutcomeSlotTaken, application.OutcomeNeedsReschedule:
		return http.StatusConflict
	case application.OutcomeHoldExpired:
		return http.StatusGone
	case application.OutcomeBookingFailed:
		return http.StatusBadGateway
	case application.OutcomeInsufficientData:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toCandidateDTOs(candidates []domain.SlotCandidate) []candidateDTO {
	dtos := make([]candidateDTO, len(candidates))
	for i, c := range candidates {
		dtos[i] = candidateDTO{
			SlotKey:       string(c.Key),
			Start:         c.Range.Start,
			End:           c.Range.End,
			Panel:         uuidStrings(c.Panel.InterviewerIDs),
			Substitutions: toSubstitutionDTOs(c.Panel.Substitutions),
			Score:         c.Score,
			Stale:         c.Stale,
		}
	}
	return dtos
}

func toSubstitutionDTOs(subs []domain.Substitution) []substitutionDTO {
	if len(subs) == 0 {
		return nil
	}
	dtos := make([]substitutionDTO, len(subs))
	for i, s := range subs {
		dtos[i] = substitutionDTO{
			RequiredID:  s.RequiredID.String(),
			AlternateID: s.AlternateID.String(),
			Reason:      s.Reason,
		}
	}
	return dtos
}

func toBookingDTO(b *domain.BookingRecord) *bookingDTO {
	if b == nil {
		return nil
	}
	refs := b.EventRefs()
	refDTOs := make([]eventRefDTO, len(refs))
	for i, ref := range refs {
		refDTOs[i] = eventRefDTO{
			InterviewerID: ref.InterviewerID.String(),
			ProviderID:    ref.ProviderID,
			EventID:       ref.EventID,
		}
	}
	return &bookingDTO{
		ID:            b.ID().String(),
		RequestID:     b.RequestID().String(),
		CandidateID:   b.CandidateID().String(),
		RoleID:        b.RoleID().String(),
		InterviewType: string(b.InterviewType()),
		Start:         b.Slot().Start,
		End:           b.Slot().End,
		Panel:         uuidStrings(b.Panel().InterviewerIDs),
		Substitutions: toSubstitutionDTOs(b.Panel().Substitutions),
		Status:        string(b.Status()),
		Location:      b.Location(),
		VideoURL:      b.VideoURL(),
		Notes:         b.Notes(),
		EventRefs:     refDTOs,
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
