package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoInterviewers       = errors.New("at least one required interviewer is needed")
	ErrNoCandidateWindows   = errors.New("at least one candidate window is needed")
	ErrInvalidDuration      = errors.New("interview duration must be positive")
	ErrNegativeBuffer       = errors.New("buffers must not be negative")
	ErrUnknownInterviewType = errors.New("unknown interview type")
)

// InterviewType classifies the interview stage.
type InterviewType string

const (
	InterviewTypePhoneScreen  InterviewType = "phone_screen"
	InterviewTypeTechnical    InterviewType = "technical"
	InterviewTypeBehavioral   InterviewType = "behavioral"
	InterviewTypeSystemDesign InterviewType = "system_design"
	InterviewTypeOnsite       InterviewType = "onsite"
	InterviewTypeFinal        InterviewType = "final"
)

// IsValid returns true if the interview type is recognized.
func (t InterviewType) IsValid() bool {
	switch t {
	case InterviewTypePhoneScreen, InterviewTypeTechnical, InterviewTypeBehavioral,
		InterviewTypeSystemDesign, InterviewTypeOnsite, InterviewTypeFinal:
		return true
	default:
		return false
	}
}

// SchedulingRequest captures one scheduling attempt. It is immutable once
// created; a retry with different constraints is a new request.
type SchedulingRequest struct {
	id               uuid.UUID
	roleID           uuid.UUID
	candidateID      uuid.UUID
	interviewType    InterviewType
	required         []uuid.UUID
	alternates       map[uuid.UUID][]uuid.UUID
	duration         time.Duration
	bufferBefore     time.Duration
	bufferAfter      time.Duration
	candidateWindows []TimeRange
	createdAt        time.Time
}

// NewSchedulingRequest validates and creates a scheduling request. Candidate
// windows may carry any location; they are normalized to UTC instants here.
func NewSchedulingRequest(
	roleID, candidateID uuid.UUID,
	interviewType InterviewType,
	required []uuid.UUID,
	alternates map[uuid.UUID][]uuid.UUID,
	duration, bufferBefore, bufferAfter time.Duration,
	candidateWindows []TimeRange,
) (*SchedulingRequest, error) {
	if len(required) == 0 {
		return nil, ErrNoInterviewers
	}
	if len(candidateWindows) == 0 {
		return nil, ErrNoCandidateWindows
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if bufferBefore < 0 || bufferAfter < 0 {
		return nil, ErrNegativeBuffer
	}
	if !interviewType.IsValid() {
		return nil, ErrUnknownInterviewType
	}

	windows := make([]TimeRange, 0, len(candidateWindows))
	for _, w := range candidateWindows {
		nw, err := NewTimeRange(w.Start, w.End)
		if err != nil {
			return nil, err
		}
		windows = append(windows, nw)
	}

	alts := make(map[uuid.UUID][]uuid.UUID, len(alternates))
	for id, subs := range alternates {
		alts[id] = append([]uuid.UUID(nil), subs...)
	}

	return &SchedulingRequest{
		id:               uuid.New(),
		roleID:           roleID,
		candidateID:      candidateID,
		interviewType:    interviewType,
		required:         append([]uuid.UUID(nil), required...),
		alternates:       alts,
		duration:         duration,
		bufferBefore:     bufferBefore,
		bufferAfter:      bufferAfter,
		candidateWindows: MergeRanges(windows),
		createdAt:        time.Now().UTC(),
	}, nil
}

func (r *SchedulingRequest) ID() uuid.UUID                { return r.id }
func (r *SchedulingRequest) RoleID() uuid.UUID            { return r.roleID }
func (r *SchedulingRequest) CandidateID() uuid.UUID       { return r.candidateID }
func (r *SchedulingRequest) InterviewType() InterviewType { return r.interviewType }
func (r *SchedulingRequest) Duration() time.Duration      { return r.duration }
func (r *SchedulingRequest) BufferBefore() time.Duration  { return r.bufferBefore }
func (r *SchedulingRequest) BufferAfter() time.Duration   { return r.bufferAfter }
func (r *SchedulingRequest) CreatedAt() time.Time         { return r.createdAt }

// Required returns a copy of the required interviewer ids.
func (r *SchedulingRequest) Required() []uuid.UUID {
	return append([]uuid.UUID(nil), r.required...)
}

// AlternatesFor returns the substitution candidates for a required interviewer.
func (r *SchedulingRequest) AlternatesFor(id uuid.UUID) []uuid.UUID {
	return append([]uuid.UUID(nil), r.alternates[id]...)
}

// CandidateWindows returns the normalized UTC candidate availability windows.
func (r *SchedulingRequest) CandidateWindows() []TimeRange {
	return append([]TimeRange(nil), r.candidateWindows...)
}

// SlotLength is the total calendar footprint of one slot: the interview plus
// both buffers.
func (r *SchedulingRequest) SlotLength() time.Duration {
	return r.bufferBefore + r.duration + r.bufferAfter
}

// AllInterviewerIDs returns required plus all alternates, deduplicated.
func (r *SchedulingRequest) AllInterviewerIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(r.required))
	var ids []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, id := range r.required {
		add(id)
	}
	for _, subs := range r.alternates {
		for _, id := range subs {
			add(id)
		}
	}
	return ids
}
