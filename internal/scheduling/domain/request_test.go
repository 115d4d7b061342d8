package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulingRequest(t *testing.T) {
	required := []uuid.UUID{uuid.New(), uuid.New()}
	alt := uuid.New()
	windows := []domain.TimeRange{mustRange(t, "2026-03-02T09:00:00Z", "2026-03-02T17:00:00Z")}

	req, err := domain.NewSchedulingRequest(
		uuid.New(), uuid.New(),
		domain.InterviewTypeTechnical,
		required,
		map[uuid.UUID][]uuid.UUID{required[0]: {alt}},
		60*time.Minute, 5*time.Minute, 10*time.Minute,
		windows,
	)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, req.ID())
	assert.Equal(t, required, req.Required())
	assert.Equal(t, []uuid.UUID{alt}, req.AlternatesFor(required[0]))
	assert.Empty(t, req.AlternatesFor(required[1]))
	assert.Equal(t, 75*time.Minute, req.SlotLength())
	assert.ElementsMatch(t, []uuid.UUID{required[0], required[1], alt}, req.AllInterviewerIDs())
}

func TestNewSchedulingRequest_ConvertsCandidateWindowsToUTC(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Candidate window 09:00-17:00 local (UTC-5 on this date).
	window := domain.TimeRange{
		Start: time.Date(2026, 1, 12, 9, 0, 0, 0, loc),
		End:   time.Date(2026, 1, 12, 17, 0, 0, 0, loc),
	}

	req, err := domain.NewSchedulingRequest(
		uuid.New(), uuid.New(), domain.InterviewTypeTechnical,
		[]uuid.UUID{uuid.New()}, nil,
		time.Hour, 0, 0,
		[]domain.TimeRange{window},
	)
	require.NoError(t, err)

	windows := req.CandidateWindows()
	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC), windows[0].Start)
	assert.Equal(t, time.Date(2026, 1, 12, 22, 0, 0, 0, time.UTC), windows[0].End)
}

func TestNewSchedulingRequest_Validation(t *testing.T) {
	window := []domain.TimeRange{mustRange(t, "2026-03-02T09:00:00Z", "2026-03-02T17:00:00Z")}
	required := []uuid.UUID{uuid.New()}

	tests := []struct {
		name    string
		build   func() (*domain.SchedulingRequest, error)
		wantErr error
	}{
		{
			"no interviewers",
			func() (*domain.SchedulingRequest, error) {
				return domain.NewSchedulingRequest(uuid.New(), uuid.New(), domain.InterviewTypeTechnical, nil, nil, time.Hour, 0, 0, window)
			},
			domain.ErrNoInterviewers,
		},
		{
			"no windows",
			func() (*domain.SchedulingRequest, error) {
				return domain.NewSchedulingRequest(uuid.New(), uuid.New(), domain.InterviewTypeTechnical, required, nil, time.Hour, 0, 0, nil)
			},
			domain.ErrNoCandidateWindows,
		},
		{
			"zero duration",
			func() (*domain.SchedulingRequest, error) {
				return domain.NewSchedulingRequest(uuid.New(), uuid.New(), domain.InterviewTypeTechnical, required, nil, 0, 0, 0, window)
			},
			domain.ErrInvalidDuration,
		},
		{
			"negative buffer",
			func() (*domain.SchedulingRequest, error) {
				return domain.NewSchedulingRequest(uuid.New(), uuid.New(), domain.InterviewTypeTechnical, required, nil, time.Hour, -time.Minute, 0, window)
			},
			domain.ErrNegativeBuffer,
		},
		{
			"unknown type",
			func() (*domain.SchedulingRequest, error) {
				return domain.NewSchedulingRequest(uuid.New(), uuid.New(), domain.InterviewType("vibes"), required, nil, time.Hour, 0, 0, window)
			},
			domain.ErrUnknownInterviewType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInterviewer_WorkingRanges(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	iv := &domain.Interviewer{
		ID:       uuid.New(),
		Location: berlin,
		Hours: domain.WorkingHours{
			time.Monday: {{StartMinute: 9 * 60, EndMinute: 17 * 60}},
		},
	}

	// Monday 2026-01-12. Berlin is UTC+1 in January.
	window := mustRange(t, "2026-01-12T00:00:00Z", "2026-01-13T00:00:00Z")
	ranges := iv.WorkingRanges(window)

	require.Len(t, ranges, 1)
	assert.Equal(t, time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC), ranges[0].Start)
	assert.Equal(t, time.Date(2026, 1, 12, 16, 0, 0, 0, time.UTC), ranges[0].End)

	// Tuesday has no declared hours.
	assert.Empty(t, iv.WorkingRanges(mustRange(t, "2026-01-13T00:00:00Z", "2026-01-14T00:00:00Z")))
}

func TestInterviewer_WorkingRanges_ClippedToWindow(t *testing.T) {
	iv := &domain.Interviewer{
		ID:       uuid.New(),
		Location: time.UTC,
		Hours: domain.WorkingHours{
			time.Monday: {{StartMinute: 9 * 60, EndMinute: 17 * 60}},
		},
	}

	// Window covers only part of the Monday working span.
	window := mustRange(t, "2026-01-12T12:00:00Z", "2026-01-12T14:00:00Z")
	ranges := iv.WorkingRanges(window)

	require.Len(t, ranges, 1)
	assert.Equal(t, window, ranges[0])
}
