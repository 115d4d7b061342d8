package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/application"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rankerFixture struct {
	ranker    *application.SlotRanker
	provider  *fakeProvider
	directory *fakeDirectory
	load      *application.LoadBalancer
	clock     *fakeClock
}

func newRankerFixture(t *testing.T, interviewers map[uuid.UUID]*domain.Interviewer) *rankerFixture {
	t.Helper()
	provider := newFakeProvider("google")
	directory := &fakeDirectory{interviewers: interviewers}
	registry := &fakeRegistry{providers: map[string]application.CalendarProvider{"google": provider}}
	clock := newFakeClock(time.Date(2026, 1, 11, 8, 0, 0, 0, time.UTC))

	agg := application.NewAvailabilityAggregator(directory, registry, application.DefaultAggregatorConfig(), nil).
		WithClock(clock.Now)
	load := application.NewLoadBalancer(0).WithClock(clock.Now)
	ranker := application.NewSlotRanker(agg, directory, load, application.DefaultRankerConfig(), nil)

	return &rankerFixture{ranker: ranker, provider: provider, directory: directory, load: load, clock: clock}
}

func businessHours() domain.WorkingHours {
	hours := domain.WorkingHours{}
	for d := time.Monday; d <= time.Friday; d++ {
		hours[d] = []domain.ClockSpan{{StartMinute: 9 * 60, EndMinute: 17 * 60}}
	}
	return hours
}

// Two required interviewers in UTC+1 and UTC-5, candidate window
// 09:00-17:00 UTC-5 on Monday 2026-01-12. Feasible UTC space is the
// intersection of A's 08:00-16:00 UTC, B's 14:00-22:00 UTC and the
// candidate's 14:00-22:00 UTC, i.e. 14:00-16:00 UTC. With A busy
// 14:00-15:00 UTC, a 60-minute interview fits only at 15:00 UTC.
func TestProposeSlots_TimezoneScenario(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	interviewerA := &domain.Interviewer{ID: uuid.New(), Location: berlin, Hours: businessHours(), ProviderID: "google"}
	interviewerB := &domain.Interviewer{ID: uuid.New(), Location: newYork, Hours: businessHours(), ProviderID: "google"}

	f := newRankerFixture(t, map[uuid.UUID]*domain.Interviewer{
		interviewerA.ID: interviewerA,
		interviewerB.ID: interviewerB,
	})
	f.provider.busy[interviewerA.ID] = []domain.TimeRange{{
		Start: time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC),
	}}

	req, err := domain.NewSchedulingRequest(
		uuid.New(), uuid.New(), domain.InterviewTypeTechnical,
		[]uuid.UUID{interviewerA.ID, interviewerB.ID}, nil,
		time.Hour, 0, 0,
		[]domain.TimeRange{{
			Start: time.Date(2026, 1, 12, 9, 0, 0, 0, newYork),
			End:   time.Date(2026, 1, 12, 17, 0, 0, 0, newYork),
		}},
	)
	require.NoError(t, err)

	proposal, err := f.ranker.ProposeSlots(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, proposal.Candidates, 1)

	slot := proposal.Candidates[0]
	assert.Equal(t, time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC), slot.Range.Start)
	assert.Equal(t, time.Date(2026, 1, 12, 16, 0, 0, 0, time.UTC), slot.Range.End)
	assert.ElementsMatch(t, []uuid.UUID{interviewerA.ID, interviewerB.ID}, slot.Panel.InterviewerIDs)
	assert.Empty(t, slot.Panel.Substitutions)
	assert.False(t, proposal.Degraded)

	// The 14:00 UTC slot must not appear: A is busy.
	for _, c := range proposal.Candidates {
		assert.NotEqual(t, time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC), c.Range.Start)
	}
}

func TestProposeSlots_EmptyIsNotAnError(t *testing.T) {
	interviewer := &domain.Interviewer{ID: uuid.New(), Location: time.UTC, Hours: businessHours(), ProviderID: "google"}
	f := newRankerFixture(t, map[uuid.UUID]*domain.Interviewer{interviewer.ID: interviewer})

	// Candidate only available on a Sunday; interviewer works Mon-Fri.
	req, err := domain.NewSchedulingRequest(
		uuid.New(), uuid.New(), domain.InterviewTypeTechnical,
		[]uuid.UUID{interviewer.ID}, nil,
		time.Hour, 0, 0,
		[]domain.TimeRange{{
			Start: time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 11, 17, 0, 0, 0, time.UTC),
		}},
	)
	require.NoError(t, err)

	proposal, err := f.ranker.ProposeSlots(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, proposal.Candidates)
}

func TestProposeSlots_AlternateSubstitution(t *testing.T) {
	required := &domain.Interviewer{ID: uuid.New(), Location: time.UTC, Hours: businessHours(), ProviderID: "google"}
	alternate := &domain.Interviewer{ID: uuid.New(), Location: time.UTC, Hours: businessHours(), ProviderID: "google"}

	f := newRankerFixture(t, map[uuid.UUID]*domain.Interviewer{
		required.ID:  required,
		alternate.ID: alternate,
	})
	// Required interviewer fully booked on the day.
	f.provider.busy[required.ID] = []domain.TimeRange{{
		Start: time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC),
	}}

	req, err := domain.NewSchedulingRequest(
		uuid.New(), uuid.New(), domain.InterviewTypeBehavioral,
		[]uuid.UUID{required.ID},
		map[uuid.UUID][]uuid.UUID{required.ID: {alternate.ID}},
		time.Hour, 0, 0,
		[]domain.TimeRange{{
			Start: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC),
		}},
	)
	require.NoError(t, err)

	proposal, err := f.ranker.ProposeSlots(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, proposal.Candidates)

	first := proposal.Candidates[0]
	assert.Equal(t, []uuid.UUID{alternate.ID}, first.Panel.InterviewerIDs)
	require.Len(t, first.Panel.Substitutions, 1)
	assert.Equal(t, required.ID, first.Panel.Substitutions[0].RequiredID)
	assert.Equal(t, alternate.ID, first.Panel.Substitutions[0].AlternateID)
	assert.Equal(t, 1, first.SubstitutionCount)
}

func TestProposeSlots_InsufficientAvailabilityData(t *testing.T) {
	interviewer := &domain.Interviewer{ID: uuid.New(), Location: time.UTC, Hours: businessHours(), ProviderID: "google"}
	f := newRankerFixture(t, map[uuid.UUID]*domain.Interviewer{interviewer.ID: interviewer})
	f.provider.fetchErr = &application.ProviderError{Provider: "google", Op: "fetch_busy", Transient: true, Err: context.DeadlineExceeded}

	req, err := domain.NewSchedulingRequest(
		uuid.New(), uuid.New(), domain.InterviewTypeTechnical,
		[]uuid.UUID{interviewer.ID}, nil,
		time.Hour, 0, 0,
		[]domain.TimeRange{{
			Start: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 12, 17, 0, 0, 0, time.UTC),
		}},
	)
	require.NoError(t, err)

	_, err = f.ranker.ProposeSlots(context.Background(), req)
	assert.ErrorIs(t, err, application.ErrInsufficientAvailabilityData)
}

func TestProposeSlots_CircuitOpenSetsDegraded(t *testing.T) {
	withData := &domain.Interviewer{ID: uuid.New(), Location: time.UTC, Hours: businessHours(), ProviderID: "google"}
	broken := &domain.Interviewer{ID: uuid.New(), Location: time.UTC, Hours: businessHours(), ProviderID: "broken"}

	brokenProvider := newFakeProvider("broken")
	brokenProvider.fetchErr = application.ErrCircuitOpen

	provider := newFakeProvider("google")
	directory := &fakeDirectory{interviewers: map[uuid.UUID]*domain.Interviewer{
		withData.ID: withData,
		broken.ID:   broken,
	}}
	registry := &fakeRegistry{providers: map[string]application.CalendarProvider{
		"google": provider,
		"broken": brokenProvider,
	}}
	agg := application.NewAvailabilityAggregator(directory, registry, application.DefaultAggregatorConfig(), nil)
	load := application.NewLoadBalancer(0)
	ranker := application.NewSlotRanker(agg, directory, load, application.DefaultRankerConfig(), nil)

	req, err := domain.NewSchedulingRequest(
		uuid.New(), uuid.New(), domain.InterviewTypeTechnical,
		[]uuid.UUID{withData.ID},
		map[uuid.UUID][]uuid.UUID{withData.ID: {broken.ID}},
		time.Hour, 0, 0,
		[]domain.TimeRange{{
			Start: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 12, 17, 0, 0, 0, time.UTC),
		}},
	)
	require.NoError(t, err)

	proposal, err := ranker.ProposeSlots(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, proposal.Degraded)
	assert.NotEmpty(t, proposal.Candidates)
}

func TestProposeSlots_LoadPenaltyBiasesRanking(t *testing.T) {
	busy := &domain.Interviewer{ID: uuid.New(), Location: time.UTC, Hours: businessHours(), ProviderID: "google"}
	idle := &domain.Interviewer{ID: uuid.New(), Location: time.UTC, Hours: businessHours(), ProviderID: "google"}

	f := newRankerFixture(t, map[uuid.UUID]*domain.Interviewer{
		busy.ID: busy,
		idle.ID: idle,
	})
	// Heavily loaded required interviewer; an idle alternate exists.
	for i := 0; i < 5; i++ {
		f.load.RecordBooking([]uuid.UUID{busy.ID})
	}

	req, err := domain.NewSchedulingRequest(
		uuid.New(), uuid.New(), domain.InterviewTypeTechnical,
		[]uuid.UUID{busy.ID, idle.ID}, nil,
		time.Hour, 0, 0,
		[]domain.TimeRange{{
			Start: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 12, 17, 0, 0, 0, time.UTC),
		}},
	)
	require.NoError(t, err)

	proposal, err := f.ranker.ProposeSlots(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, proposal.Candidates)

	// All candidates here share a panel, so earlier slots come first and
	// the ordering is deterministic across runs.
	for i := 1; i < len(proposal.Candidates); i++ {
		assert.True(t, !proposal.Candidates[i].Range.Start.Before(proposal.Candidates[i-1].Range.Start))
	}
	assert.Greater(t, proposal.Candidates[0].LoadPenalty, 0.0)
}

func TestProposeSlots_BuffersExtendSlotFootprint(t *testing.T) {
	interviewer := &domain.Interviewer{ID: uuid.New(), Location: time.UTC, Hours: businessHours(), ProviderID: "google"}
	f := newRankerFixture(t, map[uuid.UUID]*domain.Interviewer{interviewer.ID: interviewer})

	// 60m interview with 15m buffers needs a 90m footprint; a two-hour
	// candidate window fits two 15-minute-anchored starts.
	req, err := domain.NewSchedulingRequest(
		uuid.New(), uuid.New(), domain.InterviewTypeTechnical,
		[]uuid.UUID{interviewer.ID}, nil,
		time.Hour, 15*time.Minute, 15*time.Minute,
		[]domain.TimeRange{{
			Start: time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC),
		}},
	)
	require.NoError(t, err)

	proposal, err := f.ranker.ProposeSlots(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, proposal.Candidates, 3)
	for _, c := range proposal.Candidates {
		assert.Equal(t, 90*time.Minute, c.Range.Duration())
	}
}
