package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteInterviewerDirectory_SaveAndGet(t *testing.T) {
	dir := NewSQLiteInterviewerDirectory(setupBookingTestDB(t))
	ctx := context.Background()

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	iv := &domain.Interviewer{
		ID:       uuid.New(),
		Name:     "Ada",
		Location: berlin,
		Hours: domain.WorkingHours{
			time.Monday:  {{StartMinute: 9 * 60, EndMinute: 17 * 60}},
			time.Tuesday: {{StartMinute: 9 * 60, EndMinute: 12 * 60}, {StartMinute: 13 * 60, EndMinute: 17 * 60}},
		},
		SkillTags:  []string{"go", "distributed-systems"},
		ProviderID: "google",
	}
	require.NoError(t, dir.Save(ctx, iv))

	got, err := dir.GetInterviewers(ctx, []uuid.UUID{iv.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)

	found := got[iv.ID]
	require.NotNil(t, found)
	assert.Equal(t, "Ada", found.Name)
	assert.Equal(t, "Europe/Berlin", found.Location.String())
	assert.Equal(t, iv.Hours, found.Hours)
	assert.Equal(t, []string{"go", "distributed-systems"}, found.SkillTags)
	assert.Equal(t, "google", found.ProviderID)
}

func TestSQLiteInterviewerDirectory_UnknownIDsAbsent(t *testing.T) {
	dir := NewSQLiteInterviewerDirectory(setupBookingTestDB(t))
	ctx := context.Background()

	iv := &domain.Interviewer{
		ID:         uuid.New(),
		Name:       "Grace",
		Location:   time.UTC,
		Hours:      domain.WorkingHours{time.Friday: {{StartMinute: 10 * 60, EndMinute: 16 * 60}}},
		ProviderID: "caldav",
	}
	require.NoError(t, dir.Save(ctx, iv))

	got, err := dir.GetInterviewers(ctx, []uuid.UUID{iv.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, iv.ID)
}

func TestSQLiteInterviewerDirectory_SaveOverwrites(t *testing.T) {
	dir := NewSQLiteInterviewerDirectory(setupBookingTestDB(t))
	ctx := context.Background()

	iv := &domain.Interviewer{
		ID:         uuid.New(),
		Name:       "Old Name",
		Location:   time.UTC,
		Hours:      domain.WorkingHours{time.Monday: {{StartMinute: 9 * 60, EndMinute: 17 * 60}}},
		ProviderID: "google",
	}
	require.NoError(t, dir.Save(ctx, iv))

	iv.Name = "New Name"
	iv.Hours = domain.WorkingHours{time.Wednesday: {{StartMinute: 8 * 60, EndMinute: 14 * 60}}}
	require.NoError(t, dir.Save(ctx, iv))

	got, err := dir.GetInterviewers(ctx, []uuid.UUID{iv.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "New Name", got[iv.ID].Name)
	assert.Equal(t, iv.Hours, got[iv.ID].Hours)
}

func TestSQLiteInterviewerDirectory_EmptyInput(t *testing.T) {
	dir := NewSQLiteInterviewerDirectory(setupBookingTestDB(t))

	got, err := dir.GetInterviewers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
