package persistence

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// setupBookingTestDB creates an in-memory SQLite database with the schema applied.
func setupBookingTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	schemaPath := filepath.Join("..", "..", "..", "..", "migrations", "sqlite", "000001_initial_schema.up.sql")
	schema, err := os.ReadFile(schemaPath)
	require.NoError(t, err, "Failed to read SQLite schema file")

	_, err = sqlDB.Exec(string(schema))
	require.NoError(t, err, "Failed to apply SQLite schema")

	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func repoRange(t *testing.T, start, end string) domain.TimeRange {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	e, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)
	tr, err := domain.NewTimeRange(s, e)
	require.NoError(t, err)
	return tr
}

func confirmedBooking(t *testing.T, panel []uuid.UUID, slot domain.TimeRange) *domain.BookingRecord {
	t.Helper()
	booking := domain.NewBookingRecord(
		uuid.New(), uuid.New(), uuid.New(),
		domain.InterviewTypeTechnical,
		slot,
		domain.PanelResolution{InterviewerIDs: panel},
	)
	require.NoError(t, booking.Confirm())
	return booking
}

func TestSQLiteBookingRepository_SaveAndFindByID(t *testing.T) {
	repo := NewSQLiteBookingRepository(setupBookingTestDB(t))
	ctx := context.Background()

	panel := []uuid.UUID{uuid.New(), uuid.New()}
	required := panel[0]
	booking := domain.NewBookingRecord(
		uuid.New(), uuid.New(), uuid.New(),
		domain.InterviewTypeSystemDesign,
		repoRange(t, "2026-03-02T14:00:00Z", "2026-03-02T15:00:00Z"),
		domain.PanelResolution{
			InterviewerIDs: panel,
			Substitutions: []domain.Substitution{
				{RequiredID: required, AlternateID: panel[1], Reason: "required interviewer unavailable"},
			},
		},
	)
	booking.SetDetails("Room 4B", "https://meet.example.com/abc", "bring the rubric")
	booking.AddEventRef(domain.EventRef{InterviewerID: panel[0], ProviderID: "google", EventID: "evt-1"})
	booking.AddEventRef(domain.EventRef{InterviewerID: panel[1], ProviderID: "caldav", EventID: "/cal/evt-2.ics"})
	require.NoError(t, booking.Confirm())

	require.NoError(t, repo.Save(ctx, booking))

	found, err := repo.FindByID(ctx, booking.ID())
	require.NoError(t, err)

	assert.Equal(t, booking.ID(), found.ID())
	assert.Equal(t, booking.RequestID(), found.RequestID())
	assert.Equal(t, domain.InterviewTypeSystemDesign, found.InterviewType())
	assert.Equal(t, domain.BookingConfirmed, found.Status())
	assert.True(t, booking.Slot().Start.Equal(found.Slot().Start))
	assert.True(t, booking.Slot().End.Equal(found.Slot().End))
	assert.Equal(t, panel, found.Panel().InterviewerIDs)
	require.Len(t, found.Panel().Substitutions, 1)
	assert.Equal(t, required, found.Panel().Substitutions[0].RequiredID)
	assert.Equal(t, booking.EventRefs(), found.EventRefs())
	assert.Equal(t, "Room 4B", found.Location())
	assert.Equal(t, "https://meet.example.com/abc", found.VideoURL())
	assert.Equal(t, "bring the rubric", found.Notes())
}

func TestSQLiteBookingRepository_FindByID_NotFound(t *testing.T) {
	repo := NewSQLiteBookingRepository(setupBookingTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestSQLiteBookingRepository_FindByRequestID(t *testing.T) {
	repo := NewSQLiteBookingRepository(setupBookingTestDB(t))
	ctx := context.Background()

	booking := confirmedBooking(t, []uuid.UUID{uuid.New()},
		repoRange(t, "2026-03-03T10:00:00Z", "2026-03-03T11:00:00Z"))
	require.NoError(t, repo.Save(ctx, booking))

	found, err := repo.FindByRequestID(ctx, booking.RequestID())
	require.NoError(t, err)
	assert.Equal(t, booking.ID(), found.ID())

	_, err = repo.FindByRequestID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestSQLiteBookingRepository_Save_UpdatesExisting(t *testing.T) {
	repo := NewSQLiteBookingRepository(setupBookingTestDB(t))
	ctx := context.Background()

	booking := confirmedBooking(t, []uuid.UUID{uuid.New()},
		repoRange(t, "2026-03-04T09:00:00Z", "2026-03-04T10:00:00Z"))
	require.NoError(t, repo.Save(ctx, booking))

	require.NoError(t, booking.Cancel("candidate withdrew"))
	booking.ClearEventRefs()
	require.NoError(t, repo.Save(ctx, booking))

	found, err := repo.FindByID(ctx, booking.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, found.Status())
	assert.Empty(t, found.EventRefs())
}

func TestSQLiteBookingRepository_Save_RejectsOverlap(t *testing.T) {
	repo := NewSQLiteBookingRepository(setupBookingTestDB(t))
	ctx := context.Background()

	shared := uuid.New()
	first := confirmedBooking(t, []uuid.UUID{shared, uuid.New()},
		repoRange(t, "2026-03-05T14:00:00Z", "2026-03-05T15:00:00Z"))
	require.NoError(t, repo.Save(ctx, first))

	second := confirmedBooking(t, []uuid.UUID{shared},
		repoRange(t, "2026-03-05T14:30:00Z", "2026-03-05T15:30:00Z"))
	err := repo.Save(ctx, second)
	assert.ErrorIs(t, err, domain.ErrBookingOverlap)

	_, err = repo.FindByID(ctx, second.ID())
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestSQLiteBookingRepository_Save_AllowsAdjacentAndDisjointPanels(t *testing.T) {
	repo := NewSQLiteBookingRepository(setupBookingTestDB(t))
	ctx := context.Background()

	shared := uuid.New()
	first := confirmedBooking(t, []uuid.UUID{shared},
		repoRange(t, "2026-03-06T14:00:00Z", "2026-03-06T15:00:00Z"))
	require.NoError(t, repo.Save(ctx, first))

	// Back to back slots do not overlap.
	adjacent := confirmedBooking(t, []uuid.UUID{shared},
		repoRange(t, "2026-03-06T15:00:00Z", "2026-03-06T16:00:00Z"))
	require.NoError(t, repo.Save(ctx, adjacent))

	// Same time, different interviewer.
	disjoint := confirmedBooking(t, []uuid.UUID{uuid.New()},
		repoRange(t, "2026-03-06T14:00:00Z", "2026-03-06T15:00:00Z"))
	require.NoError(t, repo.Save(ctx, disjoint))
}

func TestSQLiteBookingRepository_Save_PendingSkipsOverlapCheck(t *testing.T) {
	repo := NewSQLiteBookingRepository(setupBookingTestDB(t))
	ctx := context.Background()

	shared := uuid.New()
	slot := repoRange(t, "2026-03-07T14:00:00Z", "2026-03-07T15:00:00Z")
	first := confirmedBooking(t, []uuid.UUID{shared}, slot)
	require.NoError(t, repo.Save(ctx, first))

	pending := domain.NewBookingRecord(
		uuid.New(), uuid.New(), uuid.New(),
		domain.InterviewTypeTechnical, slot,
		domain.PanelResolution{InterviewerIDs: []uuid.UUID{shared}},
	)
	require.NoError(t, repo.Save(ctx, pending))
}

func TestSQLiteBookingRepository_FindConfirmedOverlapping(t *testing.T) {
	repo := NewSQLiteBookingRepository(setupBookingTestDB(t))
	ctx := context.Background()

	interviewer := uuid.New()
	booked := confirmedBooking(t, []uuid.UUID{interviewer, uuid.New()},
		repoRange(t, "2026-03-09T14:00:00Z", "2026-03-09T15:00:00Z"))
	require.NoError(t, repo.Save(ctx, booked))

	cancelled := confirmedBooking(t, []uuid.UUID{interviewer},
		repoRange(t, "2026-03-09T16:00:00Z", "2026-03-09T17:00:00Z"))
	require.NoError(t, repo.Save(ctx, cancelled))
	require.NoError(t, cancelled.Cancel("rescheduled"))
	require.NoError(t, repo.Save(ctx, cancelled))

	overlapping, err := repo.FindConfirmedOverlapping(ctx, interviewer,
		repoRange(t, "2026-03-09T13:00:00Z", "2026-03-09T18:00:00Z"))
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, booked.ID(), overlapping[0].ID())

	none, err := repo.FindConfirmedOverlapping(ctx, uuid.New(),
		repoRange(t, "2026-03-09T13:00:00Z", "2026-03-09T18:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
