package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// SQLiteBookingRepository implements BookingRepository using SQLite. SQLite
// serializes writers, so the overlap check and the insert inside one
// transaction are atomic without advisory locks.
type SQLiteBookingRepository struct {
	db *sql.DB
}

// NewSQLiteBookingRepository creates a new SQLite booking repository.
func NewSQLiteBookingRepository(db *sql.DB) *SQLiteBookingRepository {
	return &SQLiteBookingRepository{db: db}
}

// Save persists a booking, enforcing the overlap invariant for confirmed
// bookings.
func (r *SQLiteBookingRepository) Save(ctx context.Context, booking *domain.BookingRecord) error {
	panelIDs, err := marshalPanelIDs(booking.Panel().InterviewerIDs)
	if err != nil {
		return err
	}
	substitutions, err := marshalSubstitutions(booking.Panel().Substitutions)
	if err != nil {
		return err
	}
	eventRefs, err := marshalEventRefs(booking.EventRefs())
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if booking.Status() == domain.BookingConfirmed {
		var conflict int
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1
				FROM bookings b, json_each(b.panel_ids) member
				WHERE b.status = 'confirmed'
				  AND b.id <> ?
				  AND b.slot_start < ? AND b.slot_end > ?
				  AND member.value IN (SELECT value FROM json_each(?))
			)
		`,
			booking.ID().String(),
			booking.Slot().End.UTC().Format(time.RFC3339),
			booking.Slot().Start.UTC().Format(time.RFC3339),
			panelIDs,
		).Scan(&conflict)
		if err != nil {
			return err
		}
		if conflict != 0 {
			return domain.ErrBookingOverlap
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, request_id, candidate_id, role_id, interview_type,
			slot_start, slot_end, panel_ids, substitutions, event_refs,
			status, location, video_url, notes, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			event_refs = excluded.event_refs,
			status = excluded.status,
			location = excluded.location,
			video_url = excluded.video_url,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`,
		booking.ID().String(),
		booking.RequestID().String(),
		booking.CandidateID().String(),
		booking.RoleID().String(),
		string(booking.InterviewType()),
		booking.Slot().Start.UTC().Format(time.RFC3339),
		booking.Slot().End.UTC().Format(time.RFC3339),
		panelIDs,
		substitutions,
		eventRefs,
		string(booking.Status()),
		booking.Location(),
		booking.VideoURL(),
		booking.Notes(),
		booking.CreatedAt().UTC().Format(time.RFC3339),
		booking.UpdatedAt().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// FindByID finds a booking by its ID.
func (r *SQLiteBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.BookingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = ?`, bookingColumns)
	booking, err := r.scanBooking(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

// FindByRequestID finds the booking created for a scheduling request.
func (r *SQLiteBookingRepository) FindByRequestID(ctx context.Context, requestID uuid.UUID) (*domain.BookingRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bookings
		WHERE request_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, bookingColumns)
	booking, err := r.scanBooking(r.db.QueryRowContext(ctx, query, requestID.String()))
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

// FindConfirmedOverlapping returns confirmed bookings for an interviewer
// whose slot overlaps the given range.
func (r *SQLiteBookingRepository) FindConfirmedOverlapping(ctx context.Context, interviewerID uuid.UUID, tr domain.TimeRange) ([]*domain.BookingRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bookings
		WHERE status = 'confirmed'
		  AND slot_start < ? AND slot_end > ?
		  AND EXISTS (
			SELECT 1 FROM json_each(bookings.panel_ids) member
			WHERE member.value = ?
		  )
		ORDER BY slot_start
	`, bookingColumns)

	rows, err := r.db.QueryContext(ctx, query,
		tr.End.UTC().Format(time.RFC3339),
		tr.Start.UTC().Format(time.RFC3339),
		interviewerID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.BookingRecord
	for rows.Next() {
		booking, err := r.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteBookingRepository) scanBooking(row rowScanner) (*domain.BookingRecord, error) {
	var (
		idStr          string
		requestIDStr   string
		candidateIDStr string
		roleIDStr      string
		interviewType  string
		slotStartStr   string
		slotEndStr     string
		panelIDs       string
		substitutions  string
		eventRefs      string
		status         string
		location       string
		videoURL       string
		notes          string
		createdAtStr   string
		updatedAtStr   string
	)

	err := row.Scan(
		&idStr, &requestIDStr, &candidateIDStr, &roleIDStr, &interviewType,
		&slotStartStr, &slotEndStr, &panelIDs, &substitutions, &eventRefs,
		&status, &location, &videoURL, &notes, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	requestID, err := uuid.Parse(requestIDStr)
	if err != nil {
		return nil, err
	}
	candidateID, err := uuid.Parse(candidateIDStr)
	if err != nil {
		return nil, err
	}
	roleID, err := uuid.Parse(roleIDStr)
	if err != nil {
		return nil, err
	}

	slotStart, err := time.Parse(time.RFC3339, slotStartStr)
	if err != nil {
		return nil, err
	}
	slotEnd, err := time.Parse(time.RFC3339, slotEndStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, err
	}

	return rehydrateBooking(
		id, requestID, candidateID, roleID, interviewType,
		slotStart, slotEnd, panelIDs, substitutions, eventRefs,
		status, location, videoURL, notes, createdAt, updatedAt,
	)
}
