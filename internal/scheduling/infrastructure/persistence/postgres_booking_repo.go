package persistence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL.
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgreSQL booking repository.
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

const bookingColumns = `id, request_id, candidate_id, role_id, interview_type,
	       slot_start, slot_end, panel_ids, substitutions, event_refs,
	       status, location, video_url, notes, created_at, updated_at`

// Save persists a booking. Confirmed bookings run inside a transaction that
// takes per-interviewer advisory locks before the overlap check, so two
// concurrent confirms over a shared interviewer serialize instead of both
// passing the check.
func (r *PostgresBookingRepository) Save(ctx context.Context, booking *domain.BookingRecord) error {
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

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if booking.Status() == domain.BookingConfirmed {
		ids := append([]uuid.UUID(nil), booking.Panel().InterviewerIDs...)
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
		for _, id := range ids {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, id.String()); err != nil {
				return err
			}
		}

		for _, id := range ids {
			var conflict bool
			err := tx.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM bookings
					WHERE status = 'confirmed'
					  AND id <> $1
					  AND slot_start < $3 AND slot_end > $2
					  AND panel_ids ? $4
				)
			`, booking.ID(), booking.Slot().Start, booking.Slot().End, id.String()).Scan(&conflict)
			if err != nil {
				return err
			}
			if conflict {
				return domain.ErrBookingOverlap
			}
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (
			id, request_id, candidate_id, role_id, interview_type,
			slot_start, slot_end, panel_ids, substitutions, event_refs,
			status, location, video_url, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			event_refs = EXCLUDED.event_refs,
			status = EXCLUDED.status,
			location = EXCLUDED.location,
			video_url = EXCLUDED.video_url,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
	`,
		booking.ID(),
		booking.RequestID(),
		booking.CandidateID(),
		booking.RoleID(),
		string(booking.InterviewType()),
		booking.Slot().Start,
		booking.Slot().End,
		panelIDs,
		substitutions,
		eventRefs,
		string(booking.Status()),
		booking.Location(),
		booking.VideoURL(),
		booking.Notes(),
		booking.CreatedAt(),
		booking.UpdatedAt(),
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindByID finds a booking by its ID.
func (r *PostgresBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.BookingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)
	booking, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

// FindByRequestID finds the booking created for a scheduling request.
func (r *PostgresBookingRepository) FindByRequestID(ctx context.Context, requestID uuid.UUID) (*domain.BookingRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bookings
		WHERE request_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, bookingColumns)
	booking, err := scanBooking(r.pool.QueryRow(ctx, query, requestID))
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
func (r *PostgresBookingRepository) FindConfirmedOverlapping(ctx context.Context, interviewerID uuid.UUID, tr domain.TimeRange) ([]*domain.BookingRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bookings
		WHERE status = 'confirmed'
		  AND slot_start < $2 AND slot_end > $1
		  AND panel_ids ? $3
		ORDER BY slot_start
	`, bookingColumns)

	rows, err := r.pool.Query(ctx, query, tr.Start, tr.End, interviewerID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.BookingRecord
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.BookingRecord, error) {
	var (
		id            uuid.UUID
		requestID     uuid.UUID
		candidateID   uuid.UUID
		roleID        uuid.UUID
		interviewType string
		slotStart     time.Time
		slotEnd       time.Time
		panelIDs      string
		substitutions string
		eventRefs     string
		status        string
		location      string
		videoURL      string
		notes         string
		createdAt     time.Time
		updatedAt     time.Time
	)

	err := row.Scan(
		&id, &requestID, &candidateID, &roleID, &interviewType,
		&slotStart, &slotEnd, &panelIDs, &substitutions, &eventRefs,
		&status, &location, &videoURL, &notes, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return rehydrateBooking(
		id, requestID, candidateID, roleID, interviewType,
		slotStart, slotEnd, panelIDs, substitutions, eventRefs,
		status, location, videoURL, notes, createdAt, updatedAt,
	)
}

func rehydrateBooking(
	id, requestID, candidateID, roleID uuid.UUID,
	interviewType string,
	slotStart, slotEnd time.Time,
	panelIDs, substitutions, eventRefs string,
	status, location, videoURL, notes string,
	createdAt, updatedAt time.Time,
) (*domain.BookingRecord, error) {
	panel, err := unmarshalPanelIDs(panelIDs)
	if err != nil {
		return nil, err
	}
	subs, err := unmarshalSubstitutions(substitutions)
	if err != nil {
		return nil, err
	}
	refs, err := unmarshalEventRefs(eventRefs)
	if err != nil {
		return nil, err
	}
	slot, err := domain.NewTimeRange(slotStart, slotEnd)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateBookingRecord(
		id, requestID, candidateID, roleID,
		domain.InterviewType(interviewType),
		slot,
		domain.PanelResolution{InterviewerIDs: panel, Substitutions: subs},
		refs,
		domain.BookingStatus(status),
		location, videoURL, notes,
		createdAt, updatedAt,
	), nil
}
