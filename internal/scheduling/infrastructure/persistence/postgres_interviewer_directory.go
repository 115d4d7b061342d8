package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// PostgresInterviewerDirectory implements InterviewerDirectory using
// PostgreSQL.
type PostgresInterviewerDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresInterviewerDirectory creates a new PostgreSQL interviewer
// directory.
func NewPostgresInterviewerDirectory(pool *pgxpool.Pool) *PostgresInterviewerDirectory {
	return &PostgresInterviewerDirectory{pool: pool}
}

// Save upserts an interviewer record.
func (d *PostgresInterviewerDirectory) Save(ctx context.Context, iv *domain.Interviewer) error {
	workingHours, err := marshalWorkingHours(iv.Hours)
	if err != nil {
		return err
	}
	skillTags, err := json.Marshal(iv.SkillTags)
	if err != nil {
		return err
	}
	tz := "UTC"
	if iv.Location != nil {
		tz = iv.Location.String()
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO interviewers (id, name, timezone, working_hours, skill_tags, provider_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			working_hours = EXCLUDED.working_hours,
			skill_tags = EXCLUDED.skill_tags,
			provider_id = EXCLUDED.provider_id,
			updated_at = NOW()
	`, iv.ID.String(), iv.Name, tz, workingHours, string(skillTags), iv.ProviderID)
	return err
}

// GetInterviewers returns the records for the given ids. Unknown ids are
// simply absent from the result map.
func (d *PostgresInterviewerDirectory) GetInterviewers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Interviewer, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*domain.Interviewer{}, nil
	}

	idStrs := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrs = append(idStrs, id.String())
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, name, timezone, working_hours, skill_tags, provider_id
		FROM interviewers
		WHERE id = ANY($1)
	`, idStrs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID]*domain.Interviewer, len(ids))
	for rows.Next() {
		var (
			idStr        string
			name         string
			tz           string
			workingHours string
			skillTags    string
			providerID   string
		)
		if err := rows.Scan(&idStr, &name, &tz, &workingHours, &skillTags, &providerID); err != nil {
			return nil, err
		}
		iv, err := rehydrateInterviewer(idStr, name, tz, workingHours, skillTags, providerID)
		if err != nil {
			return nil, err
		}
		result[iv.ID] = iv
	}
	return result, rows.Err()
}

func rehydrateInterviewer(idStr, name, tz, workingHours, skillTags, providerID string) (*domain.Interviewer, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	hours, err := unmarshalWorkingHours(workingHours)
	if err != nil {
		return nil, err
	}
	var tags []string
	if err := json.Unmarshal([]byte(skillTags), &tags); err != nil {
		return nil, err
	}

	return &domain.Interviewer{
		ID:         id,
		Name:       name,
		Location:   loc,
		Hours:      hours,
		SkillTags:  tags,
		ProviderID: providerID,
	}, nil
}
