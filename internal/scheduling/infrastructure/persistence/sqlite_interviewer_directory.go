package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/recruitflow/scheduler/internal/scheduling/domain"
)

// SQLiteInterviewerDirectory implements InterviewerDirectory using SQLite.
type SQLiteInterviewerDirectory struct {
	db *sql.DB
}

// NewSQLiteInterviewerDirectory creates a new SQLite interviewer directory.
func NewSQLiteInterviewerDirectory(db *sql.DB) *SQLiteInterviewerDirectory {
	return &SQLiteInterviewerDirectory{db: db}
}

// Save upserts an interviewer record.
func (d *SQLiteInterviewerDirectory) Save(ctx context.Context, iv *domain.Interviewer) error {
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

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO interviewers (id, name, timezone, working_hours, skill_tags, provider_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			timezone = excluded.timezone,
			working_hours = excluded.working_hours,
			skill_tags = excluded.skill_tags,
			provider_id = excluded.provider_id,
			updated_at = datetime('now')
	`, iv.ID.String(), iv.Name, tz, workingHours, string(skillTags), iv.ProviderID)
	return err
}

// GetInterviewers returns the records for the given ids. Unknown ids are
// simply absent from the result map.
func (d *SQLiteInterviewerDirectory) GetInterviewers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Interviewer, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*domain.Interviewer{}, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id.String())
	}

	query := `
		SELECT id, name, timezone, working_hours, skill_tags, provider_id
		FROM interviewers
		WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID]*domain.Interviewer, len(ids))
	for rows.Next() {
		var idStr, name, tz, workingHours, skillTags, providerID string
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
