package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoPlaceholder is returned when a mark targets a participant the session
// was not scheduled with.
var ErrNoPlaceholder = errors.New("no attendance placeholder for participant")

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, session_id, participant_id, role, present, join_time, leave_time,
	engagement, late_minutes, absence_reason, marked, created_at`

// ListBySession returns all records for a session, tutor first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE session_id = $1
		ORDER BY role DESC, participant_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ParticipantID, &rec.Role,
			&rec.Present, &rec.JoinTime, &rec.LeaveTime, &rec.Engagement,
			&rec.LateMinutes, &rec.AbsenceReason, &rec.Marked, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ApplyMark fills one placeholder. Marks never create rows; the scheduler
// owns placeholder creation.
func (r *Repository) ApplyMark(ctx context.Context, sessionID string, m Mark) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET present = $3, join_time = $4, leave_time = $5, engagement = $6,
			late_minutes = $7, absence_reason = $8, marked = TRUE
		WHERE session_id = $1 AND participant_id = $2
	`, sessionID, m.ParticipantID, m.Present, m.JoinTime, m.LeaveTime,
		m.Engagement, m.LateMinutes, m.AbsenceReason)
	if err != nil {
		return fmt.Errorf("apply mark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNoPlaceholder, m.ParticipantID)
	}
	return nil
}

// TutorRecord returns the tutor's record for a session, or nil.
func (r *Repository) TutorRecord(ctx context.Context, sessionID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records
		WHERE session_id = $1 AND role = 'tutor'
		LIMIT 1
	`, sessionID)
	var rec Record
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.ParticipantID, &rec.Role,
		&rec.Present, &rec.JoinTime, &rec.LeaveTime, &rec.Engagement,
		&rec.LateMinutes, &rec.AbsenceReason, &rec.Marked, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
