package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists sessions in Postgres. The create path runs inside a
// serializable transaction so the session row, attendance placeholders and
// the audit entry commit together.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, subject, class_type, grade, board, platform,
	scheduled_date, start_minutes, duration_mins, end_minutes,
	tutor_id, student_id, demo_student_id,
	status, completion_status, rescheduled_from, override_reason,
	actual_start, actual_end,
	notes, topics, materials,
	tutor_feedback, student_feedback,
	quality_score, punctuality_score, engagement_avg,
	completion_compliant, recording_url, attendance_reviewed,
	created_at, updated_at`

// ActiveSessionsForTutor returns the tutor's scheduled/ongoing sessions on a
// date, optionally excluding the session under edit.
func (r *Repository) ActiveSessionsForTutor(ctx context.Context, tutorID string, date time.Time, excludeID string) ([]ClassSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE tutor_id = $1 AND scheduled_date = $2 AND status IN ('scheduled', 'ongoing')`
	args := []any{tutorID, date.Format("2006-01-02")}
	if excludeID != "" {
		query += ` AND id != $3`
		args = append(args, excludeID)
	}
	query += ` ORDER BY start_minutes`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []ClassSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CreateSession writes the session, its group roster, one attendance
// placeholder per expected participant (tutor included) and the initial audit
// row, all in one transaction.
func (r *Repository) CreateSession(ctx context.Context, s *ClassSession) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, subject, class_type, grade, board, platform,
			scheduled_date, start_minutes, duration_mins, end_minutes,
			tutor_id, student_id, demo_student_id,
			status, completion_status, rescheduled_from, override_reason,
			notes, topics, materials, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`, s.ID, s.Subject, s.Type, s.Grade, s.Board, s.Platform,
		s.Date.Format("2006-01-02"), int(s.Start), s.Duration, int(s.End),
		s.TutorID, nullable(s.StudentID), nullable(s.DemoStudentID),
		s.Status, s.CompletionStatus, nullable(s.RescheduledFrom), s.OverrideReason,
		s.Notes, s.Topics, s.Materials, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, studentID := range s.GroupStudentIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_students (session_id, student_id, position) VALUES ($1, $2, $3)
		`, s.ID, studentID, i); err != nil {
			return fmt.Errorf("insert roster: %w", err)
		}
	}

	if err := insertPlaceholder(ctx, tx, s.ID, s.TutorID, "tutor"); err != nil {
		return err
	}
	for _, participantID := range s.ParticipantIDs() {
		if err := insertPlaceholder(ctx, tx, s.ID, participantID, "student"); err != nil {
			return err
		}
	}

	note := ""
	if s.OverrideReason != "" {
		note = "conflict override: " + s.OverrideReason
	}
	if err := insertHistory(ctx, tx, s.ID, "", StatusScheduled, "create", note); err != nil {
		return err
	}

	return tx.Commit()
}

func insertPlaceholder(ctx context.Context, tx *sql.Tx, sessionID, participantID, role string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, participant_id, role)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), sessionID, participantID, role)
	if err != nil {
		return fmt.Errorf("insert attendance placeholder: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, sessionID string, from, to Status, action, note string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_status_history (session_id, from_status, to_status, action, note)
		VALUES ($1, $2, $3, $4, $5)
	`, sessionID, string(from), string(to), action, note)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// GetSession returns a session with its group roster, or nil when absent.
func (r *Repository) GetSession(ctx context.Context, id string) (*ClassSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if s.Type == TypeGroup {
		rows, err := r.db.QueryContext(ctx, `
			SELECT student_id FROM session_students WHERE session_id = $1 ORDER BY position
		`, id)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var studentID string
			if err := rows.Scan(&studentID); err != nil {
				return nil, err
			}
			s.GroupStudentIDs = append(s.GroupStudentIDs, studentID)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// ApplyTransition persists a lifecycle change plus its audit row. The
// previous status is read inside the transaction so the history reflects the
// stored state, not the caller's copy.
func (r *Repository) ApplyTransition(ctx context.Context, s *ClassSession, action Action, note string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var prev Status
	if err := tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = $1 FOR UPDATE`, s.ID).Scan(&prev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		}
		return err
	}
	if prev.IsTerminal() {
		return &TransitionError{From: prev, Action: action}
	}

	s.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE sessions
		SET status = $2, completion_status = $3, actual_start = $4, actual_end = $5,
			recording_url = $6, updated_at = $7
		WHERE id = $1
	`, s.ID, s.Status, s.CompletionStatus, s.ActualStart, s.ActualEnd, s.RecordingURL, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	if err := insertHistory(ctx, tx, s.ID, prev, s.Status, string(action), note); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateQuality stores the derived performance signals after completion.
func (r *Repository) UpdateQuality(ctx context.Context, sessionID string, punctuality, engagement, quality *float64, compliant bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET punctuality_score = $2, engagement_avg = $3, quality_score = $4,
			completion_compliant = $5, updated_at = NOW()
		WHERE id = $1
	`, sessionID, punctuality, engagement, quality, compliant)
	return err
}

// SetAttendanceReviewed flags the session once its records were reviewed.
func (r *Repository) SetAttendanceReviewed(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET attendance_reviewed = TRUE, updated_at = NOW() WHERE id = $1
	`, sessionID)
	return err
}

// ListFilter scopes a session listing. Department filters through the tutor.
type ListFilter struct {
	TutorID    string
	Department string
	From       time.Time
	To         time.Time
	Status     Status
	Limit      int
}

// ListSessions returns sessions matching the filter, newest date first.
func (r *Repository) ListSessions(ctx context.Context, f ListFilter) ([]ClassSession, error) {
	query := `SELECT ` + sessionColumnsPrefixed("s") + ` FROM sessions s`
	args := []any{}
	where := ""

	appendClause := func(cond string, val any) {
		args = append(args, val)
		cond = fmt.Sprintf(cond, len(args))
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}

	if f.Department != "" {
		query += ` JOIN tutors t ON t.id = s.tutor_id`
		appendClause("t.department = $%d", f.Department)
	}
	if f.TutorID != "" {
		appendClause("s.tutor_id = $%d", f.TutorID)
	}
	if !f.From.IsZero() {
		appendClause("s.scheduled_date >= $%d", f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		appendClause("s.scheduled_date <= $%d", f.To.Format("2006-01-02"))
	}
	if f.Status != "" {
		appendClause("s.status = $%d", string(f.Status))
	}

	query += where + ` ORDER BY s.scheduled_date DESC, s.start_minutes DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []ClassSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func sessionColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.subject, ` + alias + `.class_type, ` + alias + `.grade, ` +
		alias + `.board, ` + alias + `.platform, ` + alias + `.scheduled_date, ` +
		alias + `.start_minutes, ` + alias + `.duration_mins, ` + alias + `.end_minutes, ` +
		alias + `.tutor_id, ` + alias + `.student_id, ` + alias + `.demo_student_id, ` +
		alias + `.status, ` + alias + `.completion_status, ` + alias + `.rescheduled_from, ` +
		alias + `.override_reason, ` + alias + `.actual_start, ` + alias + `.actual_end, ` +
		alias + `.notes, ` + alias + `.topics, ` + alias + `.materials, ` +
		alias + `.tutor_feedback, ` + alias + `.student_feedback, ` +
		alias + `.quality_score, ` + alias + `.punctuality_score, ` + alias + `.engagement_avg, ` +
		alias + `.completion_compliant, ` + alias + `.recording_url, ` + alias + `.attendance_reviewed, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (ClassSession, error) {
	var (
		s                              ClassSession
		startMins, endMins             int
		studentID, demoID, rescheduled sql.NullString
	)
	err := row.Scan(&s.ID, &s.Subject, &s.Type, &s.Grade, &s.Board, &s.Platform,
		&s.Date, &startMins, &s.Duration, &endMins,
		&s.TutorID, &studentID, &demoID,
		&s.Status, &s.CompletionStatus, &rescheduled, &s.OverrideReason,
		&s.ActualStart, &s.ActualEnd,
		&s.Notes, &s.Topics, &s.Materials,
		&s.TutorFeedback, &s.StudentFeedback,
		&s.QualityScore, &s.PunctualityScore, &s.EngagementAvg,
		&s.CompletionCompliant, &s.RecordingURL, &s.AttendanceReviewed,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return ClassSession{}, err
	}
	s.Start = TimeOfDay(startMins)
	s.End = TimeOfDay(endMins)
	s.StudentID = studentID.String
	s.DemoStudentID = demoID.String
	s.RescheduledFrom = rescheduled.String
	return s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
