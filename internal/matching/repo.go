package matching

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists tutor profiles in Postgres. Subjects, grades and boards
// are stored as JSONB arrays.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const tutorColumns = `id, name, department, subjects, grades, boards, experience_years,
	avg_test_score, avg_rating, completion_rate, active_students, has_availability,
	active, created_at, updated_at`

// ListActiveTutors returns active tutors, optionally scoped to a department.
func (r *Repository) ListActiveTutors(ctx context.Context, department string) ([]TutorProfile, error) {
	query := `SELECT ` + tutorColumns + ` FROM tutors WHERE active = TRUE`
	args := []any{}
	if department != "" {
		query += ` AND department = $1`
		args = append(args, department)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tutors []TutorProfile
	for rows.Next() {
		tutor, err := scanTutor(rows)
		if err != nil {
			return nil, err
		}
		tutors = append(tutors, tutor)
	}
	return tutors, rows.Err()
}

// GetTutor returns a single tutor by id, or nil when absent.
func (r *Repository) GetTutor(ctx context.Context, id string) (*TutorProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tutorColumns+` FROM tutors WHERE id = $1`, id)
	tutor, err := scanTutor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tutor, nil
}

// UpsertTutor creates or updates a profile.
func (r *Repository) UpsertTutor(ctx context.Context, tutor *TutorProfile) error {
	if tutor.ID == "" {
		tutor.ID = uuid.NewString()
	}
	subjects, err := json.Marshal(tutor.Subjects)
	if err != nil {
		return fmt.Errorf("encode subjects: %w", err)
	}
	grades, err := json.Marshal(tutor.Grades)
	if err != nil {
		return fmt.Errorf("encode grades: %w", err)
	}
	boards, err := json.Marshal(tutor.Boards)
	if err != nil {
		return fmt.Errorf("encode boards: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tutors (id, name, department, subjects, grades, boards, experience_years,
			avg_test_score, avg_rating, completion_rate, active_students, has_availability, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			department = EXCLUDED.department,
			subjects = EXCLUDED.subjects,
			grades = EXCLUDED.grades,
			boards = EXCLUDED.boards,
			experience_years = EXCLUDED.experience_years,
			has_availability = EXCLUDED.has_availability,
			active = EXCLUDED.active,
			updated_at = NOW()
	`, tutor.ID, tutor.Name, tutor.Department, subjects, grades, boards, tutor.ExperienceYears,
		tutor.AvgTestScore, tutor.AvgRating, tutor.CompletionRate, tutor.ActiveStudents,
		tutor.HasAvailability, tutor.Active)
	return err
}

// UpdateTutorStats refreshes the aggregate performance fields the worker
// derives from completed sessions.
func (r *Repository) UpdateTutorStats(ctx context.Context, tutorID string, avgRating, completionRate float64, activeStudents int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tutors
		SET avg_rating = $2, completion_rate = $3, active_students = $4, updated_at = NOW()
		WHERE id = $1
	`, tutorID, avgRating, completionRate, activeStudents)
	return err
}

// DeactivateTutor soft-removes a tutor from matching. Rows are never deleted.
func (r *Repository) DeactivateTutor(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tutors SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTutor(row rowScanner) (TutorProfile, error) {
	var (
		tutor                    TutorProfile
		subjects, grades, boards []byte
		createdAt, updatedAt     time.Time
	)
	err := row.Scan(&tutor.ID, &tutor.Name, &tutor.Department, &subjects, &grades, &boards,
		&tutor.ExperienceYears, &tutor.AvgTestScore, &tutor.AvgRating, &tutor.CompletionRate,
		&tutor.ActiveStudents, &tutor.HasAvailability, &tutor.Active, &createdAt, &updatedAt)
	if err != nil {
		return TutorProfile{}, err
	}
	if err := json.Unmarshal(subjects, &tutor.Subjects); err != nil {
		return TutorProfile{}, fmt.Errorf("decode subjects: %w", err)
	}
	if err := json.Unmarshal(grades, &tutor.Grades); err != nil {
		return TutorProfile{}, fmt.Errorf("decode grades: %w", err)
	}
	if err := json.Unmarshal(boards, &tutor.Boards); err != nil {
		return TutorProfile{}, fmt.Errorf("decode boards: %w", err)
	}
	tutor.CreatedAt = createdAt
	tutor.UpdatedAt = updatedAt
	return tutor, nil
}
