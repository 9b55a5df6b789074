package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and ensures the
// schema exists.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return &DB{Client: db}, err
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Client: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tutors (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL DEFAULT '',
		department       TEXT NOT NULL DEFAULT '',
		subjects         JSONB NOT NULL DEFAULT '[]',
		grades           JSONB NOT NULL DEFAULT '[]',
		boards           JSONB NOT NULL DEFAULT '[]',
		experience_years INT NOT NULL DEFAULT 0,
		avg_test_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
		completion_rate  DOUBLE PRECISION NOT NULL DEFAULT 0,
		active_students  INT NOT NULL DEFAULT 0,
		has_availability BOOLEAN NOT NULL DEFAULT FALSE,
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id                   TEXT PRIMARY KEY,
		subject              TEXT NOT NULL,
		class_type           TEXT NOT NULL,
		grade                TEXT NOT NULL DEFAULT '',
		board                TEXT NOT NULL DEFAULT '',
		platform             TEXT NOT NULL DEFAULT '',
		scheduled_date       DATE NOT NULL,
		start_minutes        INT NOT NULL,
		duration_mins        INT NOT NULL,
		end_minutes          INT NOT NULL,
		tutor_id             TEXT NOT NULL REFERENCES tutors(id),
		student_id           TEXT,
		demo_student_id      TEXT,
		status               TEXT NOT NULL DEFAULT 'scheduled',
		completion_status    TEXT NOT NULL DEFAULT '',
		rescheduled_from     TEXT,
		override_reason      TEXT NOT NULL DEFAULT '',
		actual_start         TIMESTAMPTZ,
		actual_end           TIMESTAMPTZ,
		notes                TEXT NOT NULL DEFAULT '',
		topics               TEXT NOT NULL DEFAULT '',
		materials            TEXT NOT NULL DEFAULT '',
		tutor_feedback       TEXT NOT NULL DEFAULT '',
		student_feedback     TEXT NOT NULL DEFAULT '',
		quality_score        DOUBLE PRECISION,
		punctuality_score    DOUBLE PRECISION,
		engagement_avg       DOUBLE PRECISION,
		completion_compliant BOOLEAN NOT NULL DEFAULT FALSE,
		recording_url        TEXT NOT NULL DEFAULT '',
		attendance_reviewed  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS session_students (
		session_id TEXT NOT NULL REFERENCES sessions(id),
		student_id TEXT NOT NULL,
		position   INT NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL REFERENCES sessions(id),
		participant_id TEXT NOT NULL,
		role           TEXT NOT NULL,
		present        BOOLEAN NOT NULL DEFAULT FALSE,
		join_time      TIMESTAMPTZ,
		leave_time     TIMESTAMPTZ,
		engagement     TEXT NOT NULL DEFAULT '',
		late_minutes   DOUBLE PRECISION,
		absence_reason TEXT NOT NULL DEFAULT '',
		marked         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (session_id, participant_id)
	);

	CREATE TABLE IF NOT EXISTS session_status_history (
		id          BIGSERIAL PRIMARY KEY,
		session_id  TEXT NOT NULL REFERENCES sessions(id),
		from_status TEXT NOT NULL DEFAULT '',
		to_status   TEXT NOT NULL,
		action      TEXT NOT NULL,
		note        TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_tutor_date ON sessions(tutor_id, scheduled_date);
	CREATE INDEX IF NOT EXISTS idx_sessions_status     ON sessions(status);
	CREATE INDEX IF NOT EXISTS idx_attendance_session  ON attendance_records(session_id);
	CREATE INDEX IF NOT EXISTS idx_history_session     ON session_status_history(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
