package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Roles a record can belong to.
const (
	RoleTutor   = "tutor"
	RoleStudent = "student"
)

// Engagement levels a marker can assign to a student record.
const (
	EngagementHigh   = "high"
	EngagementMedium = "medium"
	EngagementLow    = "low"
)

// Record is the per-participant attendance row for a session. Placeholders
// are created when the session is scheduled and filled in when attendance is
// marked.
type Record struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id"`
	ParticipantID string     `json:"participant_id"`
	Role          string     `json:"role"`
	Present       bool       `json:"present"`
	JoinTime      *time.Time `json:"join_time,omitempty"`
	LeaveTime     *time.Time `json:"leave_time,omitempty"`
	Engagement    string     `json:"engagement,omitempty"`
	LateMinutes   *float64   `json:"late_minutes,omitempty"` // tutor only
	AbsenceReason string     `json:"absence_reason,omitempty"`
	Marked        bool       `json:"marked"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Mark is one participant's attendance as reported by the marker.
type Mark struct {
	ParticipantID string     `json:"participant_id"`
	Present       bool       `json:"present"`
	JoinTime      *time.Time `json:"join_time,omitempty"`
	LeaveTime     *time.Time `json:"leave_time,omitempty"`
	Engagement    string     `json:"engagement,omitempty"`
	LateMinutes   *float64   `json:"late_minutes,omitempty"`
	AbsenceReason string     `json:"absence_reason,omitempty"`
}

// SessionFlagger flags the owning session once its records were reviewed.
type SessionFlagger interface {
	SetAttendanceReviewed(ctx context.Context, sessionID string) error
}

// RecordStore persists attendance records.
type RecordStore interface {
	ListBySession(ctx context.Context, sessionID string) ([]Record, error)
	ApplyMark(ctx context.Context, sessionID string, m Mark) error
}

// Service fills attendance placeholders for a session.
type Service struct {
	repo     RecordStore
	sessions SessionFlagger
}

// NewService creates a service backed by a record store.
func NewService(repo RecordStore, sessions SessionFlagger) *Service {
	return &Service{repo: repo, sessions: sessions}
}

// MarkSession applies the marks to the session's placeholder records. Every
// mark must target an existing placeholder; unknown participants are
// rejected. When reviewed is set, the session's review flag is raised too.
func (s *Service) MarkSession(ctx context.Context, sessionID string, marks []Mark, reviewed bool) error {
	if sessionID == "" {
		return errors.New("session id required")
	}
	for _, m := range marks {
		if err := validateMark(m); err != nil {
			return err
		}
	}
	for _, m := range marks {
		if err := s.repo.ApplyMark(ctx, sessionID, m); err != nil {
			return err
		}
	}
	if reviewed && s.sessions != nil {
		if err := s.sessions.SetAttendanceReviewed(ctx, sessionID); err != nil {
			return fmt.Errorf("flag session reviewed: %w", err)
		}
	}
	return nil
}

// RecordsForSession returns all records, placeholders included.
func (s *Service) RecordsForSession(ctx context.Context, sessionID string) ([]Record, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

func validateMark(m Mark) error {
	if m.ParticipantID == "" {
		return errors.New("participant id required")
	}
	switch m.Engagement {
	case "", EngagementHigh, EngagementMedium, EngagementLow:
	default:
		return fmt.Errorf("unknown engagement level %q", m.Engagement)
	}
	if m.LateMinutes != nil && *m.LateMinutes < 0 {
		return errors.New("late minutes cannot be negative")
	}
	return nil
}
