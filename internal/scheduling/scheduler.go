package scheduling

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"classmatch/internal/queue"
)

// ConflictBufferMinutes is the transition margin enforced around every
// session when checking a tutor's calendar.
const ConflictBufferMinutes = 15

// Operating window and duration bounds for any session.
const (
	OpeningHour     = 6
	ClosingHour     = 23
	MinDurationMins = 15
	MaxDurationMins = 480
)

// Queue message types emitted by the scheduler and consumed by the worker.
const (
	EventSessionScheduled = "session.scheduled"
	EventSessionCompleted = "session.completed"
)

// SessionStore is the persistence collaborator. Creation must be
// all-or-nothing: session row, attendance placeholders and the audit entry
// commit together or not at all.
type SessionStore interface {
	ActiveSessionsForTutor(ctx context.Context, tutorID string, date time.Time, excludeID string) ([]ClassSession, error)
	CreateSession(ctx context.Context, s *ClassSession) error
	GetSession(ctx context.Context, id string) (*ClassSession, error)
	ApplyTransition(ctx context.Context, s *ClassSession, action Action, note string) error
}

// TutorLocker serializes writers on a single tutor's calendar so the conflict
// check and the insert cannot interleave with another request.
type TutorLocker interface {
	WithTutorLock(ctx context.Context, tutorID string, fn func(ctx context.Context) error) error
}

// Service validates, creates and drives sessions through their lifecycle.
type Service struct {
	store  SessionStore
	locks  TutorLocker
	events queue.Queue
	now    func() time.Time
}

// NewService wires the scheduler. events may be nil in tests; now defaults to
// time.Now.
func NewService(store SessionStore, locks TutorLocker, events queue.Queue, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, locks: locks, events: events, now: now}
}

// CreateOptions control conflict handling for a create or reschedule call.
type CreateOptions struct {
	// Override creates the session even when a conflict is detected. The
	// bypass is audited: a justification is mandatory and stored with the
	// session.
	Override       bool
	OverrideReason string
}

// ValidateAndCreate runs the structural checks, the buffer-aware conflict
// check under the tutor's lock, and persists the session with its attendance
// placeholders. Structural violations come back as ValidationErrors, a
// collision as *ConflictError.
func (svc *Service) ValidateAndCreate(ctx context.Context, s *ClassSession, opts CreateOptions) error {
	if errs := svc.validate(s); len(errs) > 0 {
		return errs
	}
	if err := svc.createLocked(ctx, s, opts, ""); err != nil {
		return err
	}
	svc.publish(ctx, EventSessionScheduled, s.ID)
	return nil
}

func (svc *Service) validate(s *ClassSession) ValidationErrors {
	var errs ValidationErrors

	if s.TutorID == "" {
		errs = append(errs, &ValidationError{Field: "tutor_id", Message: "tutor is required"})
	}
	if s.Subject == "" {
		errs = append(errs, &ValidationError{Field: "subject", Message: "subject is required"})
	}

	today := dateOnly(svc.now().UTC())
	if dateOnly(s.Date).Before(today) {
		errs = append(errs, &ValidationError{Field: "scheduled_date", Message: "cannot schedule a session on a past date"})
	}

	if h := s.Start.Hour(); h < OpeningHour || h >= ClosingHour {
		errs = append(errs, &ValidationError{Field: "scheduled_time", Message: "scheduled time is outside operating hours (06:00-23:00)"})
	}

	switch {
	case s.Duration < MinDurationMins:
		errs = append(errs, &ValidationError{Field: "duration", Message: fmt.Sprintf("session must be at least %d minutes", MinDurationMins)})
	case s.Duration > MaxDurationMins:
		errs = append(errs, &ValidationError{Field: "duration", Message: "session cannot exceed 8 hours"})
	case int(s.Start)+s.Duration > minutesPerDay:
		errs = append(errs, &ValidationError{Field: "duration", Message: "session cannot run past midnight"})
	}

	if perr := s.validateParticipants(); perr != nil {
		errs = append(errs, perr)
	}
	return errs
}

// createLocked holds the per-tutor lock across the conflict check and the
// insert. excludeID skips the session being replaced during a reschedule.
func (svc *Service) createLocked(ctx context.Context, s *ClassSession, opts CreateOptions, excludeID string) error {
	return svc.locks.WithTutorLock(ctx, s.TutorID, func(ctx context.Context) error {
		existing, err := svc.store.ActiveSessionsForTutor(ctx, s.TutorID, s.Date, excludeID)
		if err != nil {
			return fmt.Errorf("load tutor calendar: %w", err)
		}

		if conflict := FindConflict(s, existing); conflict != nil {
			if !opts.Override {
				return &ConflictError{
					TutorID:     conflict.TutorID,
					SessionID:   conflict.ID,
					Subject:     conflict.Subject,
					Start:       conflict.Start,
					End:         conflict.End,
					Counterpart: firstParticipant(conflict),
				}
			}
			if opts.OverrideReason == "" {
				return ErrOverrideReasonRequired
			}
			s.OverrideReason = opts.OverrideReason
			log.Printf("conflict override on tutor %s by session %s: %s", s.TutorID, s.ID, opts.OverrideReason)
		}

		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.End = s.Start.Add(s.Duration)
		s.Status = StatusScheduled
		return svc.store.CreateSession(ctx, s)
	})
}

// FindConflict returns the first active session whose interval overlaps the
// candidate's buffered interval, or nil. Both sessions are assumed to be on
// the same date.
func FindConflict(candidate *ClassSession, existing []ClassSession) *ClassSession {
	bufStart := int(candidate.Start) - ConflictBufferMinutes
	bufEnd := int(candidate.Start) + candidate.Duration + ConflictBufferMinutes

	for i := range existing {
		other := &existing[i]
		if !other.Status.IsActive() {
			continue
		}
		otherStart := int(other.Start)
		otherEnd := otherStart + other.Duration
		if bufStart < otherEnd && bufEnd > otherStart {
			return other
		}
	}
	return nil
}

// Start moves a scheduled session to ongoing and stamps the actual start.
func (svc *Service) Start(ctx context.Context, id string) (*ClassSession, error) {
	s, err := svc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(s.Status, ActionStart)
	if err != nil {
		return nil, err
	}
	now := svc.now().UTC()
	s.Status = next
	s.ActualStart = &now
	if err := svc.store.ApplyTransition(ctx, s, ActionStart, ""); err != nil {
		return nil, err
	}
	return s, nil
}

// Complete closes an ongoing session. The worker picks the completed event up
// to derive the performance metrics.
func (svc *Service) Complete(ctx context.Context, id, completionStatus, recordingURL string) (*ClassSession, error) {
	s, err := svc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(s.Status, ActionComplete)
	if err != nil {
		return nil, err
	}
	now := svc.now().UTC()
	s.Status = next
	s.ActualEnd = &now
	if completionStatus == "" {
		completionStatus = "completed"
	}
	s.CompletionStatus = completionStatus
	if recordingURL != "" {
		s.RecordingURL = recordingURL
	}
	if err := svc.store.ApplyTransition(ctx, s, ActionComplete, completionStatus); err != nil {
		return nil, err
	}
	svc.publish(ctx, EventSessionCompleted, s.ID)
	return s, nil
}

// Cancel soft-terminates an active session. Rows are never deleted.
func (svc *Service) Cancel(ctx context.Context, id, reason string) (*ClassSession, error) {
	s, err := svc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(s.Status, ActionCancel)
	if err != nil {
		return nil, err
	}
	s.Status = next
	s.CompletionStatus = "cancelled"
	if err := svc.store.ApplyTransition(ctx, s, ActionCancel, reason); err != nil {
		return nil, err
	}
	return s, nil
}

// Reschedule cancels the original session and creates a linked replacement at
// the new slot. The replacement is validated and conflict-checked like any
// new session, ignoring the session it replaces.
func (svc *Service) Reschedule(ctx context.Context, id string, newDate time.Time, newStart TimeOfDay, opts CreateOptions) (*ClassSession, error) {
	original, err := svc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(original.Status, ActionReschedule); err != nil {
		return nil, err
	}

	replacement := *original
	replacement.ID = ""
	replacement.Date = dateOnly(newDate)
	replacement.Start = newStart
	replacement.RescheduledFrom = original.ID
	replacement.OverrideReason = ""
	replacement.CreatedAt = time.Time{}
	replacement.UpdatedAt = time.Time{}

	if errs := svc.validate(&replacement); len(errs) > 0 {
		return nil, errs
	}
	if err := svc.createLocked(ctx, &replacement, opts, original.ID); err != nil {
		return nil, err
	}

	original.Status = StatusRescheduled
	if err := svc.store.ApplyTransition(ctx, original, ActionReschedule, "replaced by "+replacement.ID); err != nil {
		return nil, fmt.Errorf("mark original rescheduled: %w", err)
	}

	svc.publish(ctx, EventSessionScheduled, replacement.ID)
	return &replacement, nil
}

func (svc *Service) load(ctx context.Context, id string) (*ClassSession, error) {
	s, err := svc.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// publish is fire-and-forget: a failed notification never rolls back the
// session write.
func (svc *Service) publish(ctx context.Context, eventType, sessionID string) {
	if svc.events == nil {
		return
	}
	msg := queue.Message{Type: eventType, Body: []byte(sessionID)}
	if err := svc.events.Publish(ctx, msg); err != nil {
		log.Printf("publish %s for %s failed: %v", eventType, sessionID, err)
	}
}

func firstParticipant(s *ClassSession) string {
	if ids := s.ParticipantIDs(); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
