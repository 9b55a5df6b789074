package scheduling

import (
	"fmt"
	"time"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses "HH:MM" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// Hour returns the hour component (0-23).
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component (0-59).
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add advances the time by the given minutes, wrapping on a 24-hour clock.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	sum := (int(t) + minutes) % minutesPerDay
	if sum < 0 {
		sum += minutesPerDay
	}
	return TimeOfDay(sum)
}

// String formats as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// ClassType distinguishes how a session is staffed on the student side.
type ClassType string

const (
	TypeOneOnOne ClassType = "one_on_one"
	TypeGroup    ClassType = "group"
	TypeDemo     ClassType = "demo"
)

// IsValid reports whether the type is one of the known values.
func (t ClassType) IsValid() bool {
	switch t {
	case TypeOneOnOne, TypeGroup, TypeDemo:
		return true
	}
	return false
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusOngoing     Status = "ongoing"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// IsActive reports whether the session still occupies the tutor's calendar.
func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusOngoing
}

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRescheduled
}

// Action is a lifecycle transition request.
type Action string

const (
	ActionStart      Action = "start"
	ActionComplete   Action = "complete"
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
)

// TransitionError reports a lifecycle action not allowed from the current state.
type TransitionError struct {
	From   Status
	Action Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s session", e.Action, e.From)
}

// Transition returns the state an action leads to from the given state.
// Sessions are mutated only through this table; terminal states have no
// outgoing edges.
func Transition(from Status, action Action) (Status, error) {
	switch action {
	case ActionStart:
		if from == StatusScheduled {
			return StatusOngoing, nil
		}
	case ActionComplete:
		if from == StatusOngoing {
			return StatusCompleted, nil
		}
	case ActionCancel:
		if from.IsActive() {
			return StatusCancelled, nil
		}
	case ActionReschedule:
		if from == StatusScheduled {
			return StatusRescheduled, nil
		}
	}
	return "", &TransitionError{From: from, Action: action}
}

// MaxGroupStudents bounds the group list of a group session.
const MaxGroupStudents = 8

// ClassSession is a scheduled class. End is derived from Start and Duration
// and never set directly. Rows are soft-stated, never hard-deleted.
type ClassSession struct {
	ID       string    `json:"id"`
	Subject  string    `json:"subject"`
	Type     ClassType `json:"class_type"`
	Grade    string    `json:"grade"`
	Board    string    `json:"board"`
	Platform string    `json:"platform,omitempty"`

	Date     time.Time `json:"scheduled_date"` // date only, UTC midnight
	Start    TimeOfDay `json:"scheduled_time"`
	Duration int       `json:"duration"` // minutes
	End      TimeOfDay `json:"end_time"`

	TutorID         string   `json:"tutor_id"`
	StudentID       string   `json:"student_id,omitempty"`
	GroupStudentIDs []string `json:"group_student_ids,omitempty"`
	DemoStudentID   string   `json:"demo_student_id,omitempty"`

	Status           Status `json:"status"`
	CompletionStatus string `json:"completion_status,omitempty"`
	RescheduledFrom  string `json:"rescheduled_from,omitempty"`
	OverrideReason   string `json:"override_reason,omitempty"`

	ActualStart *time.Time `json:"actual_start,omitempty"`
	ActualEnd   *time.Time `json:"actual_end,omitempty"`

	Notes     string `json:"notes,omitempty"`
	Topics    string `json:"topics,omitempty"`
	Materials string `json:"materials,omitempty"`

	TutorFeedback       string   `json:"tutor_feedback,omitempty"`
	StudentFeedback     string   `json:"student_feedback,omitempty"`
	QualityScore        *float64 `json:"quality_score,omitempty"`
	PunctualityScore    *float64 `json:"punctuality_score,omitempty"`
	EngagementAvg       *float64 `json:"engagement_avg,omitempty"`
	CompletionCompliant bool     `json:"completion_compliant"`
	RecordingURL        string   `json:"recording_url,omitempty"`
	AttendanceReviewed  bool     `json:"attendance_reviewed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParticipantIDs returns the student-side participants for the session type.
func (s *ClassSession) ParticipantIDs() []string {
	switch s.Type {
	case TypeGroup:
		return s.GroupStudentIDs
	case TypeDemo:
		if s.DemoStudentID != "" {
			return []string{s.DemoStudentID}
		}
	default:
		if s.StudentID != "" {
			return []string{s.StudentID}
		}
	}
	return nil
}

// validateParticipants enforces that exactly one participant field matching
// the session type is populated.
func (s *ClassSession) validateParticipants() *ValidationError {
	single := s.StudentID != ""
	group := len(s.GroupStudentIDs) > 0
	demo := s.DemoStudentID != ""

	switch s.Type {
	case TypeOneOnOne:
		if !single || group || demo {
			return &ValidationError{Field: "students", Message: "one-on-one sessions need exactly one primary student"}
		}
	case TypeGroup:
		if !group || single || demo {
			return &ValidationError{Field: "students", Message: "group sessions need a non-empty student list"}
		}
		if len(s.GroupStudentIDs) > MaxGroupStudents {
			return &ValidationError{Field: "students", Message: fmt.Sprintf("group sessions are capped at %d students", MaxGroupStudents)}
		}
	case TypeDemo:
		if !demo || single || group {
			return &ValidationError{Field: "students", Message: "demo sessions need exactly one demo student"}
		}
	default:
		return &ValidationError{Field: "class_type", Message: "unknown class type"}
	}
	return nil
}
