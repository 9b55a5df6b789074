package scheduling

import (
	"errors"
	"strings"
)

// ErrSessionNotFound is returned when a session id resolves to nothing.
var ErrSessionNotFound = errors.New("session not found")

// ErrOverrideReasonRequired is returned when a caller overrides a conflict
// without recording why.
var ErrOverrideReasonRequired = errors.New("conflict override requires a justification")

// ValidationError is one failed structural check.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every structural violation so callers see all of
// them at once. Nothing is persisted when any are present.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return "invalid session: " + strings.Join(msgs, "; ")
}

// Messages returns the violation texts for API responses.
func (e ValidationErrors) Messages() []string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Message
	}
	return msgs
}

// ConflictError is a decision point, not a hard failure: the proposed slot
// collides with an existing session and the caller may pick another slot or
// override with a justification.
type ConflictError struct {
	TutorID     string    `json:"tutor_id"`
	SessionID   string    `json:"session_id"`
	Subject     string    `json:"subject"`
	Start       TimeOfDay `json:"start"`
	End         TimeOfDay `json:"end"`
	Counterpart string    `json:"counterpart"`
}

func (e *ConflictError) Error() string {
	return "tutor " + e.TutorID + " already has " + e.Subject +
		" at " + e.Start.String() + "-" + e.End.String()
}
