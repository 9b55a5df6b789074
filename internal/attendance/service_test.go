package attendance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecords struct {
	records map[string][]Record
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[string][]Record)}
}

func (m *memRecords) seed(sessionID string, participantIDs []string) {
	for _, id := range participantIDs {
		role := RoleStudent
		if id == "tutor-1" {
			role = RoleTutor
		}
		m.records[sessionID] = append(m.records[sessionID], Record{
			SessionID:     sessionID,
			ParticipantID: id,
			Role:          role,
		})
	}
}

func (m *memRecords) ListBySession(_ context.Context, sessionID string) ([]Record, error) {
	return m.records[sessionID], nil
}

func (m *memRecords) ApplyMark(_ context.Context, sessionID string, mark Mark) error {
	for i, rec := range m.records[sessionID] {
		if rec.ParticipantID == mark.ParticipantID {
			rec.Present = mark.Present
			rec.Engagement = mark.Engagement
			rec.LateMinutes = mark.LateMinutes
			rec.AbsenceReason = mark.AbsenceReason
			rec.Marked = true
			m.records[sessionID][i] = rec
			return nil
		}
	}
	return ErrNoPlaceholder
}

type flagRecorder struct {
	flagged []string
}

func (f *flagRecorder) SetAttendanceReviewed(_ context.Context, sessionID string) error {
	f.flagged = append(f.flagged, sessionID)
	return nil
}

func fptr(v float64) *float64 { return &v }

func TestMarkSessionFillsPlaceholders(t *testing.T) {
	store := newMemRecords()
	store.seed("sess-1", []string{"tutor-1", "stud-1", "stud-2"})
	flagger := &flagRecorder{}
	svc := NewService(store, flagger)

	marks := []Mark{
		{ParticipantID: "tutor-1", Present: true, LateMinutes: fptr(3)},
		{ParticipantID: "stud-1", Present: true, Engagement: EngagementHigh},
		{ParticipantID: "stud-2", Present: false, AbsenceReason: "sick"},
	}
	require.NoError(t, svc.MarkSession(context.Background(), "sess-1", marks, true))

	records, err := svc.RecordsForSession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.True(t, rec.Marked, rec.ParticipantID)
	}
	assert.Equal(t, []string{"sess-1"}, flagger.flagged)
}

func TestMarkSessionSkipsReviewFlagWhenNotRequested(t *testing.T) {
	store := newMemRecords()
	store.seed("sess-1", []string{"stud-1"})
	flagger := &flagRecorder{}
	svc := NewService(store, flagger)

	marks := []Mark{{ParticipantID: "stud-1", Present: true}}
	require.NoError(t, svc.MarkSession(context.Background(), "sess-1", marks, false))
	assert.Empty(t, flagger.flagged)
}

func TestMarkSessionRejectsUnknownParticipant(t *testing.T) {
	store := newMemRecords()
	store.seed("sess-1", []string{"stud-1"})
	svc := NewService(store, nil)

	marks := []Mark{{ParticipantID: "ghost", Present: true}}
	err := svc.MarkSession(context.Background(), "sess-1", marks, false)
	assert.ErrorIs(t, err, ErrNoPlaceholder)
}

func TestMarkSessionValidatesBeforeApplying(t *testing.T) {
	store := newMemRecords()
	store.seed("sess-1", []string{"stud-1", "stud-2"})
	svc := NewService(store, nil)

	// The second mark is invalid, so the first must not be applied either.
	marks := []Mark{
		{ParticipantID: "stud-1", Present: true},
		{ParticipantID: "stud-2", Engagement: "hyped"},
	}
	err := svc.MarkSession(context.Background(), "sess-1", marks, false)
	require.Error(t, err)

	records, err := svc.RecordsForSession(context.Background(), "sess-1")
	require.NoError(t, err)
	for _, rec := range records {
		assert.False(t, rec.Marked, rec.ParticipantID)
	}
}

func TestMarkSessionRequiresSessionID(t *testing.T) {
	svc := NewService(newMemRecords(), nil)
	assert.Error(t, svc.MarkSession(context.Background(), "", nil, false))
}

func TestValidateMark(t *testing.T) {
	assert.NoError(t, validateMark(Mark{ParticipantID: "p", Engagement: EngagementLow}))
	assert.NoError(t, validateMark(Mark{ParticipantID: "p"}))

	assert.Error(t, validateMark(Mark{}))
	assert.Error(t, validateMark(Mark{ParticipantID: "p", Engagement: "extreme"}))
	assert.Error(t, validateMark(Mark{ParticipantID: "p", LateMinutes: fptr(-1)}))
}
