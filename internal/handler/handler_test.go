package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classmatch/internal/attendance"
	"classmatch/internal/auth"
	"classmatch/internal/matching"
	"classmatch/internal/scheduling"
)

type fakeSessionStore struct {
	sessions map[string]*scheduling.ClassSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*scheduling.ClassSession)}
}

func (f *fakeSessionStore) ActiveSessionsForTutor(_ context.Context, tutorID string, date time.Time, excludeID string) ([]scheduling.ClassSession, error) {
	var out []scheduling.ClassSession
	for _, s := range f.sessions {
		if s.TutorID == tutorID && s.Date.Equal(date) && s.ID != excludeID && s.Status.IsActive() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) CreateSession(_ context.Context, s *scheduling.ClassSession) error {
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, id string) (*scheduling.ClassSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) ApplyTransition(_ context.Context, s *scheduling.ClassSession, action scheduling.Action, _ string) error {
	prev, ok := f.sessions[s.ID]
	if !ok {
		return scheduling.ErrSessionNotFound
	}
	if prev.Status.IsTerminal() {
		return &scheduling.TransitionError{From: prev.Status, Action: action}
	}
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) ListSessions(_ context.Context, filter scheduling.ListFilter) ([]scheduling.ClassSession, error) {
	var out []scheduling.ClassSession
	for _, s := range f.sessions {
		if filter.TutorID != "" && s.TutorID != filter.TutorID {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

type fakeTutorStore struct {
	tutors map[string]*matching.TutorProfile
}

func (f *fakeTutorStore) GetTutor(_ context.Context, id string) (*matching.TutorProfile, error) {
	return f.tutors[id], nil
}

func (f *fakeTutorStore) ListActiveTutors(_ context.Context, department string) ([]matching.TutorProfile, error) {
	var out []matching.TutorProfile
	for _, tutor := range f.tutors {
		if department == "" || tutor.Department == department {
			out = append(out, *tutor)
		}
	}
	return out, nil
}

func (f *fakeTutorStore) UpsertTutor(_ context.Context, tutor *matching.TutorProfile) error {
	cp := *tutor
	f.tutors[tutor.ID] = &cp
	return nil
}

func (f *fakeTutorStore) DeactivateTutor(_ context.Context, id string) error {
	if tutor, ok := f.tutors[id]; ok {
		tutor.Active = false
	}
	return nil
}

type fakeRecordStore struct{}

func (fakeRecordStore) ListBySession(context.Context, string) ([]attendance.Record, error) {
	return nil, nil
}

func (fakeRecordStore) ApplyMark(context.Context, string, attendance.Mark) error {
	return nil
}

const (
	testIssuer = "classmatch"
	testKey    = "test-signing-key"
)

func newTestRouter(t *testing.T) (*gin.Engine, *fakeSessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeSessionStore()
	tutors := &fakeTutorStore{tutors: map[string]*matching.TutorProfile{
		"tutor-1": {
			ID:       "tutor-1",
			Name:     "Asha",
			Subjects: []string{"Math"},
			Grades:   []string{"10"},
			Boards:   []string{"CBSE"},
			Active:   true,
		},
	}}

	engine := matching.NewEngine(tutors, nil, nil)
	scheduler := scheduling.NewService(store, scheduling.NewLocalTutorLock(), nil,
		func() time.Time { return time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC) })
	att := attendance.NewService(fakeRecordStore{}, nil)

	h := New(engine, scheduler, att, store, tutors, AuthConfig{
		Issuer:     testIssuer,
		SigningKey: testKey,
		AccessTTL:  time.Hour,
	}, 10)

	r := gin.New()
	h.Register(r)
	return r, store
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := auth.Issue("test-client", "service", testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token.Value
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, authz string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createBody() map[string]any {
	return map[string]any{
		"subject":        "Math",
		"class_type":     "one_on_one",
		"scheduled_date": "2026-09-02",
		"scheduled_time": "10:00",
		"duration":       60,
		"tutor_id":       "tutor-1",
		"students":       map[string]any{"student_id": "stud-1"},
	}
}

func TestRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/sessions", createBody(), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/sessions", createBody(), "Bearer bogus")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIssueTokenEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/auth/token", map[string]any{"client_id": "ops"}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)

	claims, err := auth.Parse(resp.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestCreateSessionEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/sessions", createBody(), bearer(t))
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Status    string `json:"status"`
		SessionID string `json:"session_id"`
		EndTime   string `json:"computed_end_time"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "11:00", resp.EndTime)
}

func TestCreateSessionValidationErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	body := createBody()
	body["duration"] = 10
	body["scheduled_time"] = "05:00"

	w := doJSON(t, r, http.MethodPost, "/v1/sessions", body, bearer(t))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Status string   `json:"status"`
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.GreaterOrEqual(t, len(resp.Errors), 2)
}

func TestCreateSessionConflictResponse(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/sessions", createBody(), bearer(t))
	require.Equal(t, http.StatusCreated, w.Code)

	overlap := createBody()
	overlap["scheduled_time"] = "10:30"
	w = doJSON(t, r, http.MethodPost, "/v1/sessions", overlap, bearer(t))
	require.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Status   string `json:"status"`
		Conflict struct {
			ID          string `json:"id"`
			Subject     string `json:"subject"`
			Time        string `json:"time"`
			Counterpart string `json:"counterpart_label"`
		} `json:"conflicting_session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conflict", resp.Status)
	assert.NotEmpty(t, resp.Conflict.ID)
	assert.Equal(t, "Math", resp.Conflict.Subject)
	assert.Equal(t, "10:00-11:00", resp.Conflict.Time)
	assert.Equal(t, "stud-1", resp.Conflict.Counterpart)

	// Overriding without a reason is still rejected.
	overlap["override_conflicts"] = true
	w = doJSON(t, r, http.MethodPost, "/v1/sessions", overlap, bearer(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	overlap["override_reason"] = "principal approved"
	w = doJSON(t, r, http.MethodPost, "/v1/sessions", overlap, bearer(t))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	r, store := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/sessions", createBody(), bearer(t))
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(t, r, http.MethodPost, "/v1/sessions/"+created.SessionID+"/start", nil, bearer(t))
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/sessions/"+created.SessionID+"/complete",
		map[string]any{"recording_url": "https://recordings/abc"}, bearer(t))
	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := store.GetSession(context.Background(), created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusCompleted, stored.Status)

	// Completing twice trips the transition table.
	w = doJSON(t, r, http.MethodPost, "/v1/sessions/"+created.SessionID+"/complete", nil, bearer(t))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/v1/sessions/ghost", nil, bearer(t))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchesEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	body := map[string]any{
		"request": map[string]any{
			"grade":    "10",
			"board":    "cbse",
			"subjects": []string{"Math"},
		},
	}
	w := doJSON(t, r, http.MethodPost, "/v1/matches", body, bearer(t))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Matches []matching.MatchResult `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "tutor-1", resp.Matches[0].TutorID)

	missing := map[string]any{"request": map[string]any{"board": "cbse"}}
	w = doJSON(t, r, http.MethodPost, "/v1/matches", missing, bearer(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/sessions", createBody(), bearer(t))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/dashboard", nil, bearer(t))
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		Total     int `json:"total"`
		Scheduled int `json:"scheduled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Scheduled)
}

func TestTutorEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/v1/tutors", nil, bearer(t))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/tutors/tutor-1", nil, bearer(t))
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/v1/tutors/ghost", nil, bearer(t))
	assert.Equal(t, http.StatusNotFound, w.Code)

	update := map[string]any{"name": "Asha B", "subjects": []string{"Math", "Physics"}, "active": true}
	w = doJSON(t, r, http.MethodPut, "/v1/tutors/tutor-1", update, bearer(t))
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/v1/tutors/tutor-1", nil, bearer(t))
	assert.Equal(t, http.StatusOK, w.Code)
}
