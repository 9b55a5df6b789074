package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classmatch/internal/attendance"
	"classmatch/internal/auth"
	"classmatch/internal/matching"
	"classmatch/internal/performance"
	"classmatch/internal/scheduling"
)

// SessionReader reads sessions for the query endpoints.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*scheduling.ClassSession, error)
	ListSessions(ctx context.Context, f scheduling.ListFilter) ([]scheduling.ClassSession, error)
}

// TutorStore reads and writes tutor profiles.
type TutorStore interface {
	GetTutor(ctx context.Context, id string) (*matching.TutorProfile, error)
	ListActiveTutors(ctx context.Context, department string) ([]matching.TutorProfile, error)
	UpsertTutor(ctx context.Context, tutor *matching.TutorProfile) error
	DeactivateTutor(ctx context.Context, id string) error
}

// AuthConfig carries what the token endpoint and middleware need.
type AuthConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
}

// Handler exposes the matching and scheduling operations over HTTP.
type Handler struct {
	engine     *matching.Engine
	scheduler  *scheduling.Service
	attendance *attendance.Service
	sessions   SessionReader
	tutors     TutorStore
	authCfg    AuthConfig
	matchLimit int
}

// New wires a handler.
func New(engine *matching.Engine, scheduler *scheduling.Service, att *attendance.Service,
	sessions SessionReader, tutors TutorStore, authCfg AuthConfig, matchLimit int) *Handler {
	if matchLimit <= 0 {
		matchLimit = matching.DefaultLimit
	}
	return &Handler{
		engine:     engine,
		scheduler:  scheduler,
		attendance: att,
		sessions:   sessions,
		tutors:     tutors,
		authCfg:    authCfg,
		matchLimit: matchLimit,
	}
}

// Register mounts the API routes. Everything under /v1 except the token
// endpoint requires a bearer token.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/v1/auth/token", h.IssueToken)

	v1 := r.Group("/v1", auth.ServiceAuth(h.authCfg.SigningKey, h.authCfg.Issuer))
	v1.POST("/matches", h.FindMatches)

	v1.POST("/sessions", h.CreateSession)
	v1.GET("/sessions", h.ListSessions)
	v1.GET("/sessions/:id", h.GetSession)
	v1.POST("/sessions/:id/start", h.StartSession)
	v1.POST("/sessions/:id/complete", h.CompleteSession)
	v1.POST("/sessions/:id/cancel", h.CancelSession)
	v1.POST("/sessions/:id/reschedule", h.RescheduleSession)
	v1.POST("/sessions/:id/attendance", h.MarkAttendance)
	v1.GET("/sessions/:id/attendance", h.GetAttendance)

	v1.GET("/dashboard", h.Dashboard)

	v1.GET("/tutors", h.ListTutors)
	v1.GET("/tutors/:id", h.GetTutor)
	v1.PUT("/tutors/:id", h.UpsertTutor)
	v1.DELETE("/tutors/:id", h.DeactivateTutor)
}

// ---------- Auth ----------

// IssueToken issues a service token for an API client.
func (h *Handler) IssueToken(c *gin.Context) {
	var req struct {
		ClientID string `json:"client_id" binding:"required"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = "service"
	}
	token, err := auth.Issue(req.ClientID, req.Role, h.authCfg.Issuer, h.authCfg.SigningKey, h.authCfg.AccessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"access_token": token.Value,
		"expires_at":   token.ExpiresAt.Unix(),
	})
}

// ---------- Matching ----------

// FindMatches shortlists tutors for a student request.
func (h *Handler) FindMatches(c *gin.Context) {
	var req struct {
		Request matching.StudentRequest `json:"request"`
		Filters matching.Filters        `json:"filters"`
		Limit   int                     `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit := req.Limit
	if limit <= 0 || limit > h.matchLimit {
		limit = h.matchLimit
	}

	results, err := h.engine.FindBestMatches(c.Request.Context(), req.Request, req.Filters, limit)
	if err != nil {
		if errors.Is(err, matching.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	matchRequestsTotal.Inc()
	if results == nil {
		results = []matching.MatchResult{}
	}
	c.JSON(http.StatusOK, gin.H{"matches": results})
}

// ---------- Sessions ----------

type sessionStudents struct {
	StudentID       string   `json:"student_id"`
	GroupStudentIDs []string `json:"group_student_ids"`
	DemoStudentID   string   `json:"demo_student_id"`
}

type createSessionRequest struct {
	Subject           string          `json:"subject" binding:"required"`
	ClassType         string          `json:"class_type" binding:"required"`
	Grade             string          `json:"grade"`
	Board             string          `json:"board"`
	ScheduledDate     string          `json:"scheduled_date" binding:"required"`
	ScheduledTime     string          `json:"scheduled_time" binding:"required"`
	Duration          int             `json:"duration" binding:"required"`
	TutorID           string          `json:"tutor_id" binding:"required"`
	Platform          string          `json:"platform"`
	Students          sessionStudents `json:"students"`
	Notes             string          `json:"notes"`
	Topics            string          `json:"topics"`
	OverrideConflicts bool            `json:"override_conflicts"`
	OverrideReason    string          `json:"override_reason"`
}

// CreateSession validates and creates a session. Validation failures come
// back together; a conflict is a distinct outcome carrying the colliding
// session so the caller can pick another slot or override.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": []string{err.Error()}})
		return
	}

	date, err := time.Parse("2006-01-02", req.ScheduledDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": []string{"invalid scheduled_date, want YYYY-MM-DD"}})
		return
	}
	start, err := scheduling.ParseTimeOfDay(req.ScheduledTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": []string{err.Error()}})
		return
	}

	session := &scheduling.ClassSession{
		Subject:         req.Subject,
		Type:            scheduling.ClassType(req.ClassType),
		Grade:           req.Grade,
		Board:           req.Board,
		Platform:        req.Platform,
		Date:            date,
		Start:           start,
		Duration:        req.Duration,
		TutorID:         req.TutorID,
		StudentID:       req.Students.StudentID,
		GroupStudentIDs: req.Students.GroupStudentIDs,
		DemoStudentID:   req.Students.DemoStudentID,
		Notes:           req.Notes,
		Topics:          req.Topics,
	}

	opts := scheduling.CreateOptions{Override: req.OverrideConflicts, OverrideReason: req.OverrideReason}
	if err := h.scheduler.ValidateAndCreate(c.Request.Context(), session, opts); err != nil {
		h.writeSchedulingError(c, err)
		return
	}

	sessionsScheduledTotal.Inc()
	if session.OverrideReason != "" {
		conflictsOverriddenTotal.Inc()
	}
	c.JSON(http.StatusCreated, gin.H{
		"status":            "success",
		"session_id":        session.ID,
		"computed_end_time": session.End.String(),
	})
}

func (h *Handler) writeSchedulingError(c *gin.Context, err error) {
	var verrs scheduling.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": verrs.Messages()})
		return
	}

	var conflict *scheduling.ConflictError
	if errors.As(err, &conflict) {
		conflictsDetectedTotal.Inc()
		c.JSON(http.StatusConflict, gin.H{
			"status": "conflict",
			"conflicting_session": gin.H{
				"id":                conflict.SessionID,
				"subject":           conflict.Subject,
				"time":              conflict.Start.String() + "-" + conflict.End.String(),
				"counterpart_label": conflict.Counterpart,
			},
		})
		return
	}

	switch {
	case errors.Is(err, scheduling.ErrOverrideReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": []string{err.Error()}})
	case errors.Is(err, scheduling.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, scheduling.ErrTutorBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		var terr *scheduling.TransitionError
		if errors.As(err, &terr) {
			c.JSON(http.StatusConflict, gin.H{"error": terr.Error()})
			return
		}
		log.Printf("scheduling error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// ListSessions returns sessions matching the query filters.
func (h *Handler) ListSessions(c *gin.Context) {
	filter := scheduling.ListFilter{
		TutorID:    c.Query("tutor_id"),
		Department: c.Query("department"),
		Status:     scheduling.Status(c.Query("status")),
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = t
		}
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []scheduling.ClassSession{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession returns one session by id.
func (h *Handler) GetSession(c *gin.Context) {
	s, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// StartSession moves a scheduled session to ongoing.
func (h *Handler) StartSession(c *gin.Context) {
	s, err := h.scheduler.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeSchedulingError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// CompleteSession closes an ongoing session.
func (h *Handler) CompleteSession(c *gin.Context) {
	var req struct {
		CompletionStatus string `json:"completion_status"`
		RecordingURL     string `json:"recording_url"`
	}
	_ = c.ShouldBindJSON(&req) // body optional

	s, err := h.scheduler.Complete(c.Request.Context(), c.Param("id"), req.CompletionStatus, req.RecordingURL)
	if err != nil {
		h.writeSchedulingError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// CancelSession soft-cancels an active session.
func (h *Handler) CancelSession(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	s, err := h.scheduler.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		h.writeSchedulingError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// RescheduleSession cancels the original and creates a linked replacement.
func (h *Handler) RescheduleSession(c *gin.Context) {
	var req struct {
		NewDate           string `json:"new_date" binding:"required"`
		NewTime           string `json:"new_time" binding:"required"`
		OverrideConflicts bool   `json:"override_conflicts"`
		OverrideReason    string `json:"override_reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": []string{err.Error()}})
		return
	}

	date, err := time.Parse("2006-01-02", req.NewDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": []string{"invalid new_date, want YYYY-MM-DD"}})
		return
	}
	start, err := scheduling.ParseTimeOfDay(req.NewTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "errors": []string{err.Error()}})
		return
	}

	opts := scheduling.CreateOptions{Override: req.OverrideConflicts, OverrideReason: req.OverrideReason}
	replacement, err := h.scheduler.Reschedule(c.Request.Context(), c.Param("id"), date, start, opts)
	if err != nil {
		h.writeSchedulingError(c, err)
		return
	}

	sessionsScheduledTotal.Inc()
	c.JSON(http.StatusCreated, gin.H{
		"status":            "success",
		"session_id":        replacement.ID,
		"computed_end_time": replacement.End.String(),
		"replaces":          replacement.RescheduledFrom,
	})
}

// ---------- Attendance ----------

// MarkAttendance fills the session's placeholder records.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req struct {
		Records  []attendance.Mark `json:"records" binding:"required"`
		Reviewed bool              `json:"reviewed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.attendance.MarkSession(c.Request.Context(), c.Param("id"), req.Records, req.Reviewed); err != nil {
		if errors.Is(err, attendance.ErrNoPlaceholder) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetAttendance lists a session's attendance records.
func (h *Handler) GetAttendance(c *gin.Context) {
	records, err := h.attendance.RecordsForSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// ---------- Dashboard ----------

// Dashboard aggregates session statistics, optionally scoped by department
// or tutor and bounded by a date range.
func (h *Handler) Dashboard(c *gin.Context) {
	filter := scheduling.ListFilter{
		TutorID:    c.Query("tutor_id"),
		Department: c.Query("department"),
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = t
		}
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stats := performance.AggregateDashboardStats(sessions, time.Now().UTC())
	c.JSON(http.StatusOK, stats)
}

// ---------- Tutors ----------

// ListTutors returns active tutors, optionally department-scoped.
func (h *Handler) ListTutors(c *gin.Context) {
	tutors, err := h.tutors.ListActiveTutors(c.Request.Context(), c.Query("department"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tutors == nil {
		tutors = []matching.TutorProfile{}
	}
	c.JSON(http.StatusOK, gin.H{"tutors": tutors})
}

// GetTutor returns one tutor profile.
func (h *Handler) GetTutor(c *gin.Context) {
	tutor, err := h.tutors.GetTutor(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if tutor == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tutor not found"})
		return
	}
	c.JSON(http.StatusOK, tutor)
}

// UpsertTutor creates or updates a profile.
func (h *Handler) UpsertTutor(c *gin.Context) {
	var tutor matching.TutorProfile
	if err := c.ShouldBindJSON(&tutor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tutor.ID = c.Param("id")
	if err := h.tutors.UpsertTutor(c.Request.Context(), &tutor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tutor)
}

// DeactivateTutor removes a tutor from matching without deleting the row.
func (h *Handler) DeactivateTutor(c *gin.Context) {
	if err := h.tutors.DeactivateTutor(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
