package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"classmatch/internal/attendance"
	"classmatch/internal/config"
	"classmatch/internal/matching"
	"classmatch/internal/notifyclient"
	"classmatch/internal/performance"
	"classmatch/internal/queue"
	"classmatch/internal/scheduling"
	"classmatch/internal/store"
)

// Worker consumes scheduler events: scheduled sessions trigger participant
// notifications, completed sessions get their performance metrics derived and
// the tutor's aggregates refreshed.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classmatch:events")
	}

	sessionRepo := scheduling.NewRepository(db.Client)
	attendanceRepo := attendance.NewRepository(db.Client)
	tutorRepo := matching.NewRepository(db.Client)
	notify := notifyclient.New(cfg.NotifyURL, cfg.NotifySkip)

	if !cfg.NotifySkip {
		if err := notify.Health(ctx); err != nil {
			log.Printf("WARNING: notification service not available: %v", err)
			log.Println("worker will retry notifications when events arrive")
		} else {
			log.Println("notification service connected")
		}
	}

	w := &worker{
		sessions:   sessionRepo,
		attendance: attendanceRepo,
		tutors:     tutorRepo,
		notify:     notify,
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		id := string(msg.Body)
		switch msg.Type {
		case scheduling.EventSessionScheduled:
			if err := w.handleScheduled(ctx, id); err != nil {
				log.Printf("scheduled event %s failed: %v", id, err)
			}
		case scheduling.EventSessionCompleted:
			if err := w.handleCompleted(ctx, id); err != nil {
				log.Printf("completed event %s failed: %v", id, err)
			}
		}
	}

	log.Println("worker stopped")
}

type worker struct {
	sessions   *scheduling.Repository
	attendance *attendance.Repository
	tutors     *matching.Repository
	notify     *notifyclient.Client
}

// handleScheduled notifies every participant about the new session.
func (w *worker) handleScheduled(ctx context.Context, sessionID string) error {
	s, err := w.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil {
		log.Printf("session %s vanished before notification", sessionID)
		return nil
	}
	return w.notify.SessionScheduled(ctx, notice(s))
}

// handleCompleted derives the session's performance metrics from its
// attendance records, stores them, refreshes the tutor's aggregates and
// notifies the participants.
func (w *worker) handleCompleted(ctx context.Context, sessionID string) error {
	s, err := w.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil {
		log.Printf("session %s vanished before metric derivation", sessionID)
		return nil
	}

	records, err := w.attendance.ListBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	m := performance.ComputeSessionMetrics(s, records)
	quality := qualityScore(m)
	if err := w.sessions.UpdateQuality(ctx, sessionID, m.PunctualityScore, m.EngagementAvg, quality, m.CompletionCompliant); err != nil {
		return err
	}

	if err := w.refreshTutorStats(ctx, s.TutorID); err != nil {
		log.Printf("refresh tutor %s stats failed: %v", s.TutorID, err)
	}

	if err := w.notify.SessionCompleted(ctx, notice(s)); err != nil {
		log.Printf("completion notice for %s failed: %v", sessionID, err)
	}
	return nil
}

// qualityScore blends punctuality and engagement into a single signal. With
// only one present that one stands alone; with neither there is no score.
func qualityScore(m performance.SessionMetrics) *float64 {
	switch {
	case m.PunctualityScore != nil && m.EngagementAvg != nil:
		avg := (*m.PunctualityScore + *m.EngagementAvg) / 2
		return &avg
	case m.PunctualityScore != nil:
		return m.PunctualityScore
	case m.EngagementAvg != nil:
		return m.EngagementAvg
	}
	return nil
}

// refreshTutorStats recomputes the matching aggregates from the tutor's
// session history: average quality as the rating, completed share of closed
// sessions as the completion rate, and distinct students on the active
// calendar.
func (w *worker) refreshTutorStats(ctx context.Context, tutorID string) error {
	sessions, err := w.sessions.ListSessions(ctx, scheduling.ListFilter{TutorID: tutorID})
	if err != nil {
		return err
	}

	completed, cancelled := 0, 0
	qualitySum, qualityCount := 0.0, 0
	activeStudents := map[string]struct{}{}

	for i := range sessions {
		s := &sessions[i]
		switch s.Status {
		case scheduling.StatusCompleted:
			completed++
		case scheduling.StatusCancelled:
			cancelled++
		}
		if s.QualityScore != nil {
			qualitySum += *s.QualityScore
			qualityCount++
		}
		if s.Status.IsActive() {
			for _, id := range s.ParticipantIDs() {
				activeStudents[id] = struct{}{}
			}
		}
	}

	avgRating := 0.0
	if qualityCount > 0 {
		avgRating = qualitySum / float64(qualityCount)
	}
	completionRate := 0.0
	if closed := completed + cancelled; closed > 0 {
		completionRate = float64(completed) * 100 / float64(closed)
	}

	return w.tutors.UpdateTutorStats(ctx, tutorID, avgRating, completionRate, len(activeStudents))
}

func notice(s *scheduling.ClassSession) notifyclient.SessionNotice {
	return notifyclient.SessionNotice{
		SessionID:    s.ID,
		Subject:      s.Subject,
		Date:         s.Date.Format("2006-01-02"),
		StartTime:    s.Start.String(),
		EndTime:      s.End.String(),
		TutorID:      s.TutorID,
		Participants: s.ParticipantIDs(),
	}
}
