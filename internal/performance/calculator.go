// Package performance derives quality signals from completed sessions and
// their attendance records, and aggregates dashboard statistics over session
// collections.
package performance

import (
	"classmatch/internal/attendance"
	"classmatch/internal/scheduling"
)

// Engagement levels map to fixed numeric values for averaging.
const (
	engagementHighValue   = 5
	engagementMediumValue = 3
	engagementLowValue    = 1
)

// SessionMetrics are the derived signals for one completed session. Nil
// pointers mean the signal could not be computed, which is distinct from
// zero.
type SessionMetrics struct {
	PunctualityScore    *float64 `json:"punctuality_score,omitempty"`
	EngagementAvg       *float64 `json:"engagement_avg,omitempty"`
	CompletionCompliant bool     `json:"completion_compliant"`
}

// ComputeSessionMetrics derives punctuality, engagement and compliance from
// the session and its attendance records.
func ComputeSessionMetrics(session *scheduling.ClassSession, records []attendance.Record) SessionMetrics {
	m := SessionMetrics{
		CompletionCompliant: completionCompliant(session),
	}

	for _, rec := range records {
		if rec.Role == attendance.RoleTutor && rec.LateMinutes != nil {
			score := punctualityScore(*rec.LateMinutes)
			m.PunctualityScore = &score
			break
		}
	}

	if avg, ok := engagementAverage(records); ok {
		m.EngagementAvg = &avg
	}
	return m
}

// punctualityScore bands the tutor's lateness in minutes. Band edges are
// inclusive on the lower band: exactly 5 minutes late still scores 3.0.
func punctualityScore(lateMinutes float64) float64 {
	switch {
	case lateMinutes <= 0:
		return 5.0
	case lateMinutes <= 2:
		return 4.0
	case lateMinutes <= 5:
		return 3.0
	case lateMinutes <= 10:
		return 2.0
	default:
		return 1.0
	}
}

// engagementAverage averages student records carrying an engagement level.
// Records without one are skipped; no qualifying record means no average.
func engagementAverage(records []attendance.Record) (float64, bool) {
	sum, count := 0, 0
	for _, rec := range records {
		if rec.Role != attendance.RoleStudent {
			continue
		}
		switch rec.Engagement {
		case attendance.EngagementHigh:
			sum += engagementHighValue
		case attendance.EngagementMedium:
			sum += engagementMediumValue
		case attendance.EngagementLow:
			sum += engagementLowValue
		default:
			continue
		}
		count++
	}
	if count == 0 {
		return 0, false
	}
	return float64(sum) / float64(count), true
}

// completionCompliant reports whether a completed session met the post-class
// requirements: recording uploaded and attendance reviewed.
func completionCompliant(session *scheduling.ClassSession) bool {
	return session.Status == scheduling.StatusCompleted &&
		session.RecordingURL != "" &&
		session.AttendanceReviewed
}
