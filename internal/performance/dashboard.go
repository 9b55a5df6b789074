package performance

import (
	"math"
	"time"

	"classmatch/internal/scheduling"
)

// DashboardStats summarizes a session collection for dashboards. The caller
// scopes the collection (department or single tutor) before aggregation;
// filtering is not part of the formulas.
type DashboardStats struct {
	Total          int     `json:"total"`
	Scheduled      int     `json:"scheduled"`
	Ongoing        int     `json:"ongoing"`
	Completed      int     `json:"completed"`
	Cancelled      int     `json:"cancelled"`
	TodayTotal     int     `json:"today_total"`
	TodayCompleted int     `json:"today_completed"`
	WeekTotal      int     `json:"week_total"`
	WeekCompleted  int     `json:"week_completed"`
	CompletionRate float64 `json:"completion_rate"` // percent, one decimal
	Upcoming       int     `json:"upcoming"`        // scheduled within the next 7 days
}

// AggregateDashboardStats computes the counts and rates over the sessions as
// of now. Weeks start on Monday.
func AggregateDashboardStats(sessions []scheduling.ClassSession, now time.Time) DashboardStats {
	var stats DashboardStats

	today := dateOnly(now)
	weekStart := startOfWeek(now)
	weekEnd := weekStart.AddDate(0, 0, 7)
	upcomingEnd := today.AddDate(0, 0, 7)

	for _, s := range sessions {
		stats.Total++
		switch s.Status {
		case scheduling.StatusScheduled:
			stats.Scheduled++
		case scheduling.StatusOngoing:
			stats.Ongoing++
		case scheduling.StatusCompleted:
			stats.Completed++
		case scheduling.StatusCancelled:
			stats.Cancelled++
		}

		day := dateOnly(s.Date)
		if day.Equal(today) {
			stats.TodayTotal++
			if s.Status == scheduling.StatusCompleted {
				stats.TodayCompleted++
			}
		}
		if !day.Before(weekStart) && day.Before(weekEnd) {
			stats.WeekTotal++
			if s.Status == scheduling.StatusCompleted {
				stats.WeekCompleted++
			}
		}
		if s.Status == scheduling.StatusScheduled && !day.Before(today) && day.Before(upcomingEnd) {
			stats.Upcoming++
		}
	}

	if stats.Total > 0 {
		rate := float64(stats.Completed) / float64(stats.Total) * 100
		stats.CompletionRate = math.Round(rate*10) / 10
	}
	return stats
}

// startOfWeek returns the Monday 00:00 UTC of the week containing t.
func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return dateOnly(t).AddDate(0, 0, -(weekday - 1))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
