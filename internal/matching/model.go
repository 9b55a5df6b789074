package matching

import "time"

// TutorProfile is the read model a tutor is ranked on. Aggregate stats are
// refreshed by the worker after sessions complete; profiles are deactivated,
// never deleted.
type TutorProfile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Department      string    `json:"department"`
	Subjects        []string  `json:"subjects"`
	Grades          []string  `json:"grades"`
	Boards          []string  `json:"boards"`
	ExperienceYears int       `json:"experience_years"`
	AvgTestScore    float64   `json:"avg_test_score"`  // 0-100
	AvgRating       float64   `json:"avg_rating"`      // 0-5
	CompletionRate  float64   `json:"completion_rate"` // 0-100
	ActiveStudents  int       `json:"active_students"`
	HasAvailability bool      `json:"has_availability"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StudentRequest describes what a student needs from a tutor. It is built per
// matching call and never persisted.
type StudentRequest struct {
	Grade        string   `json:"grade"`
	Board        string   `json:"board"`
	Subjects     []string `json:"subjects"`
	SubjectFocus string   `json:"subject_focus,omitempty"`
	Department   string   `json:"department,omitempty"`
}

// Filters narrow the candidate pool before any scoring happens.
type Filters struct {
	MinExperienceYears   int     `json:"min_experience_years"`
	MinRating            float64 `json:"min_rating"`
	SameDepartment       bool    `json:"same_department"`
	AvailabilityRequired bool    `json:"availability_required"`
}

// MatchResult is one ranked candidate. Breakdown and Reasons explain the
// total; MaxScore lets consumers normalize.
type MatchResult struct {
	TutorID        string         `json:"tutor_id"`
	TutorName      string         `json:"tutor_name"`
	TotalScore     int            `json:"total_score"`
	MaxScore       int            `json:"max_score"`
	Breakdown      map[string]int `json:"breakdown"`
	Reasons        []string       `json:"reasons"`
	AvgRating      float64        `json:"avg_rating"`
	CompletionRate float64        `json:"completion_rate"`
}
