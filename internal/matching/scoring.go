package matching

import (
	"fmt"
	"strings"
)

// Weights holds the points each category contributes to a compatibility
// score. The defaults sum to 100; tests can substitute alternate weightings.
type Weights struct {
	Grade          int
	Board          int
	Subject        int
	TestScore      int
	Rating         int
	CompletionRate int
}

// DefaultWeights returns the production weight table.
func DefaultWeights() Weights {
	return Weights{
		Grade:          25,
		Board:          20,
		Subject:        25,
		TestScore:      15,
		Rating:         10,
		CompletionRate: 5,
	}
}

// Max returns the highest total a candidate can score.
func (w Weights) Max() int {
	return w.Grade + w.Board + w.Subject + w.TestScore + w.Rating + w.CompletionRate
}

// Scorer computes compatibility scores between a tutor and a student request.
// Scoring is pure: identical inputs always produce identical results.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weight table.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score ranks one tutor against one request.
func (s *Scorer) Score(tutor TutorProfile, req StudentRequest) MatchResult {
	w := s.weights
	breakdown := make(map[string]int, 6)

	gradePts := 0
	if containsFold(tutor.Grades, req.Grade) {
		gradePts = w.Grade
	}
	breakdown["grade"] = gradePts

	boardPts := 0
	if containsFold(tutor.Boards, req.Board) {
		boardPts = w.Board
	}
	breakdown["board"] = boardPts

	subjectPts, shared := s.subjectScore(tutor, req)
	breakdown["subject"] = subjectPts

	testPts := truncScale(w.TestScore, clamp(tutor.AvgTestScore/100, 0, 1))
	breakdown["test_score"] = testPts

	ratingPts := truncScale(w.Rating, clamp(tutor.AvgRating/5, 0, 1))
	breakdown["rating"] = ratingPts

	completionPts := truncScale(w.CompletionRate, clamp(tutor.CompletionRate/100, 0, 1))
	breakdown["completion_rate"] = completionPts

	total := gradePts + boardPts + subjectPts + testPts + ratingPts + completionPts

	return MatchResult{
		TutorID:        tutor.ID,
		TutorName:      tutor.Name,
		TotalScore:     total,
		MaxScore:       w.Max(),
		Breakdown:      breakdown,
		Reasons:        s.reasons(req, breakdown, shared),
		AvgRating:      tutor.AvgRating,
		CompletionRate: tutor.CompletionRate,
	}
}

// subjectScore returns the subject points and the shared subjects used for
// reason generation. A named focus subject is all-or-nothing; otherwise the
// score is proportional to the overlap with the student's subjects.
func (s *Scorer) subjectScore(tutor TutorProfile, req StudentRequest) (int, []string) {
	if req.SubjectFocus != "" {
		if containsFold(tutor.Subjects, req.SubjectFocus) {
			return s.weights.Subject, []string{req.SubjectFocus}
		}
		return 0, nil
	}
	if len(req.Subjects) == 0 {
		return 0, nil
	}
	var shared []string
	for _, subj := range req.Subjects {
		if containsFold(tutor.Subjects, subj) {
			shared = append(shared, subj)
		}
	}
	pts := s.weights.Subject * len(shared) / len(req.Subjects)
	return pts, shared
}

func (s *Scorer) reasons(req StudentRequest, breakdown map[string]int, shared []string) []string {
	var reasons []string
	if breakdown["grade"] > 0 {
		reasons = append(reasons, fmt.Sprintf("Teaches grade %s", req.Grade))
	}
	if breakdown["board"] > 0 {
		reasons = append(reasons, fmt.Sprintf("Covers the %s board", strings.ToUpper(req.Board)))
	}
	if breakdown["subject"] > 0 && len(shared) > 0 {
		named := shared
		if len(named) > 2 {
			named = named[:2]
		}
		reasons = append(reasons, fmt.Sprintf("Teaches %s", strings.Join(named, " and ")))
	}
	if breakdown["rating"] > 7 {
		reasons = append(reasons, "Highly rated by students")
	}
	if breakdown["test_score"] > 12 {
		reasons = append(reasons, "Students score well in tests")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Limited compatibility with the stated requirements")
	}
	return reasons
}

// truncScale multiplies weight by a [0,1] factor and truncates toward zero.
func truncScale(weight int, factor float64) int {
	return int(float64(weight) * factor)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// containsFold reports membership ignoring case and surrounding spaces.
func containsFold(set []string, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return false
	}
	for _, item := range set {
		if strings.EqualFold(strings.TrimSpace(item), want) {
			return true
		}
	}
	return false
}
