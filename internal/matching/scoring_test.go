package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullMatchTutor() TutorProfile {
	return TutorProfile{
		ID:             "t-1",
		Name:           "Asha",
		Subjects:       []string{"Math", "Physics"},
		Grades:         []string{"9", "10"},
		Boards:         []string{"CBSE"},
		AvgTestScore:   100,
		AvgRating:      5,
		CompletionRate: 100,
	}
}

func TestScorePerfectMatch(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	req := StudentRequest{Grade: "10", Board: "cbse", Subjects: []string{"Math", "Physics"}}

	result := scorer.Score(fullMatchTutor(), req)

	assert.Equal(t, 100, result.TotalScore)
	assert.Equal(t, 100, result.MaxScore)
	assert.Equal(t, 25, result.Breakdown["grade"])
	assert.Equal(t, 20, result.Breakdown["board"])
	assert.Equal(t, 25, result.Breakdown["subject"])
	assert.Equal(t, 15, result.Breakdown["test_score"])
	assert.Equal(t, 10, result.Breakdown["rating"])
	assert.Equal(t, 5, result.Breakdown["completion_rate"])
	assert.Contains(t, result.Reasons, "Teaches grade 10")
	assert.Contains(t, result.Reasons, "Covers the CBSE board")
}

func TestScoreNoOverlap(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	tutor := TutorProfile{
		ID:       "t-2",
		Subjects: []string{"History"},
		Grades:   []string{"5"},
		Boards:   []string{"ICSE"},
	}
	req := StudentRequest{Grade: "10", Board: "cbse", Subjects: []string{"Math"}}

	result := scorer.Score(tutor, req)

	assert.Equal(t, 0, result.TotalScore)
	require.Len(t, result.Reasons, 1)
	assert.Equal(t, "Limited compatibility with the stated requirements", result.Reasons[0])
}

func TestScoreSubjectOverlapIsProportionalAndTruncated(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	tutor := fullMatchTutor()
	req := StudentRequest{Grade: "10", Board: "cbse", Subjects: []string{"Math", "Physics", "Chemistry"}}

	result := scorer.Score(tutor, req)

	// 25 * 2/3 truncates to 16
	assert.Equal(t, 16, result.Breakdown["subject"])
}

func TestScoreSubjectFocusIsAllOrNothing(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	tutor := fullMatchTutor()

	hit := scorer.Score(tutor, StudentRequest{Grade: "10", Board: "cbse", SubjectFocus: "physics"})
	assert.Equal(t, 25, hit.Breakdown["subject"])

	miss := scorer.Score(tutor, StudentRequest{Grade: "10", Board: "cbse", SubjectFocus: "Biology"})
	assert.Equal(t, 0, miss.Breakdown["subject"])
}

func TestScoreStatScalingTruncates(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	tutor := fullMatchTutor()
	tutor.AvgTestScore = 90
	tutor.AvgRating = 4.5
	tutor.CompletionRate = 50
	req := StudentRequest{Grade: "10", Board: "cbse"}

	result := scorer.Score(tutor, req)

	// 15*0.9=13.5, 10*0.9=9, 5*0.5=2.5, all truncated toward zero
	assert.Equal(t, 13, result.Breakdown["test_score"])
	assert.Equal(t, 9, result.Breakdown["rating"])
	assert.Equal(t, 2, result.Breakdown["completion_rate"])
}

func TestScoreClampsOutOfRangeStats(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	tutor := fullMatchTutor()
	tutor.AvgRating = 9 // dirty data above the 0-5 scale
	tutor.AvgTestScore = -10
	req := StudentRequest{Grade: "10", Board: "cbse"}

	result := scorer.Score(tutor, req)

	assert.Equal(t, 10, result.Breakdown["rating"])
	assert.Equal(t, 0, result.Breakdown["test_score"])
}

func TestScoreAlternateWeights(t *testing.T) {
	w := Weights{Grade: 50, Board: 30, Subject: 20}
	scorer := NewScorer(w)
	req := StudentRequest{Grade: "10", Board: "cbse", Subjects: []string{"Math"}}

	result := scorer.Score(fullMatchTutor(), req)

	assert.Equal(t, 100, result.TotalScore)
	assert.Equal(t, 100, result.MaxScore)
	assert.Equal(t, 50, result.Breakdown["grade"])
}

func TestContainsFoldIgnoresCaseAndSpaces(t *testing.T) {
	assert.True(t, containsFold([]string{" CBSE "}, "cbse"))
	assert.False(t, containsFold([]string{"CBSE"}, ""))
	assert.False(t, containsFold(nil, "cbse"))
}
