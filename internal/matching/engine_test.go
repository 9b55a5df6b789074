package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDirectory struct {
	tutors     []TutorProfile
	department string
}

func (d *stubDirectory) ListActiveTutors(_ context.Context, department string) ([]TutorProfile, error) {
	d.department = department
	return d.tutors, nil
}

type stubAvailability map[string]bool

func (a stubAvailability) HasAvailability(_ context.Context, tutorID string) (bool, error) {
	return a[tutorID], nil
}

func poolTutor(id string, rating, completion float64) TutorProfile {
	return TutorProfile{
		ID:             id,
		Subjects:       []string{"Math"},
		Grades:         []string{"10"},
		Boards:         []string{"CBSE"},
		AvgRating:      rating,
		CompletionRate: completion,
	}
}

func TestFindBestMatchesRequiresGradeAndBoard(t *testing.T) {
	engine := NewEngine(&stubDirectory{}, nil, nil)

	_, err := engine.FindBestMatches(context.Background(), StudentRequest{Board: "cbse"}, Filters{}, 5)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = engine.FindBestMatches(context.Background(), StudentRequest{Grade: "10"}, Filters{}, 5)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFindBestMatchesEmptyPoolIsNotAnError(t *testing.T) {
	engine := NewEngine(&stubDirectory{}, nil, nil)

	results, err := engine.FindBestMatches(context.Background(), StudentRequest{Grade: "10", Board: "cbse"}, Filters{}, 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindBestMatchesAppliesFilters(t *testing.T) {
	junior := poolTutor("t-junior", 4.8, 90)
	junior.ExperienceYears = 1
	lowRated := poolTutor("t-low", 2.0, 90)
	lowRated.ExperienceYears = 5
	keeper := poolTutor("t-keep", 4.5, 90)
	keeper.ExperienceYears = 5

	dir := &stubDirectory{tutors: []TutorProfile{junior, lowRated, keeper}}
	engine := NewEngine(dir, nil, nil)

	filters := Filters{MinExperienceYears: 3, MinRating: 4.0}
	results, err := engine.FindBestMatches(context.Background(), StudentRequest{Grade: "10", Board: "cbse"}, filters, 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t-keep", results[0].TutorID)
}

func TestFindBestMatchesAvailabilityFilter(t *testing.T) {
	free := poolTutor("t-free", 4.0, 90)
	busy := poolTutor("t-busy", 4.0, 90)

	dir := &stubDirectory{tutors: []TutorProfile{free, busy}}
	engine := NewEngine(dir, stubAvailability{"t-free": true}, nil)

	results, err := engine.FindBestMatches(context.Background(),
		StudentRequest{Grade: "10", Board: "cbse"}, Filters{AvailabilityRequired: true}, 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t-free", results[0].TutorID)
}

func TestFindBestMatchesAvailabilityFallsBackToProfileFlag(t *testing.T) {
	flagged := poolTutor("t-flagged", 4.0, 90)
	flagged.HasAvailability = true
	unflagged := poolTutor("t-unflagged", 4.0, 90)

	dir := &stubDirectory{tutors: []TutorProfile{flagged, unflagged}}
	engine := NewEngine(dir, nil, nil)

	results, err := engine.FindBestMatches(context.Background(),
		StudentRequest{Grade: "10", Board: "cbse"}, Filters{AvailabilityRequired: true}, 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t-flagged", results[0].TutorID)
}

func TestFindBestMatchesScopesDepartment(t *testing.T) {
	dir := &stubDirectory{}
	engine := NewEngine(dir, nil, nil)

	req := StudentRequest{Grade: "10", Board: "cbse", Department: "science"}
	_, err := engine.FindBestMatches(context.Background(), req, Filters{SameDepartment: true}, 5)
	require.NoError(t, err)
	assert.Equal(t, "science", dir.department)

	_, err = engine.FindBestMatches(context.Background(), req, Filters{}, 5)
	require.NoError(t, err)
	assert.Equal(t, "", dir.department)
}

func TestFindBestMatchesDeterministicOrder(t *testing.T) {
	// All three tie on total score; rating, completion rate and then id
	// break the tie.
	a := poolTutor("t-a", 4.0, 80)
	b := poolTutor("t-b", 4.0, 80)
	c := poolTutor("t-c", 4.0, 90)

	dir := &stubDirectory{tutors: []TutorProfile{b, c, a}}
	engine := NewEngine(dir, nil, nil)
	req := StudentRequest{Grade: "10", Board: "cbse"}

	first, err := engine.FindBestMatches(context.Background(), req, Filters{}, 5)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := engine.FindBestMatches(context.Background(), req, Filters{}, 5)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	require.Len(t, first, 3)
	assert.Equal(t, "t-c", first[0].TutorID)
	assert.Equal(t, "t-a", first[1].TutorID)
	assert.Equal(t, "t-b", first[2].TutorID)
}

func TestFindBestMatchesHonorsLimit(t *testing.T) {
	dir := &stubDirectory{tutors: []TutorProfile{
		poolTutor("t-1", 4.0, 80),
		poolTutor("t-2", 4.5, 80),
		poolTutor("t-3", 3.5, 80),
	}}
	engine := NewEngine(dir, nil, nil)

	results, err := engine.FindBestMatches(context.Background(),
		StudentRequest{Grade: "10", Board: "cbse"}, Filters{}, 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "t-2", results[0].TutorID)
}
