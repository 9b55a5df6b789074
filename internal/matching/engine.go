package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// DefaultLimit caps how many matches a single call returns when the caller
// does not ask for a specific count.
const DefaultLimit = 10

// ErrInvalidRequest is returned when a request is missing required fields.
var ErrInvalidRequest = errors.New("matching: grade and board are required")

// TutorDirectory reads the candidate pool. Department may be empty for the
// full pool.
type TutorDirectory interface {
	ListActiveTutors(ctx context.Context, department string) ([]TutorProfile, error)
}

// AvailabilityChecker answers whether a tutor has any declared availability
// overlapping the requested window. Availability data itself lives with an
// external collaborator.
type AvailabilityChecker interface {
	HasAvailability(ctx context.Context, tutorID string) (bool, error)
}

// Engine shortlists tutors for a student request. It is read-only: neither
// tutors nor requests are mutated.
type Engine struct {
	directory    TutorDirectory
	availability AvailabilityChecker
	scorer       *Scorer
}

// NewEngine builds an engine over a directory and an availability collaborator.
func NewEngine(directory TutorDirectory, availability AvailabilityChecker, scorer *Scorer) *Engine {
	if scorer == nil {
		scorer = NewScorer(DefaultWeights())
	}
	return &Engine{directory: directory, availability: availability, scorer: scorer}
}

// FindBestMatches filters the pool, scores the survivors and returns them
// ranked best-first. An empty pool after filtering yields an empty slice, not
// an error.
func (e *Engine) FindBestMatches(ctx context.Context, req StudentRequest, filters Filters, limit int) ([]MatchResult, error) {
	if req.Grade == "" || req.Board == "" {
		return nil, ErrInvalidRequest
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	department := ""
	if filters.SameDepartment {
		department = req.Department
	}
	pool, err := e.directory.ListActiveTutors(ctx, department)
	if err != nil {
		return nil, fmt.Errorf("list tutors: %w", err)
	}

	results := make([]MatchResult, 0, len(pool))
	for _, tutor := range pool {
		ok, err := e.passesFilters(ctx, tutor, req, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		results = append(results, e.scorer.Score(tutor, req))
	}

	// Ties break on rating, then completion rate, then tutor ID so repeated
	// calls with the same inputs always produce the same order.
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.AvgRating != b.AvgRating {
			return a.AvgRating > b.AvgRating
		}
		if a.CompletionRate != b.CompletionRate {
			return a.CompletionRate > b.CompletionRate
		}
		return a.TutorID < b.TutorID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (e *Engine) passesFilters(ctx context.Context, tutor TutorProfile, req StudentRequest, filters Filters) (bool, error) {
	if tutor.ExperienceYears < filters.MinExperienceYears {
		return false, nil
	}
	if tutor.AvgRating < filters.MinRating {
		return false, nil
	}
	if filters.SameDepartment && req.Department != "" && tutor.Department != req.Department {
		return false, nil
	}
	if filters.AvailabilityRequired {
		if e.availability == nil {
			return tutor.HasAvailability, nil
		}
		available, err := e.availability.HasAvailability(ctx, tutor.ID)
		if err != nil {
			return false, fmt.Errorf("check availability for %s: %w", tutor.ID, err)
		}
		if !available {
			return false, nil
		}
	}
	return true, nil
}
