// Package concepts keeps per-learner tallies for the concept tags attached
// to questions.
package concepts

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// Outcome is one graded answer attributed to a concept.
type Outcome struct {
	Concept string `json:"concept"`
	Correct bool   `json:"correct"`
}

// Delta is the change applied to one concept tally.
type Delta struct {
	Attempts int
	Correct  int
}

// Tally is the stored running count for a learner and concept.
type Tally struct {
	UserID    string
	Concept   string
	Attempts  int
	Correct   int
	UpdatedAt time.Time
}

// Accuracy returns the rounded percentage correct.
func (t Tally) Accuracy() int {
	if t.Attempts == 0 {
		return 0
	}
	return int(math.Round(100 * float64(t.Correct) / float64(t.Attempts)))
}

// Tracker accepts concept updates after a quiz is finalized.
type Tracker interface {
	Record(ctx context.Context, userID string, outcomes []Outcome) error
}

// TallyRepo persists concept tallies.
type TallyRepo interface {
	AddConceptTallies(ctx context.Context, userID string, deltas map[string]Delta) error
	ListConceptTallies(ctx context.Context, userID string) ([]Tally, error)
}

// Aggregate folds outcomes into one Delta per concept.
func Aggregate(outcomes []Outcome) map[string]Delta {
	deltas := make(map[string]Delta)
	for _, o := range outcomes {
		if o.Concept == "" {
			continue
		}
		d := deltas[o.Concept]
		d.Attempts++
		if o.Correct {
			d.Correct++
		}
		deltas[o.Concept] = d
	}
	return deltas
}

// SQLTracker writes tallies directly through a TallyRepo.
type SQLTracker struct {
	repo TallyRepo
}

// NewSQLTracker creates a tracker over repo.
func NewSQLTracker(repo TallyRepo) *SQLTracker {
	return &SQLTracker{repo: repo}
}

// Record adds outcomes to the learner's tallies.
func (t *SQLTracker) Record(ctx context.Context, userID string, outcomes []Outcome) error {
	deltas := Aggregate(outcomes)
	if len(deltas) == 0 {
		return nil
	}
	if err := t.repo.AddConceptTallies(ctx, userID, deltas); err != nil {
		return fmt.Errorf("add concept tallies: %w", err)
	}
	return nil
}

// List returns the learner's tallies, weakest concept first.
func (t *SQLTracker) List(ctx context.Context, userID string) ([]Tally, error) {
	tallies, err := t.repo.ListConceptTallies(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list concept tallies: %w", err)
	}
	sort.SliceStable(tallies, func(i, j int) bool {
		ai, aj := tallies[i].Accuracy(), tallies[j].Accuracy()
		if ai != aj {
			return ai < aj
		}
		return tallies[i].Concept < tallies[j].Concept
	})
	return tallies, nil
}
