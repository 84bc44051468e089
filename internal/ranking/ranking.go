// Package ranking maintains the denormalized per-user statistics and
// leaderboard used by dashboards.
package ranking

import (
	"context"
	"time"
)

// Stat is what one finished quiz adds to a learner's statistics.
type Stat struct {
	UserID    string
	QuizID    string
	Correct   int
	Questions int
	Score     int
	At        time.Time
}

// Entry is one leaderboard row.
type Entry struct {
	UserID       string
	CorrectTotal int64
	Rank         int
}

// UserStats is the cached statistics hash for one learner.
type UserStats struct {
	Quizzes   int64
	Correct   int64
	Questions int64
	LastScore int64
}

// Cache is the statistics collaborator called after finalize.
type Cache interface {
	RecordQuiz(ctx context.Context, s Stat) error
	Top(ctx context.Context, n int) ([]Entry, error)
	Stats(ctx context.Context, userID string) (*UserStats, error)
}

// Nop discards updates. It is used when no cache is configured.
type Nop struct{}

func (Nop) RecordQuiz(context.Context, Stat) error            { return nil }
func (Nop) Top(context.Context, int) ([]Entry, error)         { return nil, nil }
func (Nop) Stats(context.Context, string) (*UserStats, error) { return &UserStats{}, nil }
