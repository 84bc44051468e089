package progress

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// MergeFunc computes the new record from the current one. current is never
// nil: absent records are passed as New(key). MergeFunc may run several
// times for one update and must not mutate current.
type MergeFunc func(current *SkillProgress) (*SkillProgress, error)

// Updater is the storage side of an update.
type Updater interface {
	// UpdateProgress reads, merges and writes conditionally on the version
	// it read, returning ErrConflict if another writer got there first.
	UpdateProgress(ctx context.Context, key Key, merge MergeFunc) (*SkillProgress, error)

	// UpdateProgressTx performs the same read-merge-write inside a transaction.
	UpdateProgressTx(ctx context.Context, key Key, merge MergeFunc) (*SkillProgress, error)
}

// RetryPolicy configures the transactional fallback.
type RetryPolicy struct {
	// MaxAttempts is the number of transactional attempts after the direct write fails.
	MaxAttempts int

	// Backoff is multiplied by the attempt number between attempts.
	Backoff time.Duration

	// Sleep waits between attempts. Nil means a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns three attempts with 500ms linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
}

// UpdateWithRetry tries a direct optimistic write first and falls back to
// transactional writes with linear backoff.
func UpdateWithRetry(ctx context.Context, u Updater, policy RetryPolicy, logger *slog.Logger, key Key, merge MergeFunc) (*SkillProgress, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	merge = guardLevel(merge)

	p, err := u.UpdateProgress(ctx, key, merge)
	if err == nil {
		return p, nil
	}
	if isContextErr(err) {
		return nil, err
	}
	logger.Warn("direct progress write failed, retrying in transaction",
		"user", key.UserID, "skill", key.SkillID, "error", err)

	attempts := max(policy.MaxAttempts, 1)
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		p, err := u.UpdateProgressTx(ctx, key, merge)
		if err == nil {
			return p, nil
		}
		lastErr = err
		if isContextErr(err) {
			return nil, err
		}

		logger.Warn("transactional progress write failed",
			"user", key.UserID, "skill", key.SkillID, "attempt", attempt, "error", err)

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, policy.Backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, &ErrRetriesExhausted{Key: key, Attempts: attempts, Err: lastErr}
}

// guardLevel keeps a stale merge from lowering the stored level.
func guardLevel(merge MergeFunc) MergeFunc {
	return func(current *SkillProgress) (*SkillProgress, error) {
		next, err := merge(current)
		if err != nil {
			return nil, err
		}
		next.Level = max(next.Level, current.Level)
		return next, nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
