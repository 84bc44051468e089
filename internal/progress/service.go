package progress

import (
	"context"
	"fmt"
	"log/slog"
)

// Repo is the persistence the Service needs.
type Repo interface {
	Updater

	// GetProgress returns nil, nil when the learner has no record for the skill.
	GetProgress(ctx context.Context, key Key) (*SkillProgress, error)
	ListProgress(ctx context.Context, userID string) ([]*SkillProgress, error)
	DeleteProgress(ctx context.Context, userID string) (int64, error)
}

// Service is the Progress Store access layer.
type Service struct {
	repo   Repo
	policy RetryPolicy
	logger *slog.Logger
}

// NewService creates a Service over repo.
func NewService(repo Repo, policy RetryPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, policy: policy, logger: logger}
}

// Get returns the learner's record for a skill, or nil if none exists.
func (s *Service) Get(ctx context.Context, key Key) (*SkillProgress, error) {
	p, err := s.repo.GetProgress(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// GetOrDefault is Get with absent records replaced by New(key).
func (s *Service) GetOrDefault(ctx context.Context, key Key) (*SkillProgress, error) {
	p, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return New(key), nil
	}
	return p, nil
}

// List returns every skill record for a learner.
func (s *Service) List(ctx context.Context, userID string) ([]*SkillProgress, error) {
	ps, err := s.repo.ListProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return ps, nil
}

// Update applies merge with the configured retry policy.
func (s *Service) Update(ctx context.Context, key Key, merge MergeFunc) (*SkillProgress, error) {
	return UpdateWithRetry(ctx, s.repo, s.policy, s.logger, key, merge)
}

// RecordAttempt merges a finished quiz into the skill's record.
func (s *Service) RecordAttempt(ctx context.Context, key Key, a Attempt) (*SkillProgress, error) {
	return s.Update(ctx, key, func(current *SkillProgress) (*SkillProgress, error) {
		return Apply(current, a), nil
	})
}

// Reset deletes all of a learner's progress records.
func (s *Service) Reset(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteProgress(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("reset progress: %w", err)
	}
	s.logger.Info("reset learner progress", "user", userID, "skills", n)
	return n, nil
}
