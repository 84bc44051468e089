package store

import (
	"context"
	"fmt"
)

// The DDL sticks to types both SQLite and PostgreSQL accept.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		skill_id TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		prompt TEXT NOT NULL DEFAULT '',
		options TEXT NOT NULL DEFAULT '[]',
		correct_answer TEXT NOT NULL,
		concepts TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_skill_difficulty ON questions(skill_id, difficulty)`,

	`CREATE TABLE IF NOT EXISTS skill_progress (
		user_id TEXT NOT NULL,
		skill_id TEXT NOT NULL,
		level INTEGER NOT NULL DEFAULT 1,
		asked_question_ids TEXT NOT NULL DEFAULT '[]',
		missed_question_ids TEXT NOT NULL DEFAULT '[]',
		rolling_results TEXT NOT NULL DEFAULT '[]',
		mastered BOOLEAN NOT NULL DEFAULT FALSE,
		attempt_history TEXT NOT NULL DEFAULT '[]',
		correct_total INTEGER NOT NULL DEFAULT 0,
		total_questions INTEGER NOT NULL DEFAULT 0,
		attempts INTEGER NOT NULL DEFAULT 0,
		accuracy INTEGER NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (user_id, skill_id)
	)`,

	`CREATE TABLE IF NOT EXISTS quiz_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		skill_ids TEXT NOT NULL,
		level INTEGER NOT NULL,
		prior_level INTEGER,
		question_ids TEXT NOT NULL,
		status TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		passed BOOLEAN NOT NULL DEFAULT FALSE,
		user_answers TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		completed_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_sessions_user ON quiz_sessions(user_id)`,

	`CREATE TABLE IF NOT EXISTS concept_mastery (
		user_id TEXT NOT NULL,
		concept TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		correct INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (user_id, concept)
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
