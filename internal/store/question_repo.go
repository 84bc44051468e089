package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/satquiz/internal/questions"
)

const tableQuestions = "questions"

var questionColumns = []string{"id", "skill_id", "difficulty", "prompt", "options", "correct_answer", "concepts"}

// UpsertQuestion inserts q or replaces the stored copy with the same id.
func (s *Store) UpsertQuestion(ctx context.Context, q questions.Question) error {
	options, err := encodeJSON(nonNil(q.Options))
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	concepts, err := encodeJSON(nonNil(q.Concepts))
	if err != nil {
		return fmt.Errorf("encode concepts: %w", err)
	}

	ins := s.builder().Insert(tableQuestions).
		Columns(questionColumns...).
		Values(q.ID, q.SkillID, string(q.Difficulty), q.Prompt, options, q.CorrectAnswer, concepts).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues())

	if _, err := s.exec(ctx, s.db, ins); err != nil {
		return fmt.Errorf("upsert question %s: %w", q.ID, err)
	}
	return nil
}

// ListBySkill returns the skill's questions at difficulty, or at any
// difficulty when difficulty is DifficultyAny.
func (s *Store) ListBySkill(ctx context.Context, skillID string, difficulty questions.Difficulty) ([]questions.Question, error) {
	pred := entsql.EQ("skill_id", skillID)
	if difficulty != questions.DifficultyAny {
		pred = entsql.And(pred, entsql.EQ("difficulty", string(difficulty)))
	}

	b := s.builder()
	sel := b.Select(questionColumns...).
		From(b.Table(tableQuestions)).
		Where(pred).
		OrderBy("id")
	return s.listQuestions(ctx, sel)
}

// GetQuestions returns the questions with the given ids. Unknown ids are
// skipped; the result follows ids order.
func (s *Store) GetQuestions(ctx context.Context, ids []string) ([]questions.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	b := s.builder()
	sel := b.Select(questionColumns...).
		From(b.Table(tableQuestions)).
		Where(entsql.In("id", args...))
	found, err := s.listQuestions(ctx, sel)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]questions.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]questions.Question, 0, len(found))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *Store) listQuestions(ctx context.Context, sel *entsql.Selector) ([]questions.Question, error) {
	rows, err := s.query(ctx, s.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []questions.Question
	for rows.Next() {
		var (
			q                 questions.Question
			difficulty        string
			options, concepts string
		)
		if err := rows.Scan(&q.ID, &q.SkillID, &difficulty, &q.Prompt, &options, &q.CorrectAnswer, &concepts); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Difficulty = questions.Difficulty(difficulty)
		if err := decodeJSON(options, &q.Options); err != nil {
			return nil, err
		}
		if err := decodeJSON(concepts, &q.Concepts); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
