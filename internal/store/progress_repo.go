package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/satquiz/internal/progress"
	"github.com/abhisek/satquiz/internal/questions"
)

const tableProgress = "skill_progress"

var progressColumns = []string{
	"user_id", "skill_id", "level",
	"asked_question_ids", "missed_question_ids", "rolling_results",
	"mastered", "attempt_history",
	"correct_total", "total_questions", "attempts", "accuracy",
	"version", "updated_at",
}

var _ progress.Repo = (*Store)(nil)

// GetProgress returns the stored record, or nil if there is none.
func (s *Store) GetProgress(ctx context.Context, key progress.Key) (*progress.SkillProgress, error) {
	return s.getProgress(ctx, s.db, key, false)
}

// ListProgress returns every record for userID ordered by skill.
func (s *Store) ListProgress(ctx context.Context, userID string) ([]*progress.SkillProgress, error) {
	b := s.builder()
	sel := b.Select(progressColumns...).
		From(b.Table(tableProgress)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("skill_id")

	rows, err := s.query(ctx, s.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var out []*progress.SkillProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProgress removes every record for userID.
func (s *Store) DeleteProgress(ctx context.Context, userID string) (int64, error) {
	res, err := s.exec(ctx, s.db, s.builder().Delete(tableProgress).Where(entsql.EQ("user_id", userID)))
	if err != nil {
		return 0, fmt.Errorf("delete progress: %w", err)
	}
	return res.RowsAffected()
}

// UpdateProgress is the optimistic path: the write only lands if the
// version read is still current.
func (s *Store) UpdateProgress(ctx context.Context, key progress.Key, merge progress.MergeFunc) (*progress.SkillProgress, error) {
	return s.readMergeWrite(ctx, s.db, key, merge, false)
}

// UpdateProgressTx runs the same read-merge-write inside a transaction,
// locking the row on PostgreSQL.
func (s *Store) UpdateProgressTx(ctx context.Context, key progress.Key, merge progress.MergeFunc) (*progress.SkillProgress, error) {
	var out *progress.SkillProgress
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		p, err := s.readMergeWrite(ctx, tx, key, merge, true)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) readMergeWrite(ctx context.Context, q querier, key progress.Key, merge progress.MergeFunc, lock bool) (*progress.SkillProgress, error) {
	current, err := s.getProgress(ctx, q, key, lock)
	if err != nil {
		return nil, err
	}

	base := current
	if base == nil {
		base = progress.New(key)
	}

	next, err := merge(base)
	if err != nil {
		return nil, fmt.Errorf("merge progress: %w", err)
	}
	next.UserID, next.SkillID = key.UserID, key.SkillID
	next.Version = base.Version + 1
	next.UpdatedAt = time.Now().UTC()

	if current == nil {
		err = s.insertProgress(ctx, q, next)
	} else {
		err = s.updateProgress(ctx, q, next, current.Version)
	}
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) getProgress(ctx context.Context, q querier, key progress.Key, lock bool) (*progress.SkillProgress, error) {
	b := s.builder()
	sel := b.Select(progressColumns...).
		From(b.Table(tableProgress)).
		Where(entsql.And(
			entsql.EQ("user_id", key.UserID),
			entsql.EQ("skill_id", key.SkillID),
		))
	if lock && s.dialect == dialect.Postgres {
		sel.ForUpdate()
	}

	p, err := scanProgress(s.queryRow(ctx, q, sel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	return p, nil
}

func (s *Store) insertProgress(ctx context.Context, q querier, p *progress.SkillProgress) error {
	vals, err := progressValues(p)
	if err != nil {
		return err
	}
	ins := s.builder().Insert(tableProgress).
		Columns(progressColumns...).
		Values(vals...).
		OnConflict(entsql.ConflictColumns("user_id", "skill_id"), entsql.DoNothing())

	res, err := s.exec(ctx, q, ins)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return conflictIfUntouched(res)
}

func (s *Store) updateProgress(ctx context.Context, q querier, p *progress.SkillProgress, readVersion int64) error {
	vals, err := progressValues(p)
	if err != nil {
		return err
	}
	upd := s.builder().Update(tableProgress)
	// Skip the key columns; they identify the row.
	for i := 2; i < len(progressColumns); i++ {
		upd.Set(progressColumns[i], vals[i])
	}
	upd.Where(entsql.And(
		entsql.EQ("user_id", p.UserID),
		entsql.EQ("skill_id", p.SkillID),
		entsql.EQ("version", readVersion),
	))

	res, err := s.exec(ctx, q, upd)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return conflictIfUntouched(res)
}

func conflictIfUntouched(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return progress.ErrConflict
	}
	return nil
}

func progressValues(p *progress.SkillProgress) ([]any, error) {
	asked, err := encodeJSON(nonNil(p.AskedQuestionIDs))
	if err != nil {
		return nil, fmt.Errorf("encode asked ids: %w", err)
	}
	missed, err := encodeJSON(nonNil(p.MissedQuestionIDs))
	if err != nil {
		return nil, fmt.Errorf("encode missed ids: %w", err)
	}
	rolling, err := encodeJSON(nonNil(p.RollingResults))
	if err != nil {
		return nil, fmt.Errorf("encode rolling results: %w", err)
	}
	history, err := encodeJSON(nonNil(p.AttemptHistory))
	if err != nil {
		return nil, fmt.Errorf("encode attempt history: %w", err)
	}
	return []any{
		p.UserID, p.SkillID, int(p.Level),
		asked, missed, rolling,
		p.Mastered, history,
		p.Stats.CorrectTotal, p.Stats.TotalQuestions, p.Stats.Attempts, p.Stats.Accuracy,
		p.Version, formatTime(p.UpdatedAt),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (*progress.SkillProgress, error) {
	var (
		asked, missed, rolling, history string
		updatedAt                       string
		level                           int
	)
	out := &progress.SkillProgress{}
	err := row.Scan(
		&out.UserID, &out.SkillID, &level,
		&asked, &missed, &rolling,
		&out.Mastered, &history,
		&out.Stats.CorrectTotal, &out.Stats.TotalQuestions, &out.Stats.Attempts, &out.Stats.Accuracy,
		&out.Version, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	out.Level = questions.Level(level)

	if err := decodeJSON(asked, &out.AskedQuestionIDs); err != nil {
		return nil, err
	}
	if err := decodeJSON(missed, &out.MissedQuestionIDs); err != nil {
		return nil, err
	}
	if err := decodeJSON(rolling, &out.RollingResults); err != nil {
		return nil, err
	}
	if err := decodeJSON(history, &out.AttemptHistory); err != nil {
		return nil, err
	}
	if out.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return out, nil
}
