package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/satquiz/internal/questions"
	"github.com/abhisek/satquiz/internal/quiz"
)

const tableSessions = "quiz_sessions"

var sessionColumns = []string{
	"id", "user_id", "skill_ids", "level", "prior_level", "question_ids",
	"status", "score", "passed", "user_answers", "created_at", "completed_at",
}

var _ quiz.SessionRepo = (*Store)(nil)

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, sess *quiz.Session) error {
	skillIDs, err := encodeJSON(nonNil(sess.SkillIDs))
	if err != nil {
		return fmt.Errorf("encode skill ids: %w", err)
	}
	questionIDs, err := encodeJSON(nonNil(sess.QuestionIDs))
	if err != nil {
		return fmt.Errorf("encode question ids: %w", err)
	}
	answers, err := encodeAnswers(sess.UserAnswers)
	if err != nil {
		return err
	}

	var prior sql.NullInt64
	if sess.PriorLevel != nil {
		prior = sql.NullInt64{Int64: int64(*sess.PriorLevel), Valid: true}
	}
	var completedAt sql.NullString
	if sess.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*sess.CompletedAt), Valid: true}
	}

	ins := s.builder().Insert(tableSessions).
		Columns(sessionColumns...).
		Values(
			sess.ID, sess.UserID, skillIDs, int(sess.Level), prior, questionIDs,
			string(sess.Status), sess.Score, sess.Passed, answers,
			formatTime(sess.CreatedAt), completedAt,
		)
	if _, err := s.exec(ctx, s.db, ins); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns the session or nil if it does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (*quiz.Session, error) {
	return s.getSession(ctx, s.db, id)
}

// SaveAnswer records an answer on a created session.
func (s *Store) SaveAnswer(ctx context.Context, id, questionID string, a quiz.Answer) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		sess, err := s.getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if sess == nil {
			return quiz.ErrSessionNotFound
		}
		if sess.Status != quiz.StatusCreated {
			return quiz.ErrSessionCompleted
		}

		if sess.UserAnswers == nil {
			sess.UserAnswers = make(map[string]quiz.Answer)
		}
		sess.UserAnswers[questionID] = a
		answers, err := encodeAnswers(sess.UserAnswers)
		if err != nil {
			return err
		}

		upd := s.builder().Update(tableSessions).
			Set("user_answers", answers).
			Where(entsql.And(
				entsql.EQ("id", id),
				entsql.EQ("status", string(quiz.StatusCreated)),
			))
		res, err := s.exec(ctx, tx, upd)
		if err != nil {
			return fmt.Errorf("save answer: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return quiz.ErrSessionCompleted
		}
		return nil
	})
}

// CompleteSession is a compare-and-swap on status created -> completed.
func (s *Store) CompleteSession(ctx context.Context, id string, c quiz.Completion) error {
	answers, err := encodeAnswers(c.UserAnswers)
	if err != nil {
		return err
	}

	upd := s.builder().Update(tableSessions).
		Set("status", string(quiz.StatusCompleted)).
		Set("score", c.Score).
		Set("passed", c.Passed).
		Set("user_answers", answers).
		Set("completed_at", formatTime(c.CompletedAt)).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(quiz.StatusCreated)),
		))

	res, err := s.exec(ctx, s.db, upd)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	sess, err := s.getSession(ctx, s.db, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return quiz.ErrSessionNotFound
	}
	return quiz.ErrSessionCompleted
}

func (s *Store) getSession(ctx context.Context, q querier, id string) (*quiz.Session, error) {
	b := s.builder()
	sel := b.Select(sessionColumns...).
		From(b.Table(tableSessions)).
		Where(entsql.EQ("id", id))

	var (
		sess                           quiz.Session
		skillIDs, questionIDs, answers string
		status, createdAt              string
		level                          int
		prior                          sql.NullInt64
		completedAt                    sql.NullString
	)
	err := s.queryRow(ctx, q, sel).Scan(
		&sess.ID, &sess.UserID, &skillIDs, &level, &prior, &questionIDs,
		&status, &sess.Score, &sess.Passed, &answers, &createdAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	sess.Level = questions.Level(level)
	sess.Status = quiz.Status(status)
	if prior.Valid {
		pl := questions.Level(prior.Int64)
		sess.PriorLevel = &pl
	}
	if err := decodeJSON(skillIDs, &sess.SkillIDs); err != nil {
		return nil, err
	}
	if err := decodeJSON(questionIDs, &sess.QuestionIDs); err != nil {
		return nil, err
	}
	if err := decodeJSON(answers, &sess.UserAnswers); err != nil {
		return nil, err
	}
	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		sess.CompletedAt = &t
	}
	return &sess, nil
}

func encodeAnswers(answers map[string]quiz.Answer) (string, error) {
	if answers == nil {
		answers = map[string]quiz.Answer{}
	}
	s, err := encodeJSON(answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return s, nil
}
