package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/satquiz/internal/concepts"
)

const tableConcepts = "concept_mastery"

var _ concepts.TallyRepo = (*Store)(nil)

// AddConceptTallies increments the learner's tallies in one transaction.
func (s *Store) AddConceptTallies(ctx context.Context, userID string, deltas map[string]concepts.Delta) error {
	names := make([]string, 0, len(deltas))
	for name := range deltas {
		names = append(names, name)
	}
	sort.Strings(names)
	now := formatTime(time.Now())

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			d := deltas[name]
			ins := s.builder().Insert(tableConcepts).
				Columns("user_id", "concept", "attempts", "correct", "updated_at").
				Values(userID, name, d.Attempts, d.Correct, now).
				OnConflict(
					entsql.ConflictColumns("user_id", "concept"),
					entsql.ResolveWith(func(u *entsql.UpdateSet) {
						u.Add("attempts", d.Attempts)
						u.Add("correct", d.Correct)
						u.SetExcluded("updated_at")
					}),
				)
			if _, err := s.exec(ctx, tx, ins); err != nil {
				return fmt.Errorf("upsert concept %s: %w", name, err)
			}
		}
		return nil
	})
}

// ListConceptTallies returns every tally for userID ordered by concept.
func (s *Store) ListConceptTallies(ctx context.Context, userID string) ([]concepts.Tally, error) {
	b := s.builder()
	sel := b.Select("user_id", "concept", "attempts", "correct", "updated_at").
		From(b.Table(tableConcepts)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("concept")

	rows, err := s.query(ctx, s.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query concept tallies: %w", err)
	}
	defer rows.Close()

	var out []concepts.Tally
	for rows.Next() {
		var (
			t         concepts.Tally
			updatedAt string
		)
		if err := rows.Scan(&t.UserID, &t.Concept, &t.Attempts, &t.Correct, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan concept tally: %w", err)
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
