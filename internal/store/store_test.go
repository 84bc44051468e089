package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abhisek/satquiz/internal/concepts"
	"github.com/abhisek/satquiz/internal/progress"
	"github.com/abhisek/satquiz/internal/questions"
	"github.com/abhisek/satquiz/internal/quiz"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is covered by the file-based test.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "satquiz.db")
	if err := EnsureDir(path); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	s, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestDefaultDBPathHonoursEnv(t *testing.T) {
	want := filepath.Join(t.TempDir(), "db", "custom.db")
	t.Setenv("SATQUIZ_DB", want)
	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if got != want {
		t.Errorf("DefaultDBPath = %q, want %q", got, want)
	}
}

func TestQuestionsUpsertAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	qs := []questions.Question{
		{ID: "q2", SkillID: "linear", Difficulty: questions.DifficultyEasy, CorrectAnswer: "A", Options: []string{"A", "B"}},
		{ID: "q1", SkillID: "linear", Difficulty: questions.DifficultyMedium, CorrectAnswer: "B", Concepts: []string{"slope"}},
		{ID: "q3", SkillID: "ratios", Difficulty: questions.DifficultyEasy, CorrectAnswer: "C"},
	}
	for _, q := range qs {
		if err := s.UpsertQuestion(ctx, q); err != nil {
			t.Fatalf("upsert %s: %v", q.ID, err)
		}
	}

	easy, err := s.ListBySkill(ctx, "linear", questions.DifficultyEasy)
	if err != nil {
		t.Fatalf("list easy: %v", err)
	}
	if len(easy) != 1 || easy[0].ID != "q2" {
		t.Fatalf("easy linear = %+v, want [q2]", easy)
	}
	if len(easy[0].Options) != 2 {
		t.Errorf("options = %v, want 2 entries", easy[0].Options)
	}

	all, err := s.ListBySkill(ctx, "linear", questions.DifficultyAny)
	if err != nil {
		t.Fatalf("list any: %v", err)
	}
	if got := questions.IDs(all); len(got) != 2 || got[0] != "q1" || got[1] != "q2" {
		t.Fatalf("any linear = %v, want [q1 q2]", got)
	}

	// Upsert replaces the stored copy.
	qs[0].CorrectAnswer = "B"
	if err := s.UpsertQuestion(ctx, qs[0]); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := s.GetQuestions(ctx, []string{"q3", "missing", "q2"})
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "q3" || got[1].ID != "q2" {
		t.Fatalf("GetQuestions = %v, want [q3 q2]", questions.IDs(got))
	}
	if got[1].CorrectAnswer != "B" {
		t.Errorf("correct answer = %q, want B after upsert", got[1].CorrectAnswer)
	}
}

func TestProgressMissingIsNil(t *testing.T) {
	s := openTestStore(t)
	p, err := s.GetProgress(context.Background(), progress.Key{UserID: "u1", SkillID: "linear"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil, got %+v", p)
	}
}

func TestProgressRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := progress.Key{UserID: "u1", SkillID: "linear"}
	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	written, err := s.UpdateProgress(ctx, key, func(cur *progress.SkillProgress) (*progress.SkillProgress, error) {
		return progress.Apply(cur, progress.Attempt{
			QuizID: "quiz-1",
			At:     at,
			Level:  questions.LevelEasy,
			Passed: true,
			Outcomes: []progress.Outcome{
				{QuestionID: "q1", Correct: true},
				{QuestionID: "q2", Correct: false},
			},
		}), nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if written.Version != 1 {
		t.Errorf("version = %d, want 1", written.Version)
	}

	got, err := s.GetProgress(ctx, key)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Level != questions.LevelMedium {
		t.Errorf("level = %d, want 2", got.Level)
	}
	if len(got.AskedQuestionIDs) != 2 || len(got.MissedQuestionIDs) != 1 || got.MissedQuestionIDs[0] != "q2" {
		t.Errorf("asked=%v missed=%v", got.AskedQuestionIDs, got.MissedQuestionIDs)
	}
	if len(got.RollingResults) != 2 {
		t.Errorf("rolling = %v", got.RollingResults)
	}
	if len(got.AttemptHistory) != 1 || !got.AttemptHistory[0].Timestamp.Equal(at) {
		t.Errorf("history = %+v", got.AttemptHistory)
	}
	if got.Stats.CorrectTotal != 1 || got.Stats.TotalQuestions != 2 || got.Stats.Accuracy != 50 {
		t.Errorf("stats = %+v", got.Stats)
	}

	list, err := s.ListProgress(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
}

func TestProgressOptimisticConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := progress.Key{UserID: "u1", SkillID: "linear"}
	bump := func(cur *progress.SkillProgress) (*progress.SkillProgress, error) {
		next := cur.Clone()
		next.Stats.Attempts++
		return next, nil
	}

	if _, err := s.UpdateProgress(ctx, key, bump); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A concurrent writer lands between this merge's read and write.
	_, err := s.UpdateProgress(ctx, key, func(cur *progress.SkillProgress) (*progress.SkillProgress, error) {
		if _, err := s.UpdateProgress(ctx, key, bump); err != nil {
			t.Fatalf("interleaved write: %v", err)
		}
		return bump(cur)
	})
	if !errors.Is(err, progress.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	got, _ := s.GetProgress(ctx, key)
	if got.Stats.Attempts != 2 || got.Version != 2 {
		t.Errorf("attempts=%d version=%d, want 2/2", got.Stats.Attempts, got.Version)
	}
}

func TestProgressInsertRace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := progress.Key{UserID: "u1", SkillID: "linear"}
	create := func(cur *progress.SkillProgress) (*progress.SkillProgress, error) {
		return cur.Clone(), nil
	}

	_, err := s.UpdateProgress(ctx, key, func(cur *progress.SkillProgress) (*progress.SkillProgress, error) {
		if _, err := s.UpdateProgress(ctx, key, create); err != nil {
			t.Fatalf("interleaved insert: %v", err)
		}
		return cur.Clone(), nil
	})
	if !errors.Is(err, progress.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestUpdateWithRetryThroughStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := progress.Key{UserID: "u1", SkillID: "linear"}
	svc := progress.NewService(s, progress.RetryPolicy{MaxAttempts: 3, Sleep: func(context.Context, time.Duration) error { return nil }}, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordAttempt(ctx, key, progress.Attempt{
			QuizID:   "quiz",
			At:       time.Now(),
			Level:    questions.LevelEasy,
			Outcomes: []progress.Outcome{{QuestionID: "q1", Correct: true}},
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := svc.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stats.Attempts != 3 || got.Version != 3 {
		t.Errorf("attempts=%d version=%d, want 3/3", got.Stats.Attempts, got.Version)
	}

	n, err := svc.Reset(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("reset = %d, %v", n, err)
	}
	if got, _ := svc.Get(ctx, key); got != nil {
		t.Error("expected progress to be gone after reset")
	}
}

func newTestSession(id string) *quiz.Session {
	prior := questions.LevelMedium
	return &quiz.Session{
		ID:          id,
		UserID:      "u1",
		SkillIDs:    []string{"linear"},
		Level:       questions.LevelEasy,
		PriorLevel:  &prior,
		QuestionIDs: []string{"q1", "q2"},
		Status:      quiz.StatusCreated,
		CreatedAt:   time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateSession(ctx, newTestSession("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.PriorLevel == nil || *got.PriorLevel != questions.LevelMedium {
		t.Errorf("prior level = %v", got.PriorLevel)
	}
	if len(got.QuestionIDs) != 2 || got.Status != quiz.StatusCreated || got.CompletedAt != nil {
		t.Errorf("session = %+v", got)
	}

	if err := s.SaveAnswer(ctx, "s1", "q1", quiz.Answer{SelectedOption: "A", IsCorrect: true, TimeSpent: 3 * time.Second}); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	got, _ = s.GetSession(ctx, "s1")
	if a := got.UserAnswers["q1"]; a.SelectedOption != "A" || a.TimeSpent != 3*time.Second {
		t.Errorf("answer = %+v", a)
	}

	done := time.Date(2026, 2, 1, 9, 5, 0, 0, time.UTC)
	completion := quiz.Completion{
		Score:       50,
		UserAnswers: map[string]quiz.Answer{"q1": {SelectedOption: "A", IsCorrect: true}},
		CompletedAt: done,
	}
	if err := s.CompleteSession(ctx, "s1", completion); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.CompleteSession(ctx, "s1", completion); !errors.Is(err, quiz.ErrSessionCompleted) {
		t.Fatalf("second complete err = %v, want ErrSessionCompleted", err)
	}
	if err := s.SaveAnswer(ctx, "s1", "q2", quiz.Answer{SelectedOption: "B"}); !errors.Is(err, quiz.ErrSessionCompleted) {
		t.Fatalf("answer after complete err = %v", err)
	}

	got, _ = s.GetSession(ctx, "s1")
	if got.Status != quiz.StatusCompleted || got.Score != 50 || got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("completed session = %+v", got)
	}
}

func TestSessionMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if got, err := s.GetSession(ctx, "nope"); err != nil || got != nil {
		t.Fatalf("get missing = %v, %v", got, err)
	}
	if err := s.SaveAnswer(ctx, "nope", "q1", quiz.Answer{}); !errors.Is(err, quiz.ErrSessionNotFound) {
		t.Errorf("save answer err = %v", err)
	}
	if err := s.CompleteSession(ctx, "nope", quiz.Completion{}); !errors.Is(err, quiz.ErrSessionNotFound) {
		t.Errorf("complete err = %v", err)
	}
}

func TestConceptTallies(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deltas := concepts.Aggregate([]concepts.Outcome{
		{Concept: "slope", Correct: true},
		{Concept: "slope", Correct: false},
		{Concept: "ratio", Correct: true},
	})
	if err := s.AddConceptTallies(ctx, "u1", deltas); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddConceptTallies(ctx, "u1", map[string]concepts.Delta{"slope": {Attempts: 1, Correct: 1}}); err != nil {
		t.Fatalf("add again: %v", err)
	}

	tallies, err := s.ListConceptTallies(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tallies) != 2 {
		t.Fatalf("tallies = %+v", tallies)
	}
	if tallies[0].Concept != "ratio" || tallies[0].Attempts != 1 || tallies[0].Correct != 1 {
		t.Errorf("ratio = %+v", tallies[0])
	}
	if tallies[1].Concept != "slope" || tallies[1].Attempts != 3 || tallies[1].Correct != 2 {
		t.Errorf("slope = %+v", tallies[1])
	}
}
