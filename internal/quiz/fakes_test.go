package quiz

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/abhisek/satquiz/internal/concepts"
	"github.com/abhisek/satquiz/internal/progress"
	"github.com/abhisek/satquiz/internal/questions"
	"github.com/abhisek/satquiz/internal/ranking"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// memQuestions is an in-memory QuestionSource.
type memQuestions struct {
	byID    map[string]questions.Question
	order   []string
	listErr map[string]error
}

func newMemQuestions(qs ...questions.Question) *memQuestions {
	m := &memQuestions{byID: map[string]questions.Question{}, listErr: map[string]error{}}
	for _, q := range qs {
		m.byID[q.ID] = q
		m.order = append(m.order, q.ID)
	}
	return m
}

func (m *memQuestions) ListBySkill(_ context.Context, skillID string, d questions.Difficulty) ([]questions.Question, error) {
	if err := m.listErr[skillID]; err != nil {
		return nil, err
	}
	var out []questions.Question
	for _, id := range m.order {
		q := m.byID[id]
		if q.SkillID != skillID {
			continue
		}
		if d != questions.DifficultyAny && q.Difficulty != d {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (m *memQuestions) GetQuestions(_ context.Context, ids []string) ([]questions.Question, error) {
	var out []questions.Question
	for _, id := range ids {
		if q, ok := m.byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// makeQuestions builds n questions for a skill, ids prefix-1..prefix-n,
// each answered correctly by "A".
func makeQuestions(skillID, prefix string, d questions.Difficulty, n int, conceptTags ...string) []questions.Question {
	qs := make([]questions.Question, 0, n)
	for i := 1; i <= n; i++ {
		qs = append(qs, questions.Question{
			ID:            fmt.Sprintf("%s-%d", prefix, i),
			SkillID:       skillID,
			Difficulty:    d,
			Prompt:        "prompt",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Concepts:      conceptTags,
		})
	}
	return qs
}

// memProgress is an in-memory ProgressReader and ProgressRecorder.
type memProgress struct {
	mu      sync.Mutex
	records map[progress.Key]*progress.SkillProgress
	failFor map[string]error
	calls   int
}

func newMemProgress() *memProgress {
	return &memProgress{records: map[progress.Key]*progress.SkillProgress{}, failFor: map[string]error{}}
}

func (m *memProgress) put(p *progress.SkillProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[p.Key()] = p
}

func (m *memProgress) Get(_ context.Context, key progress.Key) (*progress.SkillProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (m *memProgress) RecordAttempt(_ context.Context, key progress.Key, a progress.Attempt) (*progress.SkillProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.failFor[key.SkillID]; err != nil {
		return nil, err
	}
	cur, ok := m.records[key]
	if !ok {
		cur = progress.New(key)
	}
	next := progress.Apply(cur, a)
	m.records[key] = next
	return next.Clone(), nil
}

// memSessions is an in-memory SessionRepo with the same status guard as
// the SQL store.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]*Session{}}
}

func (m *memSessions) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return errors.New("duplicate session")
	}
	m.sessions[s.ID] = copySession(s)
	return nil
}

func (m *memSessions) GetSession(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (m *memSessions) SaveAnswer(_ context.Context, id, questionID string, a Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.Status == StatusCompleted {
		return ErrSessionCompleted
	}
	s.UserAnswers[questionID] = a
	return nil
}

func (m *memSessions) CompleteSession(_ context.Context, id string, c Completion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.Status == StatusCompleted {
		return ErrSessionCompleted
	}
	s.Status = StatusCompleted
	s.Score = c.Score
	s.Passed = c.Passed
	s.UserAnswers = maps.Clone(c.UserAnswers)
	at := c.CompletedAt
	s.CompletedAt = &at
	return nil
}

func copySession(s *Session) *Session {
	c := *s
	c.SkillIDs = slices.Clone(s.SkillIDs)
	c.QuestionIDs = slices.Clone(s.QuestionIDs)
	c.UserAnswers = maps.Clone(s.UserAnswers)
	if c.UserAnswers == nil {
		c.UserAnswers = map[string]Answer{}
	}
	return &c
}

type fakeTracker struct {
	mu       sync.Mutex
	err      error
	outcomes map[string][]concepts.Outcome
}

func (f *fakeTracker) Record(_ context.Context, userID string, outcomes []concepts.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = map[string][]concepts.Outcome{}
	}
	f.outcomes[userID] = append(f.outcomes[userID], outcomes...)
	return f.err
}

type fakeRanking struct {
	ranking.Nop
	mu    sync.Mutex
	err   error
	stats []ranking.Stat
}

func (f *fakeRanking) RecordQuiz(_ context.Context, s ranking.Stat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = append(f.stats, s)
	return f.err
}

func levelPtr(l questions.Level) *questions.Level {
	return &l
}
