package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/satquiz/internal/progress"
	"github.com/abhisek/satquiz/internal/questions"
)

// Config holds quiz policy knobs.
type Config struct {
	QuizSize      int
	PassThreshold int
}

// DefaultConfig returns five-question quizzes passed at 80%.
func DefaultConfig() Config {
	return Config{QuizSize: 5, PassThreshold: 80}
}

// StartRequest asks for a new quiz. A nil Level continues from the stored
// level; an explicit Level records the stored level as the session's prior.
type StartRequest struct {
	UserID   string
	SkillIDs []string
	Level    *questions.Level
	Count    int
}

// Service is the quiz entry point: start, answer, finalize and read.
type Service struct {
	cfg       Config
	sessions  SessionRepo
	source    QuestionSource
	progress  ProgressReader
	assembler *Assembler
	recorder  *Recorder
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

// NewService wires a Service from its parts.
func NewService(cfg Config, sessions SessionRepo, source QuestionSource, reader ProgressReader, assembler *Assembler, recorder *Recorder, logger *slog.Logger) *Service {
	if cfg.QuizSize < 1 {
		cfg.QuizSize = DefaultConfig().QuizSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		cfg:       cfg,
		sessions:  sessions,
		source:    source,
		progress:  reader,
		assembler: assembler,
		recorder:  recorder,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// Start assembles and persists a new quiz session.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrNoUser
	}
	skills := dedupe(req.SkillIDs)
	if len(skills) == 0 {
		return nil, ErrNoSkills
	}
	count := req.Count
	if count <= 0 {
		count = s.cfg.QuizSize
	}

	stored, err := s.storedLevels(ctx, req.UserID, skills)
	if err != nil {
		return nil, err
	}

	var level questions.Level
	var prior *questions.Level
	switch {
	case req.Level != nil:
		if !req.Level.Valid() {
			return nil, ErrInvalidLevel
		}
		level = *req.Level
		// Prior-level rules only make sense against a single record.
		if len(skills) == 1 {
			p := stored[0]
			prior = &p
		}
	default:
		level = slices.Min(stored)
	}

	ids, err := s.assembler.Assemble(ctx, AssembleRequest{
		UserID:   req.UserID,
		SkillIDs: skills,
		Level:    level,
		Count:    count,
	})
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:          s.newID(),
		UserID:      req.UserID,
		SkillIDs:    skills,
		Level:       level,
		PriorLevel:  prior,
		QuestionIDs: ids,
		Status:      StatusCreated,
		UserAnswers: map[string]Answer{},
		CreatedAt:   s.now().UTC(),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("quiz started",
		"session", sess.ID, "user", sess.UserID, "skills", skills,
		"level", int(level), "questions", len(ids), "requested", count)
	return sess, nil
}

// SubmitAnswer records one answer on an open session.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, questionID, selected string, timeSpent time.Duration) (*Answer, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusCompleted {
		return nil, ErrSessionCompleted
	}
	if !sess.HasQuestion(questionID) {
		return nil, ErrUnknownQuestion
	}

	qs, err := s.source.GetQuestions(ctx, []string{questionID})
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	a := Answer{SelectedOption: selected, TimeSpent: timeSpent}
	if len(qs) == 1 {
		a.IsCorrect = qs[0].IsCorrect(selected)
	}

	if err := s.sessions.SaveAnswer(ctx, sessionID, questionID, a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Finalize completes a session. See Recorder.Finalize.
func (s *Service) Finalize(ctx context.Context, sessionID string, submitted map[string]Submission) (*Result, error) {
	return s.recorder.Finalize(ctx, sessionID, submitted)
}

// Session returns a stored session or ErrSessionNotFound.
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	sess, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// storedLevels returns the learner's current level for each skill, with
// absent records at the starting level.
func (s *Service) storedLevels(ctx context.Context, userID string, skills []string) ([]questions.Level, error) {
	levels := make([]questions.Level, 0, len(skills))
	for _, skillID := range skills {
		p, err := s.progress.Get(ctx, progress.Key{UserID: userID, SkillID: skillID})
		if err != nil {
			return nil, fmt.Errorf("read progress for %s: %w", skillID, err)
		}
		if p == nil {
			levels = append(levels, questions.MinLevel)
			continue
		}
		levels = append(levels, p.Level.Clamp())
	}
	return levels, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
