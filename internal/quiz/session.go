package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/satquiz/internal/questions"
)

// Status is a quiz session's lifecycle position.
type Status string

const (
	StatusCreated   Status = "created"
	StatusCompleted Status = "completed"
)

var (
	// ErrNoQuestions is surfaced verbatim to learners.
	ErrNoQuestions = errors.New("no questions available for this skill at this difficulty")

	ErrSessionNotFound  = errors.New("quiz session not found")
	ErrSessionCompleted = errors.New("quiz session already completed")
	ErrUnknownQuestion  = errors.New("question is not part of this quiz session")
	ErrInvalidLevel     = errors.New("level must be 1, 2 or 3")
	ErrNoSkills         = errors.New("at least one skill is required")
	ErrNoUser           = errors.New("user id is required")
)

// Answer is one learner response.
type Answer struct {
	SelectedOption string        `json:"selected_option"`
	IsCorrect      bool          `json:"is_correct"`
	TimeSpent      time.Duration `json:"time_spent"`
}

// Session is an assembled quiz. QuestionIDs never change after creation.
type Session struct {
	ID       string
	UserID   string
	SkillIDs []string
	Level    questions.Level

	// PriorLevel is the learner's stored level when the quiz was started by
	// explicit level selection; nil for "continue where you left off".
	PriorLevel *questions.Level

	QuestionIDs []string
	Status      Status
	Score       int
	Passed      bool
	UserAnswers map[string]Answer
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// IsMeta reports whether the quiz spans several skills.
func (s *Session) IsMeta() bool {
	return len(s.SkillIDs) > 1
}

// SkillID returns the single target skill, or "" for meta quizzes.
func (s *Session) SkillID() string {
	if len(s.SkillIDs) == 1 {
		return s.SkillIDs[0]
	}
	return ""
}

// HasQuestion reports whether id belongs to the session.
func (s *Session) HasQuestion(id string) bool {
	for _, q := range s.QuestionIDs {
		if q == id {
			return true
		}
	}
	return false
}

// Completion holds the fields written when a session is finalized.
type Completion struct {
	Score       int
	Passed      bool
	UserAnswers map[string]Answer
	CompletedAt time.Time
}

// SessionRepo persists quiz sessions.
type SessionRepo interface {
	CreateSession(ctx context.Context, s *Session) error

	// GetSession returns nil, nil when the session does not exist.
	GetSession(ctx context.Context, id string) (*Session, error)

	// SaveAnswer records one answer on a created session. It returns
	// ErrSessionCompleted or ErrSessionNotFound when that is not possible.
	SaveAnswer(ctx context.Context, id, questionID string, a Answer) error

	// CompleteSession moves the session from created to completed in a
	// single conditional write. It returns ErrSessionCompleted if another
	// finalize won, and ErrSessionNotFound if the session is missing.
	CompleteSession(ctx context.Context, id string, c Completion) error
}

// QuestionSource is the Question Pool Provider.
type QuestionSource interface {
	// ListBySkill filters by difficulty unless it is questions.DifficultyAny.
	ListBySkill(ctx context.Context, skillID string, difficulty questions.Difficulty) ([]questions.Question, error)
	GetQuestions(ctx context.Context, ids []string) ([]questions.Question, error)
}
