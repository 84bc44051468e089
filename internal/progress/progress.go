package progress

import (
	"math"
	"slices"
	"time"

	"github.com/abhisek/satquiz/internal/questions"
)

// Retention limits for the bounded per-skill histories.
const (
	MaxAskedQuestions = 200
	RollingWindow     = 10
	MaxAttemptHistory = 30
)

// Key identifies one SkillProgress record.
type Key struct {
	UserID  string
	SkillID string
}

// AttemptRecord summarizes one finished quiz for a skill.
type AttemptRecord struct {
	QuizID    string    `json:"quiz_id"`
	Timestamp time.Time `json:"timestamp"`
	Accuracy  int       `json:"accuracy"`
	Attempted int       `json:"attempted"`
	Correct   int       `json:"correct"`
}

// CumulativeStats are running totals across every attempt.
type CumulativeStats struct {
	CorrectTotal   int `json:"correct_total"`
	TotalQuestions int `json:"total_questions"`
	Attempts       int `json:"attempts"`
	Accuracy       int `json:"accuracy"`
}

// SkillProgress is a learner's mastery state for one skill.
type SkillProgress struct {
	UserID  string
	SkillID string
	Level   questions.Level

	// AskedQuestionIDs is ordered oldest first and capped at MaxAskedQuestions.
	AskedQuestionIDs []string

	// MissedQuestionIDs holds questions whose latest answer was incorrect.
	MissedQuestionIDs []string

	// RollingResults is newest first and capped at RollingWindow.
	RollingResults []bool

	Mastered bool

	// AttemptHistory is newest first and capped at MaxAttemptHistory.
	AttemptHistory []AttemptRecord

	Stats CumulativeStats

	// Version increments on every write and guards optimistic updates.
	Version   int64
	UpdatedAt time.Time
}

// New returns the default record for a learner who has never practiced the skill.
func New(key Key) *SkillProgress {
	return &SkillProgress{
		UserID:  key.UserID,
		SkillID: key.SkillID,
		Level:   questions.LevelEasy,
	}
}

// Key returns the record's identity.
func (p *SkillProgress) Key() Key {
	return Key{UserID: p.UserID, SkillID: p.SkillID}
}

// TrailingAccuracy is the percentage correct over RollingResults.
// It is derived on every call and never stored.
func (p *SkillProgress) TrailingAccuracy() int {
	if len(p.RollingResults) == 0 {
		return 0
	}
	correct := 0
	for _, r := range p.RollingResults {
		if r {
			correct++
		}
	}
	return Percent(correct, len(p.RollingResults))
}

// HasMissed reports whether id is currently in the missed set.
func (p *SkillProgress) HasMissed(id string) bool {
	return slices.Contains(p.MissedQuestionIDs, id)
}

// Clone returns a deep copy of p.
func (p *SkillProgress) Clone() *SkillProgress {
	c := *p
	c.AskedQuestionIDs = slices.Clone(p.AskedQuestionIDs)
	c.MissedQuestionIDs = slices.Clone(p.MissedQuestionIDs)
	c.RollingResults = slices.Clone(p.RollingResults)
	c.AttemptHistory = slices.Clone(p.AttemptHistory)
	return &c
}

// Percent returns round(100 * part / total), or 0 for an empty total.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
