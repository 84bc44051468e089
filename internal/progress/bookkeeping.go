package progress

import (
	"slices"
	"time"

	"github.com/abhisek/satquiz/internal/questions"
)

// Outcome is the graded result of one question.
type Outcome struct {
	QuestionID string
	Correct    bool
}

// Attempt is everything a finished quiz contributes to one skill.
type Attempt struct {
	QuizID   string
	At       time.Time
	Outcomes []Outcome

	// Level is the difficulty the quiz was taken at.
	Level questions.Level

	// PriorLevel is set only for quizzes started by explicit level selection.
	PriorLevel *questions.Level

	Passed bool
}

// Correct returns the number of correct outcomes.
func (a Attempt) Correct() int {
	n := 0
	for _, o := range a.Outcomes {
		if o.Correct {
			n++
		}
	}
	return n
}

// Apply merges a into a copy of current and returns the copy.
// It is a pure function so it can be re-run by every retry attempt.
func Apply(current *SkillProgress, a Attempt) *SkillProgress {
	next := current.Clone()

	for _, o := range a.Outcomes {
		next.recordOutcome(o)
	}

	correct := a.Correct()
	next.Stats.CorrectTotal += correct
	next.Stats.TotalQuestions += len(a.Outcomes)
	next.Stats.Attempts++
	next.Stats.Accuracy = Percent(next.Stats.CorrectTotal, next.Stats.TotalQuestions)

	rec := AttemptRecord{
		QuizID:    a.QuizID,
		Timestamp: a.At,
		Accuracy:  Percent(correct, len(a.Outcomes)),
		Attempted: len(a.Outcomes),
		Correct:   correct,
	}
	next.AttemptHistory = prependCapped(next.AttemptHistory, rec, MaxAttemptHistory)

	next.Level = NextLevel(current.Level, a.Level, a.PriorLevel, a.Passed)
	if a.Passed && a.Level == questions.MaxLevel && next.Level == questions.MaxLevel {
		next.Mastered = true
	}
	return next
}

func (p *SkillProgress) recordOutcome(o Outcome) {
	p.AskedQuestionIDs = appendAsked(p.AskedQuestionIDs, o.QuestionID)

	if o.Correct {
		p.MissedQuestionIDs = slices.DeleteFunc(p.MissedQuestionIDs, func(id string) bool {
			return id == o.QuestionID
		})
	} else if !slices.Contains(p.MissedQuestionIDs, o.QuestionID) {
		p.MissedQuestionIDs = append(p.MissedQuestionIDs, o.QuestionID)
	}

	p.RollingResults = prependCapped(p.RollingResults, o.Correct, RollingWindow)
}

// appendAsked adds id once and evicts from the front past MaxAskedQuestions.
func appendAsked(asked []string, id string) []string {
	if slices.Contains(asked, id) {
		return asked
	}
	asked = append(asked, id)
	if over := len(asked) - MaxAskedQuestions; over > 0 {
		asked = slices.Delete(asked, 0, over)
	}
	return asked
}

func prependCapped[T any](s []T, v T, limit int) []T {
	out := make([]T, 0, min(len(s)+1, limit))
	out = append(out, v)
	for _, x := range s {
		if len(out) == limit {
			break
		}
		out = append(out, x)
	}
	return out
}
