package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/abhisek/satquiz/internal/concepts"
	"github.com/abhisek/satquiz/internal/progress"
	"github.com/abhisek/satquiz/internal/questions"
	"github.com/abhisek/satquiz/internal/ranking"
	"github.com/abhisek/satquiz/internal/worker"
)

// ProgressRecorder applies a finished quiz to one SkillProgress record.
type ProgressRecorder interface {
	RecordAttempt(ctx context.Context, key progress.Key, a progress.Attempt) (*progress.SkillProgress, error)
}

// Dispatcher runs best-effort jobs. *worker.Dispatcher satisfies it.
type Dispatcher interface {
	Submit(name string, fn worker.Job)
}

// Submission is an answer passed directly to Finalize.
type Submission struct {
	SelectedOption string        `json:"selected_option"`
	TimeSpent      time.Duration `json:"time_spent"`
}

// SkillResult is the outcome of a finalize for one skill.
type SkillResult struct {
	SkillID   string
	Attempted int
	Correct   int
	Passed    bool

	// Level is the stored level after the update, or the quiz's requested
	// level when Persisted is false.
	Level            questions.Level
	Mastered         bool
	TrailingAccuracy int
	Persisted        bool
	Err              error
}

// Result is what Finalize reports to the caller.
type Result struct {
	SessionID    string
	Score        int
	CorrectCount int
	Total        int
	Passed       bool
	Skills       []SkillResult

	// Persisted is false if any skill's progress could not be written.
	Persisted bool
}

// Recorder finalizes sessions and drives progression.
type Recorder struct {
	sessions  SessionRepo
	source    QuestionSource
	progress  ProgressRecorder
	concepts  concepts.Tracker
	ranking   ranking.Cache
	dispatch  Dispatcher
	threshold int
	now       func() time.Time
	logger    *slog.Logger
}

// RecorderDeps bundles the Recorder's collaborators. Concepts, Ranking and
// Dispatch are optional.
type RecorderDeps struct {
	Sessions SessionRepo
	Source   QuestionSource
	Progress ProgressRecorder
	Concepts concepts.Tracker
	Ranking  ranking.Cache
	Dispatch Dispatcher
	Logger   *slog.Logger
}

// NewRecorder creates a Recorder passing quizzes at threshold percent.
func NewRecorder(deps RecorderDeps, threshold int) *Recorder {
	r := &Recorder{
		sessions:  deps.Sessions,
		source:    deps.Source,
		progress:  deps.Progress,
		concepts:  deps.Concepts,
		ranking:   deps.Ranking,
		dispatch:  deps.Dispatch,
		threshold: threshold,
		now:       time.Now,
		logger:    deps.Logger,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Finalize grades the session, marks it completed and updates progress for
// every skill it covers. Progress write failures are reported in the
// Result rather than as an error.
func (r *Recorder) Finalize(ctx context.Context, sessionID string, submitted map[string]Submission) (*Result, error) {
	sess, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.Status == StatusCompleted {
		return nil, ErrSessionCompleted
	}
	if len(sess.QuestionIDs) == 0 {
		return nil, ErrNoQuestions
	}

	qs, err := r.source.GetQuestions(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("load session questions: %w", err)
	}
	byID := make(map[string]questions.Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}

	answers := gradeAnswers(sess, byID, submitted)
	correct := 0
	for _, id := range sess.QuestionIDs {
		if answers[id].IsCorrect {
			correct++
		}
	}
	total := len(sess.QuestionIDs)
	score := progress.Percent(correct, total)
	passed := score >= r.threshold
	now := r.now().UTC()

	// The status swap is the precondition for touching progress: a second
	// finalize of the same session stops here.
	err = r.sessions.CompleteSession(ctx, sess.ID, Completion{
		Score:       score,
		Passed:      passed,
		UserAnswers: answers,
		CompletedAt: now,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		SessionID:    sess.ID,
		Score:        score,
		CorrectCount: correct,
		Total:        total,
		Passed:       passed,
		Persisted:    true,
	}

	groups := groupBySkill(sess, byID)
	for _, skillID := range sortedKeys(groups) {
		sr := r.recordSkill(ctx, sess, skillID, groups[skillID], answers, passed, now)
		if !sr.Persisted {
			res.Persisted = false
		}
		res.Skills = append(res.Skills, sr)
	}

	r.notify(sess, byID, answers, res, now)

	r.logger.Info("quiz finalized",
		"session", sess.ID, "user", sess.UserID, "score", score, "passed", passed,
		"skills", len(res.Skills), "persisted", res.Persisted)
	return res, nil
}

func (r *Recorder) recordSkill(ctx context.Context, sess *Session, skillID string, ids []string, answers map[string]Answer, quizPassed bool, now time.Time) SkillResult {
	outcomes := make([]progress.Outcome, 0, len(ids))
	correct := 0
	for _, id := range ids {
		ok := answers[id].IsCorrect
		if ok {
			correct++
		}
		outcomes = append(outcomes, progress.Outcome{QuestionID: id, Correct: ok})
	}

	passed := quizPassed
	if sess.IsMeta() {
		passed = progress.Percent(correct, len(ids)) >= r.threshold
	}

	sr := SkillResult{
		SkillID:   skillID,
		Attempted: len(ids),
		Correct:   correct,
		Passed:    passed,
		Level:     sess.Level,
	}

	key := progress.Key{UserID: sess.UserID, SkillID: skillID}
	updated, err := r.progress.RecordAttempt(ctx, key, progress.Attempt{
		QuizID:     sess.ID,
		At:         now,
		Outcomes:   outcomes,
		Level:      sess.Level,
		PriorLevel: sess.PriorLevel,
		Passed:     passed,
	})
	if err != nil {
		r.logger.Error("progress update failed",
			"session", sess.ID, "user", sess.UserID, "skill", skillID, "error", err)
		sr.Err = err
		return sr
	}

	sr.Persisted = true
	sr.Level = updated.Level
	sr.Mastered = updated.Mastered
	sr.TrailingAccuracy = updated.TrailingAccuracy()
	return sr
}

// notify hands the concept and ranking updates to the dispatcher. Their
// failures are logged and never reach the caller.
func (r *Recorder) notify(sess *Session, byID map[string]questions.Question, answers map[string]Answer, res *Result, now time.Time) {
	if r.concepts != nil {
		var outcomes []concepts.Outcome
		for _, id := range sess.QuestionIDs {
			for _, c := range byID[id].Concepts {
				outcomes = append(outcomes, concepts.Outcome{Concept: c, Correct: answers[id].IsCorrect})
			}
		}
		if len(outcomes) > 0 {
			userID := sess.UserID
			r.submit("concept-mastery", func(ctx context.Context) error {
				return r.concepts.Record(ctx, userID, outcomes)
			})
		}
	}

	if r.ranking != nil {
		stat := ranking.Stat{
			UserID:    sess.UserID,
			QuizID:    sess.ID,
			Correct:   res.CorrectCount,
			Questions: res.Total,
			Score:     res.Score,
			At:        now,
		}
		r.submit("ranking-cache", func(ctx context.Context) error {
			return r.ranking.RecordQuiz(ctx, stat)
		})
	}
}

func (r *Recorder) submit(name string, job worker.Job) {
	if r.dispatch != nil {
		r.dispatch.Submit(name, job)
		return
	}
	if err := job(context.Background()); err != nil {
		r.logger.Warn("collaborator update failed", "job", name, "error", err)
	}
}

// gradeAnswers merges stored answers with submitted ones (submitted win)
// and grades every answer against the question's correct answer.
func gradeAnswers(sess *Session, byID map[string]questions.Question, submitted map[string]Submission) map[string]Answer {
	answers := make(map[string]Answer, len(sess.QuestionIDs))
	for _, id := range sess.QuestionIDs {
		a, ok := sess.UserAnswers[id]
		if sub, subOK := submitted[id]; subOK {
			a = Answer{SelectedOption: sub.SelectedOption, TimeSpent: sub.TimeSpent}
			ok = true
		}
		if !ok {
			continue
		}
		q, known := byID[id]
		a.IsCorrect = known && q.IsCorrect(a.SelectedOption)
		answers[id] = a
	}
	return answers
}

// groupBySkill splits the session's questions by the skill whose progress
// they update. Single-skill quizzes attribute everything to that skill;
// meta quizzes use each question's own skill.
func groupBySkill(sess *Session, byID map[string]questions.Question) map[string][]string {
	groups := make(map[string][]string)
	if !sess.IsMeta() {
		groups[sess.SkillIDs[0]] = append([]string(nil), sess.QuestionIDs...)
		return groups
	}

	requested := newIDSet(sess.SkillIDs)
	for _, id := range sess.QuestionIDs {
		q, ok := byID[id]
		if !ok || !requested.has(q.SkillID) {
			continue
		}
		groups[q.SkillID] = append(groups[q.SkillID], id)
	}
	return groups
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
