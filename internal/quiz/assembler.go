package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/abhisek/satquiz/internal/progress"
	"github.com/abhisek/satquiz/internal/questions"
)

// ProgressReader reads SkillProgress records.
type ProgressReader interface {
	// Get returns nil, nil when the learner has no record for the skill.
	Get(ctx context.Context, key progress.Key) (*progress.SkillProgress, error)
}

// AssembleRequest describes the quiz to build.
type AssembleRequest struct {
	UserID   string
	SkillIDs []string
	Level    questions.Level
	Count    int
}

// Assembler selects question ids for a new quiz. Fresh questions come
// first, then currently-missed ones, then previously-correct ones.
type Assembler struct {
	source   QuestionSource
	progress ProgressReader
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAssembler creates an Assembler. A nil rng gets a randomly seeded one.
func NewAssembler(source QuestionSource, reader ProgressReader, rng *rand.Rand, logger *slog.Logger) *Assembler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Assembler{source: source, progress: reader, rng: rng, logger: logger}
}

// Assemble returns between 1 and req.Count unique question ids, or
// ErrNoQuestions if nothing can be served.
func (a *Assembler) Assemble(ctx context.Context, req AssembleRequest) ([]string, error) {
	if !req.Level.Valid() {
		return nil, ErrInvalidLevel
	}
	if req.Count < 1 {
		return nil, fmt.Errorf("quiz size must be positive, got %d", req.Count)
	}
	switch len(req.SkillIDs) {
	case 0:
		return nil, ErrNoSkills
	case 1:
		return a.assembleSkill(ctx, req.UserID, req.SkillIDs[0], req.Level, req.Count)
	default:
		return a.assembleMeta(ctx, req)
	}
}

func (a *Assembler) assembleSkill(ctx context.Context, userID, skillID string, level questions.Level, count int) ([]string, error) {
	p, err := a.progress.Get(ctx, progress.Key{UserID: userID, SkillID: skillID})
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = progress.New(progress.Key{UserID: userID, SkillID: skillID})
	}

	pool, err := a.pool(ctx, skillID, level)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}

	asked := newIDSet(p.AskedQuestionIDs)
	missed := newIDSet(p.MissedQuestionIDs)
	fresh := filter(pool, func(id string) bool { return !asked.has(id) })

	if len(fresh) >= count {
		return a.sample(fresh, count), nil
	}

	chosen := a.sample(fresh, len(fresh))
	taken := newIDSet(chosen)

	remediation := filter(pool, func(id string) bool {
		return missed.has(id) && !taken.has(id)
	})
	picked := a.sample(remediation, count-len(chosen))
	chosen = append(chosen, picked...)
	taken.add(picked...)

	if len(chosen) < count {
		reinforcement := filter(pool, func(id string) bool {
			return asked.has(id) && !missed.has(id) && !taken.has(id)
		})
		chosen = append(chosen, a.sample(reinforcement, count-len(chosen))...)
	}

	if len(chosen) == 0 {
		return nil, ErrNoQuestions
	}
	if len(chosen) < count {
		a.logger.Info("partial question pool",
			"user", userID, "skill", skillID, "level", int(level), "wanted", count, "got", len(chosen))
	}
	return chosen, nil
}

func (a *Assembler) assembleMeta(ctx context.Context, req AssembleRequest) ([]string, error) {
	var askedLists [][]string
	var combined []string
	seen := make(idSet)

	for _, skillID := range req.SkillIDs {
		p, err := a.progress.Get(ctx, progress.Key{UserID: req.UserID, SkillID: skillID})
		if err != nil {
			return nil, err
		}
		if p != nil {
			askedLists = append(askedLists, p.AskedQuestionIDs)
		}

		pool, err := a.pool(ctx, skillID, req.Level)
		if err != nil {
			a.logger.Warn("skipping skill with unavailable question pool", "skill", skillID, "error", err)
			continue
		}
		for _, id := range pool {
			if !seen.has(id) {
				seen.add(id)
				combined = append(combined, id)
			}
		}
	}

	asked := newIDSet(askedLists...)
	candidates := filter(combined, func(id string) bool { return !asked.has(id) })

	if len(candidates) < req.Count {
		inCandidates := newIDSet(candidates)
		for _, id := range a.sample(combined, len(combined)) {
			if len(candidates) >= req.Count {
				break
			}
			if !inCandidates.has(id) {
				inCandidates.add(id)
				candidates = append(candidates, id)
			}
		}
	}

	if len(candidates) == 0 {
		return nil, ErrNoQuestions
	}
	return a.sample(candidates, req.Count), nil
}

// pool fetches the skill's ids at the level's difficulty, falling back to
// any difficulty when that is empty.
func (a *Assembler) pool(ctx context.Context, skillID string, level questions.Level) ([]string, error) {
	difficulty, err := questions.DifficultyForLevel(level)
	if err != nil {
		return nil, err
	}

	qs, err := a.source.ListBySkill(ctx, skillID, difficulty)
	if err != nil {
		return nil, fmt.Errorf("list questions for %s: %w", skillID, err)
	}
	if len(qs) == 0 {
		qs, err = a.source.ListBySkill(ctx, skillID, questions.DifficultyAny)
		if err != nil {
			return nil, fmt.Errorf("list questions for %s: %w", skillID, err)
		}
	}
	return questions.IDs(qs), nil
}

func (a *Assembler) sample(ids []string, n int) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sample(a.rng, ids, n)
}
