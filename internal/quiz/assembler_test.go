package quiz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/satquiz/internal/progress"
	"github.com/abhisek/satquiz/internal/questions"
)

func newTestAssembler(src QuestionSource, p ProgressReader) *Assembler {
	return NewAssembler(src, p, seeded(3), nil)
}

func withProgress(userID, skillID string, asked, missed []string) *progress.SkillProgress {
	p := progress.New(progress.Key{UserID: userID, SkillID: skillID})
	p.AskedQuestionIDs = asked
	p.MissedQuestionIDs = missed
	return p
}

func TestAssembleFreshPool(t *testing.T) {
	src := newMemQuestions(makeQuestions("linear", "lin", questions.DifficultyEasy, 12)...)
	prog := newMemProgress()
	asked := []string{"lin-1", "lin-2", "lin-3"}
	prog.put(withProgress("u1", "linear", asked, nil))

	ids, err := newTestAssembler(src, prog).Assemble(context.Background(), AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear"}, Level: questions.LevelEasy, Count: 5,
	})
	require.NoError(t, err)
	require.Len(t, ids, 5)
	assert.Len(t, newIDSet(ids), 5)
	for _, id := range ids {
		assert.NotContains(t, asked, id)
	}
}

func TestAssembleFallbackCascadeOrder(t *testing.T) {
	src := newMemQuestions(makeQuestions("linear", "lin", questions.DifficultyEasy, 5)...)
	prog := newMemProgress()
	prog.put(withProgress("u1", "linear",
		[]string{"lin-1", "lin-2", "lin-3", "lin-4"},
		[]string{"lin-2", "lin-3"}))

	ids, err := newTestAssembler(src, prog).Assemble(context.Background(), AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear"}, Level: questions.LevelEasy, Count: 4,
	})
	require.NoError(t, err)
	require.Len(t, ids, 4)

	assert.Equal(t, "lin-5", ids[0], "fresh questions come first")
	assert.ElementsMatch(t, []string{"lin-2", "lin-3"}, ids[1:3], "missed questions come next")
	assert.Contains(t, []string{"lin-1", "lin-4"}, ids[3], "previously correct fill the rest")
	assert.Len(t, newIDSet(ids), 4)
}

func TestAssembleRemediationBeforeReinforcement(t *testing.T) {
	src := newMemQuestions(makeQuestions("linear", "lin", questions.DifficultyEasy, 6)...)
	prog := newMemProgress()
	all := []string{"lin-1", "lin-2", "lin-3", "lin-4", "lin-5", "lin-6"}
	prog.put(withProgress("u1", "linear", all, []string{"lin-6"}))

	ids, err := newTestAssembler(src, prog).Assemble(context.Background(), AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear"}, Level: questions.LevelEasy, Count: 3,
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, "lin-6", ids[0])
}

func TestAssembleDifficultyFallsBackToAny(t *testing.T) {
	src := newMemQuestions(makeQuestions("linear", "lin", questions.DifficultyMedium, 3)...)

	ids, err := newTestAssembler(src, newMemProgress()).Assemble(context.Background(), AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear"}, Level: questions.LevelEasy, Count: 3,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lin-1", "lin-2", "lin-3"}, ids)
}

func TestAssemblePartialPool(t *testing.T) {
	src := newMemQuestions(makeQuestions("linear", "lin", questions.DifficultyHard, 2)...)

	ids, err := newTestAssembler(src, newMemProgress()).Assemble(context.Background(), AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear"}, Level: questions.LevelHard, Count: 5,
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestAssembleEmptyPool(t *testing.T) {
	src := newMemQuestions(makeQuestions("other", "o", questions.DifficultyEasy, 4)...)

	_, err := newTestAssembler(src, newMemProgress()).Assemble(context.Background(), AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear"}, Level: questions.LevelEasy, Count: 5,
	})
	assert.ErrorIs(t, err, ErrNoQuestions)
	assert.EqualError(t, err, "no questions available for this skill at this difficulty")
}

func TestAssembleValidation(t *testing.T) {
	a := newTestAssembler(newMemQuestions(), newMemProgress())
	ctx := context.Background()

	_, err := a.Assemble(ctx, AssembleRequest{UserID: "u", SkillIDs: []string{"s"}, Level: 4, Count: 5})
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = a.Assemble(ctx, AssembleRequest{UserID: "u", Level: questions.LevelEasy, Count: 5})
	assert.ErrorIs(t, err, ErrNoSkills)

	_, err = a.Assemble(ctx, AssembleRequest{UserID: "u", SkillIDs: []string{"s"}, Level: questions.LevelEasy})
	assert.Error(t, err)
}

func TestAssembleMetaCombinesSkills(t *testing.T) {
	qs := append(makeQuestions("linear", "lin", questions.DifficultyEasy, 3),
		makeQuestions("ratios", "rat", questions.DifficultyEasy, 3)...)
	src := newMemQuestions(qs...)

	ids, err := newTestAssembler(src, newMemProgress()).Assemble(context.Background(), AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear", "ratios"}, Level: questions.LevelEasy, Count: 6,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, questions.IDs(qs), ids)
}

func TestAssembleMetaExcludesAskedThenBackfills(t *testing.T) {
	qs := append(makeQuestions("linear", "lin", questions.DifficultyEasy, 3),
		makeQuestions("ratios", "rat", questions.DifficultyEasy, 3)...)
	src := newMemQuestions(qs...)
	prog := newMemProgress()
	prog.put(withProgress("u1", "linear", []string{"lin-1", "lin-2"}, nil))
	prog.put(withProgress("u1", "ratios", []string{"rat-1"}, nil))

	a := newTestAssembler(src, prog)
	ctx := context.Background()

	ids, err := a.Assemble(ctx, AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear", "ratios"}, Level: questions.LevelEasy, Count: 3,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lin-3", "rat-2", "rat-3"}, ids)

	ids, err = a.Assemble(ctx, AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear", "ratios"}, Level: questions.LevelEasy, Count: 5,
	})
	require.NoError(t, err)
	require.Len(t, ids, 5)
	assert.Len(t, newIDSet(ids), 5)
	for _, id := range []string{"lin-3", "rat-2", "rat-3"} {
		assert.Contains(t, ids, id, "unseen questions are always candidates")
	}
}

func TestAssembleMetaSkipsFailingPool(t *testing.T) {
	src := newMemQuestions(makeQuestions("ratios", "rat", questions.DifficultyEasy, 2)...)
	src.listErr["linear"] = errors.New("backend down")

	ids, err := newTestAssembler(src, newMemProgress()).Assemble(context.Background(), AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear", "ratios"}, Level: questions.LevelEasy, Count: 4,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rat-1", "rat-2"}, ids)
}

func TestAssembleMetaEmpty(t *testing.T) {
	_, err := newTestAssembler(newMemQuestions(), newMemProgress()).Assemble(context.Background(), AssembleRequest{
		UserID: "u1", SkillIDs: []string{"linear", "ratios"}, Level: questions.LevelEasy, Count: 4,
	})
	assert.ErrorIs(t, err, ErrNoQuestions)
}
