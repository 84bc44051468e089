package questions

import (
	"fmt"
	"strings"
)

// Difficulty is the classifier stored on every question document.
type Difficulty string

const (
	DifficultyAny    Difficulty = ""
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Level is a learner's difficulty tier for a skill.
type Level int

const (
	LevelEasy   Level = 1
	LevelMedium Level = 2
	LevelHard   Level = 3
)

// MinLevel and MaxLevel bound every stored level.
const (
	MinLevel = LevelEasy
	MaxLevel = LevelHard
)

// Valid reports whether l is one of the three tiers.
func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Clamp forces l into [MinLevel, MaxLevel].
func (l Level) Clamp() Level {
	switch {
	case l < MinLevel:
		return MinLevel
	case l > MaxLevel:
		return MaxLevel
	}
	return l
}

// DifficultyForLevel maps 1/2/3 to easy/medium/hard.
func DifficultyForLevel(l Level) (Difficulty, error) {
	switch l {
	case LevelEasy:
		return DifficultyEasy, nil
	case LevelMedium:
		return DifficultyMedium, nil
	case LevelHard:
		return DifficultyHard, nil
	}
	return DifficultyAny, fmt.Errorf("invalid level %d", l)
}

// LevelForDifficulty is the inverse of DifficultyForLevel.
func LevelForDifficulty(d Difficulty) (Level, error) {
	switch Difficulty(strings.ToLower(string(d))) {
	case DifficultyEasy:
		return LevelEasy, nil
	case DifficultyMedium:
		return LevelMedium, nil
	case DifficultyHard:
		return LevelHard, nil
	}
	return 0, fmt.Errorf("unknown difficulty %q", d)
}

// Question is a single read-only item from the corpus.
type Question struct {
	ID         string     `json:"id"`
	SkillID    string     `json:"skill_id"`
	Difficulty Difficulty `json:"difficulty"`
	Prompt     string     `json:"prompt"`
	Options    []string   `json:"options,omitempty"`

	// CorrectAnswer is compared against the learner's selected option.
	CorrectAnswer string `json:"correct_answer"`

	// Concepts are the concept tags whose mastery tallies this question feeds.
	Concepts []string `json:"concepts,omitempty"`
}

// IsCorrect reports whether selected matches the correct answer,
// ignoring surrounding whitespace and case.
func (q *Question) IsCorrect(selected string) bool {
	if q.CorrectAnswer == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(selected), strings.TrimSpace(q.CorrectAnswer))
}

// IDs returns the identifiers of qs in order.
func IDs(qs []Question) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}
