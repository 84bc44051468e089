package progress

import "github.com/abhisek/satquiz/internal/questions"

// NextLevel computes the level to store after a quiz.
//
// Without a prior level a pass promotes one step from the quiz level. With a
// prior level (explicit level selection) passing below it changes nothing,
// passing at or above it promotes from the higher of the two, and failing
// keeps the prior level. The result never drops below stored.
func NextLevel(stored, quizLevel questions.Level, prior *questions.Level, passed bool) questions.Level {
	stored = stored.Clamp()
	quizLevel = quizLevel.Clamp()

	target := stored
	switch {
	case prior != nil:
		p := prior.Clamp()
		switch {
		case !passed, quizLevel < p:
			target = p
		default:
			target = max(quizLevel, p) + 1
		}
	case passed && quizLevel < questions.MaxLevel:
		target = quizLevel + 1
	}

	return max(target.Clamp(), stored)
}
