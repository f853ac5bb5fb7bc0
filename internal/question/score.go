package question

import "github.com/hactazia/quiznet/internal/model"

// Points returns the score for a correct answer: a difficulty base plus a
// speed bonus when the answer arrived within the first half of the time limit.
func Points(d model.Difficulty, responseTime float64, timeLimit int) int {
	var base, bonus int
	switch d {
	case model.DifficultyEasy:
		base, bonus = 5, 1
	case model.DifficultyMedium:
		base, bonus = 10, 3
	case model.DifficultyHard:
		base, bonus = 15, 6
	}
	if responseTime <= float64(timeLimit)/2 {
		return base + bonus
	}
	return base
}
