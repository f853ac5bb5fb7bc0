package model

import (
	"fmt"
	"strings"
)

// Difficulty is a question difficulty level, ordered easy < medium < hard.
type Difficulty uint8

const (
	DifficultyEasy Difficulty = iota
	DifficultyMedium
	DifficultyHard
)

// ParseDifficulty maps French and English spellings onto a Difficulty.
// Unknown values fall back to medium; the question file format is lenient.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "facile", "easy":
		return DifficultyEasy
	case "difficile", "hard":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// String returns the French wire spelling: "facile", "moyen" or "difficile".
func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "facile"
	case DifficultyHard:
		return "difficile"
	default:
		return "moyen"
	}
}

// QuestionKind is the answer format of a question.
type QuestionKind uint8

const (
	KindQCM QuestionKind = iota
	KindBoolean
	KindText
)

// ParseQuestionKind maps a question file type token onto a QuestionKind.
// Anything that is not "qcm" or "boolean" is treated as a text question.
func ParseQuestionKind(s string) QuestionKind {
	switch s {
	case "qcm":
		return KindQCM
	case "boolean":
		return KindBoolean
	default:
		return KindText
	}
}

// String returns the wire name of the kind: "qcm", "boolean" or "text".
func (k QuestionKind) String() string {
	switch k {
	case KindQCM:
		return "qcm"
	case KindBoolean:
		return "boolean"
	default:
		return "text"
	}
}

// QCMOptionCount is the number of choices in a multiple-choice question.
const QCMOptionCount = 4

// Theme groups questions by topic.
// IDs are dense, assigned in first-appearance order while loading the question file.
type Theme struct {
	ID   int
	Name string
}

// Question is one quiz question. Immutable after loading.
type Question struct {
	ID           int
	ThemeIDs     []int
	Difficulty   Difficulty
	Kind         QuestionKind
	Prompt       string
	Options      []string // qcm: QCMOptionCount entries in stored order
	CorrectIndex int      // qcm: index into Options
	CorrectBool  bool     // boolean
	Accepted     []string // text: accepted answers, first one is canonical
	Explanation  string
}

// HasAnyTheme reports whether the question belongs to at least one of the given themes.
func (q *Question) HasAnyTheme(themeIDs []int) bool {
	for _, want := range themeIDs {
		for _, id := range q.ThemeIDs {
			if id == want {
				return true
			}
		}
	}
	return false
}

// Mode selects the session rule set.
type Mode uint8

const (
	ModeSolo Mode = iota
	ModeBattle
)

// ParseMode maps a request mode string onto a Mode, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "solo":
		return ModeSolo, nil
	case "battle":
		return ModeBattle, nil
	default:
		return ModeSolo, fmt.Errorf("unknown mode %q", s)
	}
}

// String returns the wire name of the mode.
func (m Mode) String() string {
	if m == ModeBattle {
		return "battle"
	}
	return "solo"
}

// SessionStatus is the session lifecycle phase.
// Transitions are strictly waiting → playing → finished.
type SessionStatus uint8

const (
	StatusWaiting SessionStatus = iota
	StatusPlaying
	StatusFinished
)

// String returns the wire name of the status.
func (s SessionStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusFinished:
		return "finished"
	default:
		return "waiting"
	}
}

// Session guardrails enforced at creation time.
const (
	MaxSessions       = 20
	MaxSessionPlayers = 10
	MinSessionPlayers = 2
	MinQuestions      = 10
	MaxQuestions      = 50
	MinTimeLimit      = 10
	MaxTimeLimit      = 60
	MinLives          = 1
	MaxLives          = 10
)

// Sentinel values stored as a player's answer for the current question.
const (
	AnswerNone    = -1
	AnswerSkipped = -2
)
