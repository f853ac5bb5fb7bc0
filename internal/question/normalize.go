package question

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hactazia/quiznet/internal/model"
)

// Normalize folds a text answer for comparison: Unicode case folding, NFKD
// decomposition and removal of combining marks, so "Élysée" equals "elysee".
func Normalize(s string) string {
	// cases.Fold is stateful, build the chain per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// MatchesAccepted reports whether a submitted text answer matches one of the
// question's accepted answers under Normalize.
func MatchesAccepted(q *model.Question, answer string) bool {
	folded := Normalize(answer)
	for _, a := range q.Accepted {
		if Normalize(a) == folded {
			return true
		}
	}
	return false
}
