// Package question loads the quiz question bank and evaluates player answers.
package question

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/hactazia/quiznet/internal/model"
)

// ErrNotEnoughQuestions is returned by Select when fewer questions match the
// criteria than requested.
var ErrNotEnoughQuestions = errors.New("not enough questions matching criteria")

// Bank holds every loaded question and the themes discovered from them.
// Immutable after Load, safe for concurrent use.
type Bank struct {
	themes    []model.Theme
	questions []*model.Question
	byID      map[int]*model.Question
}

// Load reads the question file at path. See Parse for the record format.
func Load(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening question file: %w", err)
	}
	defer f.Close()

	b, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	slog.Info("question bank loaded", "file", path, "questions", len(b.questions), "themes", len(b.themes))
	return b, nil
}

// Parse reads question records from r, one per line:
//
//	themes;difficulty;type;question;answers;correct;explanation
//
// themes and qcm answers are comma-separated; for text questions the correct
// field holds comma-separated accepted answers. Semicolons after the sixth
// field belong to the explanation. Blank lines and lines starting with '#'
// are skipped. Lines with fewer than six fields consume a question ID but are
// dropped, so IDs follow file order even across malformed input.
func Parse(r io.Reader) (*Bank, error) {
	b := &Bank{byID: make(map[int]*model.Question)}
	themeIDs := make(map[string]int)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	nextID := 1
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id := nextID
		nextID++

		fields := strings.SplitN(line, ";", 7)
		if len(fields) < 6 {
			slog.Warn("skipping malformed question line", "id", id)
			continue
		}

		q := &model.Question{
			ID:         id,
			Difficulty: model.ParseDifficulty(fields[1]),
			Kind:       model.ParseQuestionKind(fields[2]),
			Prompt:     fields[3],
		}

		for _, name := range strings.Split(fields[0], ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			tid, ok := themeIDs[name]
			if !ok {
				tid = len(b.themes)
				themeIDs[name] = tid
				b.themes = append(b.themes, model.Theme{ID: tid, Name: name})
			}
			q.ThemeIDs = append(q.ThemeIDs, tid)
		}

		if q.Kind == model.KindQCM {
			q.Options = make([]string, model.QCMOptionCount)
			for i, opt := range strings.Split(fields[4], ",") {
				if i >= model.QCMOptionCount {
					break
				}
				q.Options[i] = opt
			}
		}

		switch q.Kind {
		case model.KindText:
			parts := strings.Split(fields[5], ",")
			for i, a := range parts {
				if i == len(parts)-1 && a == "" {
					break
				}
				q.Accepted = append(q.Accepted, a)
			}
		case model.KindBoolean:
			n, _ := strconv.Atoi(fields[5])
			q.CorrectBool = n == 1
		default:
			q.CorrectIndex, _ = strconv.Atoi(fields[5])
		}

		if len(fields) == 7 {
			q.Explanation = fields[6]
		}

		b.questions = append(b.questions, q)
		b.byID[q.ID] = q
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading question records: %w", err)
	}
	return b, nil
}

// Themes returns a snapshot copy of the discovered themes in ID order.
func (b *Bank) Themes() []model.Theme {
	out := make([]model.Theme, len(b.themes))
	copy(out, b.themes)
	return out
}

// ThemeName returns the display name for a theme ID, or "" if unknown.
func (b *Bank) ThemeName(id int) string {
	if id < 0 || id >= len(b.themes) {
		return ""
	}
	return b.themes[id].Name
}

// Get returns the question with the given ID, or nil.
func (b *Bank) Get(id int) *model.Question {
	return b.byID[id]
}

// Len returns the number of loaded questions.
func (b *Bank) Len() int {
	return len(b.questions)
}

// Select picks count distinct random questions that match the difficulty
// exactly and share at least one theme with themeIDs.
func (b *Bank) Select(themeIDs []int, d model.Difficulty, count int) ([]*model.Question, error) {
	matching := make([]*model.Question, 0, len(b.questions))
	for _, q := range b.questions {
		if q.Difficulty != d || !q.HasAnyTheme(themeIDs) {
			continue
		}
		matching = append(matching, q)
	}
	if len(matching) < count {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughQuestions, len(matching), count)
	}
	rand.Shuffle(len(matching), func(i, j int) {
		matching[i], matching[j] = matching[j], matching[i]
	})
	return matching[:count:count], nil
}
