package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDifficultyBilingual(t *testing.T) {
	tests := []struct {
		in   string
		want Difficulty
	}{
		{"facile", DifficultyEasy},
		{"easy", DifficultyEasy},
		{"EASY", DifficultyEasy},
		{" Facile ", DifficultyEasy},
		{"moyen", DifficultyMedium},
		{"medium", DifficultyMedium},
		{"difficile", DifficultyHard},
		{"hard", DifficultyHard},
		{"HARD", DifficultyHard},
		{"", DifficultyMedium},
		{"nonsense", DifficultyMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseDifficulty(tt.in), "ParseDifficulty(%q)", tt.in)
	}
}

func TestDifficultySerializesFrench(t *testing.T) {
	assert.Equal(t, "facile", DifficultyEasy.String())
	assert.Equal(t, "moyen", DifficultyMedium.String())
	assert.Equal(t, "difficile", DifficultyHard.String())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("solo")
	require.NoError(t, err)
	assert.Equal(t, ModeSolo, m)

	m, err = ParseMode(" Battle ")
	require.NoError(t, err)
	assert.Equal(t, ModeBattle, m)

	_, err = ParseMode("coop")
	assert.Error(t, err)
	_, err = ParseMode("")
	assert.Error(t, err)
}

func TestParseQuestionKind(t *testing.T) {
	assert.Equal(t, KindQCM, ParseQuestionKind("qcm"))
	assert.Equal(t, KindBoolean, ParseQuestionKind("boolean"))
	assert.Equal(t, KindText, ParseQuestionKind("text"))
	assert.Equal(t, KindText, ParseQuestionKind("anything"))
}

func TestHasAnyTheme(t *testing.T) {
	q := &Question{ThemeIDs: []int{2, 5}}

	assert.True(t, q.HasAnyTheme([]int{5}))
	assert.True(t, q.HasAnyTheme([]int{0, 2}))
	assert.False(t, q.HasAnyTheme([]int{1, 3}))
	assert.False(t, q.HasAnyTheme(nil))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "waiting", StatusWaiting.String())
	assert.Equal(t, "playing", StatusPlaying.String())
	assert.Equal(t, "finished", StatusFinished.String())
}
