package game

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hactazia/quiznet/internal/model"
	"github.com/hactazia/quiznet/internal/protocol"
	"github.com/hactazia/quiznet/internal/question"
)

type wireEvent map[string]any

// stubBroadcaster records every delivered event per client.
type stubBroadcaster struct {
	mu     sync.Mutex
	events map[int64][]wireEvent
	ended  map[int64]int
}

func newStubBroadcaster() *stubBroadcaster {
	return &stubBroadcaster{
		events: make(map[int64][]wireEvent),
		ended:  make(map[int64]int),
	}
}

func (b *stubBroadcaster) Send(clientID int64, payload []byte) {
	var ev wireEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		panic(fmt.Sprintf("broadcast payload is not JSON: %v", err))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[clientID] = append(b.events[clientID], ev)
}

func (b *stubBroadcaster) SessionEnded(clientID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended[clientID]++
}

func (b *stubBroadcaster) endedCount(clientID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended[clientID]
}

// nth returns the n-th (1-based) event with the given action, if seen.
func (b *stubBroadcaster) nth(clientID int64, action string, n int) (wireEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := 0
	for _, ev := range b.events[clientID] {
		if ev["action"] == action {
			seen++
			if seen == n {
				return ev, true
			}
		}
	}
	return nil, false
}

func (b *stubBroadcaster) count(clientID int64, action string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events[clientID] {
		if ev["action"] == action {
			n++
		}
	}
	return n
}

// waitFor blocks until the n-th event with the given action reaches the
// client, failing the test after two seconds.
func (b *stubBroadcaster) waitFor(t *testing.T, clientID int64, action string, n int) wireEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := b.nth(clientID, action, n); ok {
			return ev
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no %s event #%d for client %d", action, n, clientID)
	return nil
}

// testBank builds a bank of n medium qcm questions on one theme. The
// correct option is always the last one, so index 3 is right and index 0
// is wrong for every question.
func testBank(t *testing.T, n int) *question.Bank {
	t.Helper()
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "go;moyen;qcm;question %d;a,b,c,d;3;\n", i+1)
	}
	b, err := question.Parse(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return b
}

// testManager wires a manager to a stub broadcaster with millisecond
// timings so full games finish quickly.
func testManager(t *testing.T, bank *question.Bank, lastPlayerPenalty bool) (*Manager, *stubBroadcaster) {
	t.Helper()
	b := newStubBroadcaster()
	m := NewManager(bank, b, lastPlayerPenalty)
	m.timeUnit = 10 * time.Millisecond
	m.countdown = 5 * time.Millisecond
	m.questionGap = 5 * time.Millisecond
	return m, b
}

func managerSettings(mode model.Mode, nbQuestions int) Settings {
	return Settings{
		Name:        "lan party",
		ThemeIDs:    []int{0},
		Difficulty:  model.DifficultyMedium,
		NbQuestions: nbQuestions,
		TimeLimit:   30,
		Mode:        mode,
		Lives:       1,
		MaxPlayers:  4,
	}
}

func TestManager_Create(t *testing.T) {
	m, _ := testManager(t, testBank(t, 4), false)

	s, err := m.Create(1, "alice", managerSettings(model.ModeBattle, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, s.Players())
	assert.True(t, s.IsCreator(1))
	assert.Equal(t, 1, s.InitialLives())
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, s, m.Get(s.ID()))
}

func TestManager_Create_SoloIgnoresLives(t *testing.T) {
	m, _ := testManager(t, testBank(t, 4), false)

	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)
	assert.Zero(t, s.InitialLives())
}

func TestManager_Create_NotEnoughQuestions(t *testing.T) {
	m, _ := testManager(t, testBank(t, 4), false)

	_, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 10))
	assert.ErrorIs(t, err, question.ErrNotEnoughQuestions)
	assert.Zero(t, m.Count())
}

func TestManager_Create_TableFull(t *testing.T) {
	m, _ := testManager(t, testBank(t, 4), false)

	for i := range model.MaxSessions {
		_, err := m.Create(int64(i+1), fmt.Sprintf("player%d", i), managerSettings(model.ModeSolo, 2))
		require.NoError(t, err)
	}

	_, err := m.Create(99, "late", managerSettings(model.ModeSolo, 2))
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, model.MaxSessions, m.Count())
}

func TestManager_Join(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)

	joined, players, err := m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)
	assert.Equal(t, s, joined)
	assert.Equal(t, []string{"alice", "bob"}, players)

	ev := b.waitFor(t, 1, protocol.EventPlayerJoined, 1)
	assert.Equal(t, "bob", ev["pseudo"])
	assert.Equal(t, float64(2), ev["nbPlayers"])
	assert.Zero(t, b.count(2, protocol.EventPlayerJoined), "joiner gets the response, not the event")
}

func TestManager_Join_NotFound(t *testing.T) {
	m, _ := testManager(t, testBank(t, 4), false)

	_, _, err := m.Join(404, 1, "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_Leave_Notifies(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)
	_, _, err = m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)

	m.Leave(s.ID(), 2)

	ev := b.waitFor(t, 1, protocol.EventPlayerLeft, 1)
	assert.Equal(t, "bob", ev["pseudo"])
	assert.Equal(t, "disconnected", ev["reason"])
	assert.Equal(t, 1, m.Count(), "session stays while members remain")
}

func TestManager_Leave_LastPlayerDropsSession(t *testing.T) {
	m, _ := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)

	m.Leave(s.ID(), 1)

	assert.Eventually(t, func() bool { return m.Get(s.ID()) == nil },
		time.Second, 2*time.Millisecond, "emptied session should be discarded")
}

func TestManager_Start(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)
	_, _, err = m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, m.Start(404, 1), ErrSessionNotFound)
	assert.ErrorIs(t, m.Start(s.ID(), 2), ErrNotCreator)

	require.NoError(t, m.Start(s.ID(), 1))
	assert.True(t, m.IsPlaying(s.ID()))

	ev := b.waitFor(t, 2, protocol.EventSessionStarted, 1)
	assert.Equal(t, float64(3), ev["countdown"])
}

func TestManager_RunSolo_FullGame(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)
	_, _, err = m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)
	require.NoError(t, m.Start(s.ID(), 1))

	for round := 1; round <= 2; round++ {
		q := b.waitFor(t, 1, protocol.EventQuestionNew, round)
		assert.Equal(t, float64(round), q["questionNum"])
		assert.Equal(t, float64(2), q["totalQuestions"])

		m.SubmitAnswer(s.ID(), 1, Answer{Index: 3}, 1.0)
		m.SubmitAnswer(s.ID(), 2, Answer{Index: 0}, 2.0)

		res := b.waitFor(t, 1, protocol.EventQuestionResults, round)
		rows := res["results"].([]any)
		require.Len(t, rows, 2)
	}

	fin := b.waitFor(t, 2, protocol.EventSessionFinished, 1)
	assert.Equal(t, "solo", fin["mode"])
	ranking := fin["ranking"].([]any)
	require.Len(t, ranking, 2)
	first := ranking[0].(map[string]any)
	assert.Equal(t, "alice", first["pseudo"])
	assert.Equal(t, float64(26), first["score"], "two fast correct answers at medium difficulty")

	assert.Eventually(t, func() bool { return m.Get(s.ID()) == nil },
		time.Second, 2*time.Millisecond, "finished session should leave the table")
	assert.Equal(t, 1, b.endedCount(1))
	assert.Equal(t, 1, b.endedCount(2))
}

func TestManager_RunBattle_Elimination(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeBattle, 2))
	require.NoError(t, err)
	_, _, err = m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)
	require.NoError(t, m.Start(s.ID(), 1))

	b.waitFor(t, 1, protocol.EventQuestionNew, 1)
	m.SubmitAnswer(s.ID(), 1, Answer{Index: 3}, 1.0)
	m.SubmitAnswer(s.ID(), 2, Answer{Index: 0}, 2.0)

	ev := b.waitFor(t, 1, protocol.EventPlayerEliminated, 1)
	assert.Equal(t, "bob", ev["pseudo"])

	fin := b.waitFor(t, 1, protocol.EventSessionFinished, 1)
	assert.Equal(t, "battle", fin["mode"])
	assert.Equal(t, "alice", fin["winner"])
	assert.Equal(t, 1, b.count(1, protocol.EventQuestionNew),
		"battle ends as soon as one player stands")

	ranking := fin["ranking"].([]any)
	require.Len(t, ranking, 2)
	last := ranking[1].(map[string]any)
	assert.Equal(t, "bob", last["pseudo"])
	assert.Equal(t, float64(1), last["eliminatedAt"])
}

func TestManager_Run_Timeout(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	cfg := managerSettings(model.ModeSolo, 2)
	cfg.TimeLimit = 1
	s, err := m.Create(1, "alice", cfg)
	require.NoError(t, err)
	_, _, err = m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)
	require.NoError(t, m.Start(s.ID(), 1))

	// Nobody answers: the timer must close both rounds on its own.
	res := b.waitFor(t, 1, protocol.EventQuestionResults, 1)
	for _, row := range res["results"].([]any) {
		r := row.(map[string]any)
		assert.Equal(t, false, r["correct"])
		assert.Equal(t, float64(model.AnswerNone), r["answer"])
	}

	b.waitFor(t, 1, protocol.EventSessionFinished, 1)
}

func TestManager_Skip_CompletesRound(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)
	_, _, err = m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)
	require.NoError(t, m.Start(s.ID(), 1))

	b.waitFor(t, 1, protocol.EventQuestionNew, 1)
	m.SubmitAnswer(s.ID(), 1, Answer{Index: 3}, 1.0)

	js, err := m.UseSkip(s.ID(), 2)
	require.NoError(t, err)
	assert.Zero(t, js.Skip)

	res := b.waitFor(t, 1, protocol.EventQuestionResults, 1)
	rows := res["results"].([]any)
	bob := rows[1].(map[string]any)
	assert.Equal(t, float64(model.AnswerSkipped), bob["answer"])
}

func TestManager_UseFifty(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)
	_, _, err = m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)
	require.NoError(t, m.Start(s.ID(), 1))

	b.waitFor(t, 1, protocol.EventQuestionNew, 1)

	remaining, js, err := m.UseFifty(s.ID(), 1)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
	assert.Contains(t, remaining, "d")
	assert.Zero(t, js.Fifty)

	_, _, err = m.UseFifty(404, 1)
	assert.ErrorIs(t, err, ErrJokerUnavailable)
}

func TestManager_Leave_MidGameFinishes(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)
	_, _, err = m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)
	require.NoError(t, m.Start(s.ID(), 1))

	b.waitFor(t, 1, protocol.EventQuestionNew, 1)
	m.Leave(s.ID(), 2)

	fin := b.waitFor(t, 1, protocol.EventSessionFinished, 1)
	ranking := fin["ranking"].([]any)
	require.Len(t, ranking, 1, "only the remaining player is ranked")
	assert.Eventually(t, func() bool { return m.Get(s.ID()) == nil },
		time.Second, 2*time.Millisecond)
}

func TestManager_NothingAfterFinished(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)
	_, _, err = m.Join(s.ID(), 2, "bob")
	require.NoError(t, err)
	require.NoError(t, m.Start(s.ID(), 1))

	b.waitFor(t, 1, protocol.EventQuestionNew, 1)
	m.Leave(s.ID(), 2)
	b.waitFor(t, 1, protocol.EventSessionFinished, 1)

	// The run goroutine is still unwinding; give it room to misbehave.
	time.Sleep(50 * time.Millisecond)
	b.mu.Lock()
	events := b.events[1]
	lastAction := events[len(events)-1]["action"]
	b.mu.Unlock()
	assert.Equal(t, protocol.EventSessionFinished, lastAction,
		"no event may trail the finished message")
}

func TestManager_IsMember(t *testing.T) {
	m, _ := testManager(t, testBank(t, 4), false)
	s, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)

	assert.True(t, m.IsMember(s.ID(), 1))
	assert.False(t, m.IsMember(s.ID(), 2))
	assert.False(t, m.IsMember(404, 1))
}

func TestManager_ListWaiting(t *testing.T) {
	m, _ := testManager(t, testBank(t, 4), false)

	s1, err := m.Create(1, "alice", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)
	s2, err := m.Create(2, "bob", managerSettings(model.ModeBattle, 2))
	require.NoError(t, err)
	s3, err := m.Create(3, "carol", managerSettings(model.ModeSolo, 2))
	require.NoError(t, err)

	_, _, err = m.Join(s2.ID(), 4, "dave")
	require.NoError(t, err)
	require.NoError(t, m.Start(s2.ID(), 2))

	list := m.ListWaiting()
	require.Len(t, list, 2, "running sessions are not joinable")
	assert.Equal(t, s1.ID(), list[0].ID)
	assert.Equal(t, s3.ID(), list[1].ID)
	assert.Equal(t, "lan party", list[0].Name)
	assert.Equal(t, []string{"go"}, list[0].ThemeNames)
	assert.Equal(t, 1, list[0].NbPlayers)
}

func TestManager_ConcurrentAnswers(t *testing.T) {
	m, b := testManager(t, testBank(t, 4), false)
	cfg := managerSettings(model.ModeSolo, 2)
	cfg.MaxPlayers = 10
	s, err := m.Create(1, "player0", cfg)
	require.NoError(t, err)
	for i := 1; i < 8; i++ {
		_, _, err := m.Join(s.ID(), int64(i+1), fmt.Sprintf("player%d", i))
		require.NoError(t, err)
	}
	require.NoError(t, m.Start(s.ID(), 1))
	b.waitFor(t, 1, protocol.EventQuestionNew, 1)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.SubmitAnswer(s.ID(), id, Answer{Index: 3}, 1.0)
		}(int64(i + 1))
	}
	wg.Wait()

	res := b.waitFor(t, 1, protocol.EventQuestionResults, 1)
	rows := res["results"].([]any)
	require.Len(t, rows, 8)
	for _, row := range rows {
		r := row.(map[string]any)
		assert.Equal(t, true, r["correct"])
	}
}
