// Package game implements the quiz session engine: the session table, the
// per-session game state, and the lifecycle goroutine driving countdown,
// question timing, results and elimination.
package game

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hactazia/quiznet/internal/model"
	"github.com/hactazia/quiznet/internal/protocol"
	"github.com/hactazia/quiznet/internal/question"
)

// Settings fixes a session's parameters at creation time.
type Settings struct {
	Name        string
	ThemeIDs    []int
	Difficulty  model.Difficulty
	NbQuestions int
	TimeLimit   int
	Mode        model.Mode
	Lives       int // battle only, zero in solo
	MaxPlayers  int
}

// Player is one session member's game state. ClientID and Pseudo are fixed
// at join time; everything else belongs to the session lock.
type Player struct {
	ClientID int64
	Pseudo   string

	score          int
	correctAnswers int
	lives          int

	hasAnswered  bool
	wasCorrect   bool
	answer       int // option index, 0/1 for booleans, AnswerNone, AnswerSkipped
	responseTime float64
	eliminated   bool
	eliminatedAt int // 1-based question number, zero while alive

	fiftyUsed    bool
	skipUsed     bool
	skippedThis  bool
}

func newPlayer(clientID int64, pseudo string, lives int) *Player {
	return &Player{
		ClientID: clientID,
		Pseudo:   pseudo,
		lives:    lives,
		answer:   model.AnswerNone,
	}
}

// jokerState reports the remaining uses after any mutation.
func (p *Player) jokerState() protocol.JokerState {
	var js protocol.JokerState
	if !p.fiftyUsed {
		js.Fifty = 1
	}
	if !p.skipUsed {
		js.Skip = 1
	}
	return js
}

// Answer is one submitted answer, already dispatched by its JSON type.
// Index is AnswerNone unless the client sent a number.
type Answer struct {
	Index int
	Text  string
	Bool  bool
}

// Session is one game instance from waiting through finished. The settings
// and the question selection are immutable after construction.
type Session struct {
	id        int64
	settings  Settings
	questions []*model.Question

	mu            sync.Mutex
	status        model.SessionStatus
	creatorID     int64
	players       []*Player // join order
	current       int       // -1 before the first dispatch
	answersOpen   bool
	questionStart time.Time

	// answered wakes the lifecycle goroutine when the last pending answer
	// lands. Buffered so the signal never blocks an intake path.
	answered chan struct{}

	// cancelCh closes exactly once when the session finishes.
	cancelCh   chan struct{}
	finishOnce sync.Once

	// sendMu serializes event delivery; nothing follows the finished event.
	sendMu     sync.Mutex
	sendClosed bool
}

func newSession(id int64, cfg Settings, questions []*model.Question, creatorID int64, creatorPseudo string) *Session {
	s := &Session{
		id:        id,
		settings:  cfg,
		questions: questions,
		status:    model.StatusWaiting,
		creatorID: creatorID,
		current:   -1,
		answered:  make(chan struct{}, 1),
		cancelCh:  make(chan struct{}),
	}
	s.players = append(s.players, newPlayer(creatorID, creatorPseudo, cfg.Lives))
	return s
}

// ID returns the session id.
func (s *Session) ID() int64 { return s.id }

// Name returns the display name.
func (s *Session) Name() string { return s.settings.Name }

// Mode returns the game mode.
func (s *Session) Mode() model.Mode { return s.settings.Mode }

// InitialLives returns the per-player lives budget, zero in solo mode.
func (s *Session) InitialLives() int { return s.settings.Lives }

// TimeLimit returns the per-question limit in seconds.
func (s *Session) TimeLimit() int { return s.settings.TimeLimit }

// Status returns the current lifecycle state.
func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsCreator reports whether clientID currently owns the session.
func (s *Session) IsCreator(clientID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creatorID == clientID
}

// Players returns the member pseudos in join order.
func (s *Session) Players() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.players))
	for i, p := range s.players {
		out[i] = p.Pseudo
	}
	return out
}

func (s *Session) isMember(clientID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerLocked(clientID) != nil
}

func (s *Session) memberIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberIDsLocked()
}

func (s *Session) memberIDsLocked() []int64 {
	ids := make([]int64, len(s.players))
	for i, p := range s.players {
		ids[i] = p.ClientID
	}
	return ids
}

func (s *Session) playerLocked(clientID int64) *Player {
	for _, p := range s.players {
		if p.ClientID == clientID {
			return p
		}
	}
	return nil
}

// signalAnswered wakes the lifecycle goroutine without ever blocking.
func (s *Session) signalAnswered() {
	select {
	case s.answered <- struct{}{}:
	default:
	}
}

// join admits a client while the session is waiting and has room. It
// returns the ids to notify and the new player count.
func (s *Session) join(clientID int64, pseudo string) (others []int64, count int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != model.StatusWaiting {
		return nil, 0, ErrNotJoinable
	}
	if len(s.players) >= s.settings.MaxPlayers {
		return nil, 0, ErrSessionFull
	}
	if s.playerLocked(clientID) != nil {
		return nil, 0, ErrNotJoinable
	}
	others = s.memberIDsLocked()
	s.players = append(s.players, newPlayer(clientID, pseudo, s.settings.Lives))
	return others, len(s.players), nil
}

// leaveResult captures what a removal changed while the lock was held.
type leaveResult struct {
	pseudo      string
	remaining   []int64
	empty       bool
	endGame     bool // one player left mid-game
	allAnswered bool // the leaver was the last one everyone waited on
}

// removePlayer drops a member, shifting successors to keep join order and
// handing creatorship to the first remaining player if needed.
func (s *Session) removePlayer(clientID int64) (leaveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.players {
		if p.ClientID == clientID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return leaveResult{}, false
	}

	res := leaveResult{pseudo: s.players[idx].Pseudo}
	s.players = append(s.players[:idx], s.players[idx+1:]...)

	if clientID == s.creatorID && len(s.players) > 0 {
		s.creatorID = s.players[0].ClientID
	}

	res.remaining = s.memberIDsLocked()
	res.empty = len(s.players) == 0
	res.endGame = len(s.players) == 1 && s.status == model.StatusPlaying
	if s.status == model.StatusPlaying && !res.empty && !res.endGame {
		res.allAnswered = s.allAnsweredLocked()
	}
	return res, true
}

func (s *Session) allAnsweredLocked() bool {
	for _, p := range s.players {
		if !p.eliminated && !p.hasAnswered {
			return false
		}
	}
	return true
}

// start flips the session to playing. The question index stays at -1 until
// the first dispatch, so nothing is answerable during the countdown.
func (s *Session) start(clientID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clientID != s.creatorID {
		return ErrNotCreator
	}
	if s.status != model.StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(s.players) < model.MinSessionPlayers {
		return ErrNotEnoughPlayers
	}
	s.status = model.StatusPlaying
	s.current = -1
	return nil
}

// submitAnswer records one answer. Repeats, eliminated players and answers
// outside the open window are silently ignored; the dispatcher has already
// acknowledged receipt either way. Reports whether everyone still in play
// has now answered.
func (s *Session) submitAnswer(clientID int64, ans Answer, responseTime float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.playerLocked(clientID)
	if p == nil || p.hasAnswered || p.eliminated || !s.answersOpen {
		return false
	}

	limit := float64(s.settings.TimeLimit) + 1
	if responseTime < 0 || responseTime > limit {
		responseTime = limit
	}
	if time.Since(s.questionStart).Seconds() > limit {
		responseTime = limit
	}

	p.hasAnswered = true
	p.answer = ans.Index
	p.responseTime = responseTime

	q := s.questions[s.current]
	var correct bool
	switch q.Kind {
	case model.KindText:
		correct = question.MatchesAccepted(q, ans.Text)
	case model.KindBoolean:
		correct = ans.Bool == q.CorrectBool
		if ans.Bool {
			p.answer = 1
		} else {
			p.answer = 0
		}
	default:
		correct = ans.Index == q.CorrectIndex
	}
	if correct {
		p.score += question.Points(q.Difficulty, responseTime, s.settings.TimeLimit)
		p.correctAnswers++
	}
	p.wasCorrect = correct

	return s.allAnsweredLocked()
}

// applyFifty burns the fifty joker on a multiple-choice question: two of
// the three wrong options are removed uniformly at random and the two
// survivors are returned in stored order.
func (s *Session) applyFifty(clientID int64) ([]string, protocol.JokerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.playerLocked(clientID)
	if p == nil || p.fiftyUsed || p.hasAnswered {
		return nil, protocol.JokerState{}, ErrJokerUnavailable
	}
	if !s.answersOpen {
		return nil, protocol.JokerState{}, ErrJokerUnavailable
	}
	q := s.questions[s.current]
	if q.Kind != model.KindQCM {
		return nil, protocol.JokerState{}, ErrJokerUnavailable
	}

	p.fiftyUsed = true

	wrong := make([]int, 0, len(q.Options))
	for i := range q.Options {
		if i != q.CorrectIndex {
			wrong = append(wrong, i)
		}
	}
	rand.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })

	remaining := make([]string, 0, 2)
	for i, opt := range q.Options {
		if i != wrong[0] && i != wrong[1] {
			remaining = append(remaining, opt)
		}
	}
	return remaining, p.jokerState(), nil
}

// applySkip burns the skip joker: the player counts as answered with the
// skip sentinel and is exempt from battle penalties this question.
func (s *Session) applySkip(clientID int64) (protocol.JokerState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.playerLocked(clientID)
	if p == nil || p.skipUsed || p.hasAnswered {
		return protocol.JokerState{}, false, ErrJokerUnavailable
	}
	if !s.answersOpen {
		return protocol.JokerState{}, false, ErrJokerUnavailable
	}

	p.skipUsed = true
	p.hasAnswered = true
	p.skippedThis = true
	p.answer = model.AnswerSkipped

	return p.jokerState(), s.allAnsweredLocked(), nil
}
