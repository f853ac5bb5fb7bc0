package game

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hactazia/quiznet/internal/metrics"
	"github.com/hactazia/quiznet/internal/model"
	"github.com/hactazia/quiznet/internal/protocol"
	"github.com/hactazia/quiznet/internal/question"
)

// Broadcaster delivers encoded events to connected clients and clears a
// client's session binding when its session ends. Send must not block:
// delivery goes through per-client send queues.
type Broadcaster interface {
	Send(clientID int64, payload []byte)
	SessionEnded(clientID int64)
}

// Manager owns the session table and every session's lifecycle goroutine.
// Thread-safe for concurrent access.
type Manager struct {
	bank      *question.Bank
	broadcast Broadcaster

	mu       sync.RWMutex
	sessions map[int64]*Session // sessionID → Session
	nextID   atomic.Int64

	// lastPlayerPenalty enables the battle rule that costs the slowest
	// correct answerer one extra life.
	lastPlayerPenalty bool

	// Timing knobs. Tests shorten these to avoid real sleeps.
	timeUnit    time.Duration // one second of question time
	countdown   time.Duration // pre-game pause
	questionGap time.Duration // reading pause between questions
}

// Option tunes a Manager at construction time.
type Option func(*Manager)

// WithTimings overrides the engine pacing: the duration of one second of
// question time, the pre-game countdown and the pause between questions.
func WithTimings(timeUnit, countdown, questionGap time.Duration) Option {
	return func(m *Manager) {
		m.timeUnit = timeUnit
		m.countdown = countdown
		m.questionGap = questionGap
	}
}

// NewManager creates the session manager.
func NewManager(bank *question.Bank, b Broadcaster, lastPlayerPenalty bool, opts ...Option) *Manager {
	m := &Manager{
		bank:              bank,
		broadcast:         b,
		sessions:          make(map[int64]*Session, model.MaxSessions),
		lastPlayerPenalty: lastPlayerPenalty,
		timeUnit:          time.Second,
		countdown:         3 * time.Second,
		questionGap:       5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create allocates a session, resolves its question selection and seats the
// creator as first player. No join event is emitted for the creator.
func (m *Manager) Create(clientID int64, pseudo string, cfg Settings) (*Session, error) {
	if cfg.Mode != model.ModeBattle {
		cfg.Lives = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= model.MaxSessions {
		return nil, ErrTooManySessions
	}
	questions, err := m.bank.Select(cfg.ThemeIDs, cfg.Difficulty, cfg.NbQuestions)
	if err != nil {
		return nil, err
	}

	id := m.nextID.Add(1)
	s := newSession(id, cfg, questions, clientID, pseudo)
	m.sessions[id] = s

	metrics.SessionsCreated.Inc()
	metrics.ActiveSessions.Inc()
	slog.Info("session created",
		"sessionID", id,
		"name", cfg.Name,
		"mode", cfg.Mode,
		"creator", pseudo)
	return s, nil
}

// Get returns a session by id, nil when absent.
func (m *Manager) Get(sessionID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Join seats a client in a waiting session and notifies the members
// already present. It returns the session and the full pseudo list, the
// joiner last.
func (m *Manager) Join(sessionID, clientID int64, pseudo string) (*Session, []string, error) {
	s := m.Get(sessionID)
	if s == nil {
		return nil, nil, ErrSessionNotFound
	}
	others, count, err := s.join(clientID, pseudo)
	if err != nil {
		return nil, nil, err
	}
	m.deliver(s, others, protocol.PlayerJoinedEvent{
		Action:    protocol.EventPlayerJoined,
		Pseudo:    pseudo,
		NbPlayers: count,
	}, false)
	slog.Info("player joined session", "sessionID", sessionID, "pseudo", pseudo, "players", count)
	return s, s.Players(), nil
}

// Leave removes a client from its session, notifying the remaining
// members. An emptied session is discarded; a running game left with one
// player ends immediately with full results.
func (m *Manager) Leave(sessionID, clientID int64) {
	s := m.Get(sessionID)
	if s == nil {
		return
	}
	res, ok := s.removePlayer(clientID)
	if !ok {
		return
	}
	m.deliver(s, res.remaining, protocol.PlayerLeftEvent{
		Action: protocol.EventPlayerLeft,
		Pseudo: res.pseudo,
		Reason: "disconnected",
	}, false)
	slog.Info("player left session", "sessionID", sessionID, "pseudo", res.pseudo)

	switch {
	case res.empty, res.endGame:
		m.finishSession(s)
	case res.allAnswered:
		s.signalAnswered()
	}
}

// Start validates the request and hands the session to its lifecycle
// goroutine.
func (m *Manager) Start(sessionID, clientID int64) error {
	s := m.Get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}
	if err := s.start(clientID); err != nil {
		return err
	}
	slog.Info("session starting", "sessionID", sessionID)
	go m.run(s)
	return nil
}

// SubmitAnswer feeds one answer into the session. Invalid submissions are
// dropped silently; the wire acknowledgement was already decided.
func (m *Manager) SubmitAnswer(sessionID, clientID int64, ans Answer, responseTime float64) {
	s := m.Get(sessionID)
	if s == nil {
		return
	}
	if s.submitAnswer(clientID, ans, responseTime) {
		s.signalAnswered()
	}
}

// UseFifty plays the fifty joker for clientID.
func (m *Manager) UseFifty(sessionID, clientID int64) ([]string, protocol.JokerState, error) {
	s := m.Get(sessionID)
	if s == nil {
		return nil, protocol.JokerState{}, ErrJokerUnavailable
	}
	return s.applyFifty(clientID)
}

// UseSkip plays the skip joker for clientID.
func (m *Manager) UseSkip(sessionID, clientID int64) (protocol.JokerState, error) {
	s := m.Get(sessionID)
	if s == nil {
		return protocol.JokerState{}, ErrJokerUnavailable
	}
	js, done, err := s.applySkip(clientID)
	if err != nil {
		return protocol.JokerState{}, err
	}
	if done {
		s.signalAnswered()
	}
	return js, nil
}

// IsPlaying reports whether the session exists and is mid-game.
func (m *Manager) IsPlaying(sessionID int64) bool {
	s := m.Get(sessionID)
	return s != nil && s.Status() == model.StatusPlaying
}

// IsMember reports whether clientID is seated in the session.
func (m *Manager) IsMember(sessionID, clientID int64) bool {
	s := m.Get(sessionID)
	return s != nil && s.isMember(clientID)
}

// ListWaiting summarizes joinable sessions in creation order.
func (m *Manager) ListWaiting() []protocol.SessionSummary {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].id < sessions[j].id })

	var out []protocol.SessionSummary
	for _, s := range sessions {
		if sum, ok := s.summary(m.bank); ok {
			out = append(out, sum)
		}
	}
	return out
}

// deliver serializes event delivery for one session. After a final event
// nothing else goes out, so clients never see anything trail the finished
// message.
func (m *Manager) deliver(s *Session, targets []int64, ev any, final bool) {
	payload, err := protocol.Encode(ev)
	if err != nil {
		slog.Error("encode event failed", "sessionID", s.id, "error", err)
		return
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return
	}
	if final {
		s.sendClosed = true
	}
	for _, id := range targets {
		m.broadcast.Send(id, payload)
	}
}

func (m *Manager) remove(sessionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; ok {
		delete(m.sessions, sessionID)
		metrics.ActiveSessions.Dec()
	}
}
