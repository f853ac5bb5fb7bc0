package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hactazia/quiznet/internal/account"
	"github.com/hactazia/quiznet/internal/game"
	"github.com/hactazia/quiznet/internal/metrics"
	"github.com/hactazia/quiznet/internal/model"
	"github.com/hactazia/quiznet/internal/protocol"
	"github.com/hactazia/quiznet/internal/question"
)

// reply encodes and queues one response for the client.
func (s *Server) reply(c *Client, msg any) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		slog.Error("encode response failed", "error", err)
		return
	}
	c.Send(payload)
}

// dispatch routes one parsed request. Every request gets exactly one
// response; a corrupt request from one client never affects another.
func (s *Server) dispatch(c *Client, req *protocol.Request) {
	slog.Debug("request", "client", c.ID(), "method", req.Method, "endpoint", req.Endpoint)

	switch req.Method {
	case protocol.MethodPost:
		switch req.Endpoint {
		case protocol.EndpointRegister:
			s.handleRegister(c, req)
		case protocol.EndpointLogin:
			s.handleLogin(c, req)
		case protocol.EndpointSessionCreate:
			s.handleCreateSession(c, req)
		case protocol.EndpointSessionJoin:
			s.handleJoinSession(c, req)
		case protocol.EndpointSessionStart:
			// The only POST whose body goes unread.
			s.handleStartSession(c)
		case protocol.EndpointAnswer:
			s.handleAnswer(c, req)
		case protocol.EndpointJokerUse:
			s.handleJoker(c, req)
		default:
			slog.Debug("unknown POST endpoint", "endpoint", req.Endpoint)
			s.reply(c, protocol.UnknownError())
		}
	case protocol.MethodGet:
		switch req.Endpoint {
		case protocol.EndpointThemesList:
			s.handleThemesList(c)
		case protocol.EndpointSessionsList:
			s.handleSessionsList(c)
		default:
			slog.Debug("unknown GET endpoint", "endpoint", req.Endpoint)
			s.reply(c, protocol.UnknownError())
		}
	default:
		slog.Debug("unknown method", "method", req.Method)
		s.reply(c, protocol.BadRequest())
	}
}

func (s *Server) handleRegister(c *Client, req *protocol.Request) {
	var body protocol.CredentialsRequest
	if req.DecodeBody(&body) != nil || body.Pseudo == nil || body.Password == nil {
		s.reply(c, protocol.BadRequest())
		return
	}
	pseudo := *body.Pseudo
	if pseudo == "" || len(pseudo) > model.MaxPseudoLen {
		s.reply(c, protocol.Result(protocol.EndpointRegister, protocol.StatusBadRequest, "invalid pseudo"))
		return
	}

	err := s.accounts.Register(context.Background(), pseudo, *body.Password)
	switch {
	case errors.Is(err, account.ErrPseudoTaken):
		s.reply(c, protocol.Result(protocol.EndpointRegister, protocol.StatusConflict, "pseudo already exists"))
	case errors.Is(err, account.ErrStoreFull):
		s.reply(c, protocol.Result(protocol.EndpointRegister, protocol.StatusBadRequest, "too many accounts"))
	case err != nil:
		slog.Error("register failed", "pseudo", pseudo, "error", err)
		s.reply(c, protocol.UnknownError())
	default:
		slog.Info("player registered", "pseudo", pseudo)
		s.reply(c, protocol.Result(protocol.EndpointRegister, protocol.StatusCreated, "player registered successfully"))
	}
}

func (s *Server) handleLogin(c *Client, req *protocol.Request) {
	var body protocol.CredentialsRequest
	if req.DecodeBody(&body) != nil || body.Pseudo == nil || body.Password == nil {
		s.reply(c, protocol.BadRequest())
		return
	}

	err := s.accounts.Authenticate(context.Background(), *body.Pseudo, *body.Password)
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		s.reply(c, protocol.Result(protocol.EndpointLogin, protocol.StatusUnauthorized, "invalid credentials"))
	case err != nil:
		slog.Error("login failed", "pseudo", *body.Pseudo, "error", err)
		s.reply(c, protocol.UnknownError())
	default:
		c.SetPseudo(*body.Pseudo)
		c.SetAuthenticated(true)
		slog.Info("player logged in", "id", c.ID(), "pseudo", *body.Pseudo)
		s.reply(c, protocol.Result(protocol.EndpointLogin, protocol.StatusOK, "login successful"))
	}
}

func (s *Server) handleThemesList(c *Client) {
	themes := s.bank.Themes()
	entries := make([]protocol.ThemeEntry, 0, len(themes))
	for _, t := range themes {
		entries = append(entries, protocol.ThemeEntry{ID: t.ID, Name: t.Name})
	}
	s.reply(c, protocol.ThemesList{
		Head:     protocol.Result(protocol.EndpointThemesList, protocol.StatusOK, "ok"),
		NbThemes: len(entries),
		Themes:   entries,
	})
}

func (s *Server) handleSessionsList(c *Client) {
	list := s.games.ListWaiting()
	s.reply(c, protocol.SessionsList{
		Head:       protocol.Result(protocol.EndpointSessionsList, protocol.StatusOK, "ok"),
		NbSessions: len(list),
		Sessions:   list,
	})
}

func (s *Server) handleCreateSession(c *Client, req *protocol.Request) {
	var body protocol.CreateSessionRequest
	if req.DecodeBody(&body) != nil {
		s.reply(c, protocol.BadRequest())
		return
	}
	if !c.Authenticated() {
		s.reply(c, protocol.Result(protocol.EndpointSessionCreate, protocol.StatusUnauthorized, "not authenticated"))
		return
	}
	if c.SessionID() != 0 {
		s.reply(c, protocol.Result(protocol.EndpointSessionCreate, protocol.StatusBadRequest, "already in a session"))
		return
	}
	if body.Name == nil || len(body.ThemeIDs) == 0 || body.Difficulty == nil ||
		len(body.NbQuestions) == 0 || len(body.TimeLimit) == 0 || body.Mode == nil ||
		len(body.MaxPlayers) == 0 {
		s.reply(c, protocol.BadRequest())
		return
	}

	mode, err := model.ParseMode(*body.Mode)
	if err != nil {
		s.reply(c, protocol.Result(protocol.EndpointSessionCreate, protocol.StatusBadRequest, "invalid parameters"))
		return
	}

	lives := 0
	if mode == model.ModeBattle {
		f, ok := protocol.Number(body.Lives)
		if !ok {
			s.reply(c, protocol.Result(protocol.EndpointSessionCreate, protocol.StatusBadRequest, "lives required for battle mode"))
			return
		}
		lives = int(f)
		if lives < model.MinLives || lives > model.MaxLives {
			s.reply(c, protocol.Result(protocol.EndpointSessionCreate, protocol.StatusBadRequest, "lives must be between 1 and 10"))
			return
		}
	}

	// Non-numeric values read as zero and fail the range checks below.
	nbF, _ := protocol.Number(body.NbQuestions)
	tlF, _ := protocol.Number(body.TimeLimit)
	mpF, _ := protocol.Number(body.MaxPlayers)
	nbQuestions, timeLimit, maxPlayers := int(nbF), int(tlF), int(mpF)

	if nbQuestions < model.MinQuestions || nbQuestions > model.MaxQuestions ||
		timeLimit < model.MinTimeLimit || timeLimit > model.MaxTimeLimit ||
		maxPlayers < model.MinSessionPlayers || maxPlayers > model.MaxSessionPlayers {
		s.reply(c, protocol.Result(protocol.EndpointSessionCreate, protocol.StatusBadRequest, "invalid parameters"))
		return
	}

	cfg := game.Settings{
		Name:        *body.Name,
		ThemeIDs:    protocol.Ints(body.ThemeIDs),
		Difficulty:  model.ParseDifficulty(*body.Difficulty),
		NbQuestions: nbQuestions,
		TimeLimit:   timeLimit,
		Mode:        mode,
		Lives:       lives,
		MaxPlayers:  maxPlayers,
	}

	sess, err := s.games.Create(c.ID(), c.Pseudo(), cfg)
	switch {
	case errors.Is(err, game.ErrTooManySessions):
		s.reply(c, protocol.Result(protocol.EndpointSessionCreate, protocol.StatusBadRequest, game.ErrTooManySessions.Error()))
		return
	case errors.Is(err, question.ErrNotEnoughQuestions):
		s.reply(c, protocol.Result(protocol.EndpointSessionCreate, protocol.StatusBadRequest, question.ErrNotEnoughQuestions.Error()))
		return
	case err != nil:
		slog.Error("create session failed", "pseudo", c.Pseudo(), "error", err)
		s.reply(c, protocol.UnknownError())
		return
	}

	c.SetSessionID(sess.ID())

	resp := protocol.SessionCreated{
		Head:      protocol.Result(protocol.EndpointSessionCreate, protocol.StatusCreated, "session created"),
		SessionID: sess.ID(),
		IsCreator: true,
		Jokers:    protocol.JokerState{Fifty: 1, Skip: 1},
	}
	if mode == model.ModeBattle {
		resp.Lives = lives
	}
	s.reply(c, resp)
}

func (s *Server) handleJoinSession(c *Client, req *protocol.Request) {
	var body protocol.JoinSessionRequest
	if req.DecodeBody(&body) != nil {
		s.reply(c, protocol.BadRequest())
		return
	}
	if !c.Authenticated() {
		s.reply(c, protocol.Result(protocol.EndpointSessionJoin, protocol.StatusUnauthorized, "not authenticated"))
		return
	}
	idF, ok := protocol.Number(body.SessionID)
	if !ok {
		s.reply(c, protocol.BadRequest())
		return
	}
	if c.SessionID() != 0 {
		s.reply(c, protocol.Result(protocol.EndpointSessionJoin, protocol.StatusBadRequest, "cannot join session"))
		return
	}

	sess, players, err := s.games.Join(int64(idF), c.ID(), c.Pseudo())
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		s.reply(c, protocol.Result(protocol.EndpointSessionJoin, protocol.StatusNotFound, "session not found"))
		return
	case errors.Is(err, game.ErrSessionFull):
		s.reply(c, protocol.Result(protocol.EndpointSessionJoin, protocol.StatusForbidden, "session is full"))
		return
	case err != nil:
		s.reply(c, protocol.Result(protocol.EndpointSessionJoin, protocol.StatusBadRequest, "cannot join session"))
		return
	}

	c.SetSessionID(sess.ID())

	resp := protocol.SessionJoined{
		Head:      protocol.Result(protocol.EndpointSessionJoin, protocol.StatusCreated, "session joined"),
		SessionID: sess.ID(),
		Mode:      sess.Mode().String(),
		IsCreator: sess.IsCreator(c.ID()),
		Players:   players,
		Jokers:    protocol.JokerState{Fifty: 1, Skip: 1},
	}
	if sess.Mode() == model.ModeBattle {
		resp.Lives = sess.InitialLives()
	}
	s.reply(c, resp)
}

func (s *Server) handleStartSession(c *Client) {
	sessionID := c.SessionID()
	if sessionID == 0 {
		s.reply(c, protocol.Result(protocol.EndpointSessionStart, protocol.StatusBadRequest, "not in a session"))
		return
	}

	err := s.games.Start(sessionID, c.ID())
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		s.reply(c, protocol.Result(protocol.EndpointSessionStart, protocol.StatusNotFound, "session not found"))
	case errors.Is(err, game.ErrNotCreator):
		s.reply(c, protocol.Result(protocol.EndpointSessionStart, protocol.StatusForbidden, game.ErrNotCreator.Error()))
	case errors.Is(err, game.ErrAlreadyStarted):
		s.reply(c, protocol.Result(protocol.EndpointSessionStart, protocol.StatusBadRequest, game.ErrAlreadyStarted.Error()))
	case errors.Is(err, game.ErrNotEnoughPlayers):
		s.reply(c, protocol.Result(protocol.EndpointSessionStart, protocol.StatusBadRequest, game.ErrNotEnoughPlayers.Error()))
	case err != nil:
		slog.Error("start session failed", "sessionID", sessionID, "error", err)
		s.reply(c, protocol.UnknownError())
	default:
		s.reply(c, protocol.Result(protocol.EndpointSessionStart, protocol.StatusOK, "session starting"))
	}
}

func (s *Server) handleAnswer(c *Client, req *protocol.Request) {
	var body protocol.AnswerRequest
	if req.DecodeBody(&body) != nil {
		s.reply(c, protocol.BadRequest())
		return
	}
	sessionID := c.SessionID()
	if sessionID == 0 {
		s.reply(c, protocol.Result(protocol.EndpointAnswer, protocol.StatusBadRequest, "not in a session"))
		return
	}
	if !s.games.IsPlaying(sessionID) {
		s.reply(c, protocol.Result(protocol.EndpointAnswer, protocol.StatusBadRequest, "session not playing"))
		return
	}
	if len(body.ResponseTime) == 0 {
		s.reply(c, protocol.BadRequest())
		return
	}

	// A non-numeric responseTime reads as zero; the engine clamps it.
	rt, _ := protocol.Number(body.ResponseTime)
	s.games.SubmitAnswer(sessionID, c.ID(), parseAnswer(body.Answer), rt)
	metrics.AnswersReceived.Inc()

	// Acknowledged unconditionally; late or duplicate answers are dropped
	// by the engine without a word.
	s.reply(c, protocol.Result(protocol.EndpointAnswer, protocol.StatusOK, "answer received"))
}

// parseAnswer maps the raw answer value on its JSON type: a number is an
// option index, a string a free-text answer, a bool a true/false answer.
// Anything else leaves the zero answer, which never matches.
func parseAnswer(raw json.RawMessage) game.Answer {
	ans := game.Answer{Index: model.AnswerNone}
	if len(raw) == 0 {
		return ans
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return ans
	}
	switch t := v.(type) {
	case float64:
		ans.Index = int(t)
	case string:
		ans.Text = t
	case bool:
		ans.Bool = t
	}
	return ans
}

func (s *Server) handleJoker(c *Client, req *protocol.Request) {
	var body protocol.JokerRequest
	if req.DecodeBody(&body) != nil {
		s.reply(c, protocol.BadRequest())
		return
	}
	sessionID := c.SessionID()
	if sessionID == 0 {
		s.reply(c, protocol.Result(protocol.EndpointJokerUse, protocol.StatusBadRequest, "not in a session"))
		return
	}
	if !s.games.IsPlaying(sessionID) {
		s.reply(c, protocol.Result(protocol.EndpointJokerUse, protocol.StatusBadRequest, "session not playing"))
		return
	}
	if body.Type == nil {
		s.reply(c, protocol.BadRequest())
		return
	}
	if !s.games.IsMember(sessionID, c.ID()) {
		s.reply(c, protocol.Result(protocol.EndpointJokerUse, protocol.StatusBadRequest, "player not found"))
		return
	}

	switch *body.Type {
	case protocol.JokerFifty:
		remaining, jokers, err := s.games.UseFifty(sessionID, c.ID())
		if err != nil {
			s.reply(c, protocol.Result(protocol.EndpointJokerUse, protocol.StatusBadRequest, game.ErrJokerUnavailable.Error()))
			return
		}
		s.reply(c, protocol.JokerUsed{
			Head:             protocol.Result(protocol.EndpointJokerUse, protocol.StatusOK, "joker activated"),
			RemainingAnswers: remaining,
			Jokers:           jokers,
		})
	case protocol.JokerSkip:
		jokers, err := s.games.UseSkip(sessionID, c.ID())
		if err != nil {
			s.reply(c, protocol.Result(protocol.EndpointJokerUse, protocol.StatusBadRequest, game.ErrJokerUnavailable.Error()))
			return
		}
		s.reply(c, protocol.JokerUsed{
			Head:   protocol.Result(protocol.EndpointJokerUse, protocol.StatusOK, "question skipped"),
			Jokers: jokers,
		})
	default:
		s.reply(c, protocol.Result(protocol.EndpointJokerUse, protocol.StatusBadRequest, "unknown joker type"))
	}
}
