package game

import (
	"log/slog"
	"sort"
	"time"

	"github.com/hactazia/quiznet/internal/metrics"
	"github.com/hactazia/quiznet/internal/model"
	"github.com/hactazia/quiznet/internal/protocol"
	"github.com/hactazia/quiznet/internal/question"
)

// run drives one session from countdown to final ranking. A round ends
// when every live player has answered or the question timer fires;
// cancelCh aborts the whole loop when the session is torn down early.
func (m *Manager) run(s *Session) {
	m.deliver(s, s.memberIDs(), protocol.SessionStartedEvent{
		Action:    protocol.EventSessionStarted,
		Message:   "session is starting",
		Countdown: 3,
	}, false)
	if !m.wait(s, m.countdown) {
		return
	}

	for {
		ev, recipients := s.dispatchNext()
		m.deliver(s, recipients, ev, false)
		metrics.QuestionsSent.Inc()
		slog.Debug("question dispatched", "sessionID", s.id, "questionNum", ev.QuestionNum)

		timer := time.NewTimer(time.Duration(s.settings.TimeLimit) * m.timeUnit)
		select {
		case <-s.answered:
			timer.Stop()
		case <-timer.C:
			s.recordTimeouts()
		case <-s.cancelCh:
			timer.Stop()
			return
		}

		results, eliminated, members, gameOver := s.buildResults(m.lastPlayerPenalty)
		m.deliver(s, members, results, false)
		for _, pseudo := range eliminated {
			m.deliver(s, members, protocol.PlayerEliminatedEvent{
				Action: protocol.EventPlayerEliminated,
				Pseudo: pseudo,
			}, false)
			slog.Info("player eliminated", "sessionID", s.id, "pseudo", pseudo)
		}

		if gameOver {
			m.finishSession(s)
			return
		}
		if !m.wait(s, m.questionGap) {
			return
		}
	}
}

// wait sleeps for d unless the session is cancelled first.
func (m *Manager) wait(s *Session, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.cancelCh:
		return false
	}
}

// finishSession ends a session exactly once: final ranking out, members
// unbound, session dropped from the table.
func (m *Manager) finishSession(s *Session) {
	s.finishOnce.Do(func() {
		close(s.cancelCh)
		ev, members := s.buildFinished()
		m.deliver(s, members, ev, true)
		for _, id := range members {
			m.broadcast.SessionEnded(id)
		}
		m.remove(s.id)
		slog.Info("session finished", "sessionID", s.id, "winner", ev.Winner)
	})
}

// dispatchNext advances to the next question and opens the answer window.
// Every player is reset, eliminated ones included, so no stale round state
// can leak into the next results.
func (s *Session) dispatchNext() (protocol.QuestionEvent, []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current++
	for _, p := range s.players {
		p.hasAnswered = false
		p.wasCorrect = false
		p.answer = model.AnswerNone
		p.responseTime = 0
		p.skippedThis = false
	}
	s.questionStart = time.Now()
	s.answersOpen = true
	select {
	case <-s.answered:
	default:
	}

	q := s.questions[s.current]
	ev := protocol.QuestionEvent{
		Action:         protocol.EventQuestionNew,
		QuestionNum:    s.current + 1,
		TotalQuestions: s.settings.NbQuestions,
		Type:           q.Kind.String(),
		Difficulty:     q.Difficulty.String(),
		Question:       q.Prompt,
		TimeLimit:      s.settings.TimeLimit,
	}
	if q.Kind == model.KindQCM {
		ev.Answers = q.Options
	}

	var recipients []int64
	for _, p := range s.players {
		if !p.eliminated {
			recipients = append(recipients, p.ClientID)
		}
	}
	return ev, recipients
}

// recordTimeouts closes the answer window after the timer fires and marks
// every live non-answerer wrong with an over-limit response time. Their
// hasAnswered flag stays false so battle mode does not charge them a life.
func (s *Session) recordTimeouts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answersOpen = false
	limit := float64(s.settings.TimeLimit + 1)
	for _, p := range s.players {
		if p.eliminated || p.hasAnswered {
			continue
		}
		p.wasCorrect = false
		p.responseTime = limit
	}
}

// buildResults settles the round: battle-mode life loss and the slowest
// player penalty, then the per-player result rows. It returns the event,
// the pseudos eliminated this round, the delivery list and whether the
// game is over.
func (s *Session) buildResults(lastPlayerPenalty bool) (protocol.ResultsEvent, []string, []int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answersOpen = false
	q := s.questions[s.current]

	var lastPlayer string
	if s.settings.Mode == model.ModeBattle {
		slowest := -1
		var maxRT float64
		for i, p := range s.players {
			if p.eliminated || p.skippedThis {
				continue
			}
			if p.hasAnswered && !p.wasCorrect {
				p.lives--
				if p.lives <= 0 {
					p.eliminated = true
					p.eliminatedAt = s.current + 1
				}
			}
			if p.hasAnswered && p.responseTime > maxRT {
				maxRT = p.responseTime
				slowest = i
			}
		}
		if slowest >= 0 {
			last := s.players[slowest]
			lastPlayer = last.Pseudo
			if lastPlayerPenalty && !last.eliminated && last.wasCorrect {
				last.lives--
				if last.lives <= 0 {
					last.eliminated = true
					last.eliminatedAt = s.current + 1
				}
			}
		}
	}

	var correctAnswer any
	switch q.Kind {
	case model.KindText:
		if len(q.Accepted) > 0 {
			correctAnswer = q.Accepted[0]
		} else {
			correctAnswer = ""
		}
	case model.KindBoolean:
		if q.CorrectBool {
			correctAnswer = 1
		} else {
			correctAnswer = 0
		}
	default:
		correctAnswer = q.CorrectIndex
	}

	ev := protocol.ResultsEvent{
		Action:        protocol.EventQuestionResults,
		CorrectAnswer: correctAnswer,
		Explanation:   q.Explanation,
		Results:       make([]protocol.PlayerResult, 0, len(s.players)),
	}
	if s.settings.Mode == model.ModeBattle {
		ev.LastPlayer = lastPlayer
	}
	for _, p := range s.players {
		row := protocol.PlayerResult{
			Pseudo:     p.Pseudo,
			Answer:     model.AnswerNone,
			Correct:    p.wasCorrect,
			TotalScore: p.score,
		}
		if p.hasAnswered {
			row.Answer = p.answer
		}
		if p.wasCorrect {
			row.Points = question.Points(q.Difficulty, p.responseTime, s.settings.TimeLimit)
		}
		if s.settings.Mode == model.ModeBattle {
			rt := p.responseTime
			lives := p.lives
			row.ResponseTime = &rt
			row.Lives = &lives
		}
		ev.Results = append(ev.Results, row)
	}

	var eliminated []string
	if s.settings.Mode == model.ModeBattle {
		for _, p := range s.players {
			if p.eliminated && p.eliminatedAt == s.current+1 {
				eliminated = append(eliminated, p.Pseudo)
			}
		}
	}

	gameOver := s.current+1 >= s.settings.NbQuestions
	if s.settings.Mode == model.ModeBattle {
		active := 0
		for _, p := range s.players {
			if !p.eliminated {
				active++
			}
		}
		if active <= 1 {
			gameOver = true
		}
	}

	return ev, eliminated, s.memberIDsLocked(), gameOver
}

// buildFinished freezes the session and computes the final ranking.
// Battle ranks by lives, then survival length, then score; solo by score
// alone. Ties keep join order.
func (s *Session) buildFinished() (protocol.FinishedEvent, []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = model.StatusFinished
	s.answersOpen = false

	ranked := make([]*Player, len(s.players))
	copy(ranked, s.players)
	if s.settings.Mode == model.ModeBattle {
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].lives != ranked[j].lives {
				return ranked[i].lives > ranked[j].lives
			}
			if ranked[i].eliminatedAt != ranked[j].eliminatedAt {
				return ranked[i].eliminatedAt > ranked[j].eliminatedAt
			}
			return ranked[i].score > ranked[j].score
		})
	} else {
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].score > ranked[j].score
		})
	}

	ev := protocol.FinishedEvent{
		Action:  protocol.EventSessionFinished,
		Mode:    s.settings.Mode.String(),
		Ranking: make([]protocol.RankEntry, 0, len(ranked)),
	}
	if s.settings.Mode == model.ModeBattle && len(ranked) > 0 {
		ev.Winner = ranked[0].Pseudo
	}
	for i, p := range ranked {
		entry := protocol.RankEntry{
			Rank:           i + 1,
			Pseudo:         p.Pseudo,
			Score:          p.score,
			CorrectAnswers: p.correctAnswers,
		}
		if s.settings.Mode == model.ModeBattle {
			lives := p.lives
			entry.Lives = &lives
			if p.eliminated {
				entry.EliminatedAt = p.eliminatedAt
			}
		}
		ev.Ranking = append(ev.Ranking, entry)
	}

	return ev, s.memberIDsLocked()
}

// summary renders the lobby listing entry for a waiting session.
func (s *Session) summary(bank *question.Bank) (protocol.SessionSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusWaiting {
		return protocol.SessionSummary{}, false
	}

	themeIDs := make([]int, len(s.settings.ThemeIDs))
	copy(themeIDs, s.settings.ThemeIDs)
	themeNames := make([]string, 0, len(themeIDs))
	for _, id := range themeIDs {
		if name := bank.ThemeName(id); name != "" {
			themeNames = append(themeNames, name)
		}
	}

	return protocol.SessionSummary{
		ID:          s.id,
		Name:        s.settings.Name,
		ThemeIDs:    themeIDs,
		ThemeNames:  themeNames,
		Difficulty:  s.settings.Difficulty.String(),
		NbQuestions: s.settings.NbQuestions,
		TimeLimit:   s.settings.TimeLimit,
		Mode:        s.settings.Mode.String(),
		NbPlayers:   len(s.players),
		MaxPlayers:  s.settings.MaxPlayers,
		Status:      "waiting",
	}, true
}
