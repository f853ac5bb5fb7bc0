package game

import "errors"

// Sentinel errors returned by session operations. Their texts double as the
// wire messages the dispatcher sends back.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFull      = errors.New("session is full")
	ErrNotJoinable      = errors.New("cannot join session")
	ErrTooManySessions  = errors.New("too many sessions")
	ErrNotCreator       = errors.New("only creator can start session")
	ErrAlreadyStarted   = errors.New("session already started")
	ErrNotEnoughPlayers = errors.New("need at least 2 players")
	ErrJokerUnavailable = errors.New("joker not available")
)
