// Package protocol implements the line-framed wire format spoken between
// quiz clients and the server.
//
// Requests are plain text. A header line reads "METHOD endpoint"; POST
// headers are followed by exactly one JSON object on a line of its own.
// Every response and server event is a single JSON object terminated by a
// newline.
package protocol

import "errors"

// MaxLineLen bounds a single wire line, terminator included. A peer that
// sends a longer line is disconnected.
const MaxLineLen = 8192

// Request methods.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Endpoints addressed by request headers.
const (
	EndpointRegister      = "player/register"
	EndpointLogin         = "player/login"
	EndpointThemesList    = "themes/list"
	EndpointSessionsList  = "sessions/list"
	EndpointSessionCreate = "session/create"
	EndpointSessionJoin   = "session/join"
	EndpointSessionStart  = "session/start"
	EndpointAnswer        = "question/answer"
	EndpointJokerUse      = "joker/use"
)

// Actions carried by server-initiated events.
const (
	EventPlayerJoined     = "session/player/joined"
	EventPlayerLeft       = "session/player/left"
	EventSessionStarted   = "session/started"
	EventQuestionNew      = "question/new"
	EventQuestionResults  = "question/results"
	EventPlayerEliminated = "session/player/eliminated"
	EventSessionFinished  = "session/finished"
)

// Joker types accepted by joker/use.
const (
	JokerFifty = "fifty"
	JokerSkip  = "skip"
)

// Status codes carried in the statut field. The wire speaks strings, not
// numbers.
const (
	StatusOK           = "200"
	StatusCreated      = "201"
	StatusBadRequest   = "400"
	StatusUnauthorized = "401"
	StatusForbidden    = "403"
	StatusNotFound     = "404"
	StatusConflict     = "409"
	StatusUnknown      = "520"
)

var (
	// ErrMalformed reports a header line that does not split into a method
	// and an endpoint. The connection stays usable.
	ErrMalformed = errors.New("malformed request header")

	// ErrLineTooLong reports a line exceeding MaxLineLen. The connection
	// must be closed.
	ErrLineTooLong = errors.New("line exceeds maximum length")
)
