package protocol

import "encoding/json"

// Encode marshals msg as a single line terminated by a newline, ready to
// write to a client.
func Encode(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Head carries the fields shared by every response. Action is empty on the
// generic bad-request and unknown-error responses and marshals away.
type Head struct {
	Action  string `json:"action,omitempty"`
	Statut  string `json:"statut"`
	Message string `json:"message"`
}

// Result builds a response carrying only the shared fields.
func Result(action, status, message string) Head {
	return Head{Action: action, Statut: status, Message: message}
}

// BadRequest is the generic malformed-request response.
func BadRequest() Head {
	return Head{Statut: StatusBadRequest, Message: "Bad request"}
}

// UnknownError is the response for unrecognized endpoints.
func UnknownError() Head {
	return Head{Statut: StatusUnknown, Message: "Unknown Error"}
}

// ThemeEntry is one quiz theme in a themes/list response.
type ThemeEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ThemesList answers themes/list. Themes must be non-nil so an empty bank
// still marshals an array.
type ThemesList struct {
	Head
	NbThemes int          `json:"nbThemes"`
	Themes   []ThemeEntry `json:"themes"`
}

// SessionSummary is one joinable session in a sessions/list response.
type SessionSummary struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	ThemeIDs    []int    `json:"themeIds"`
	ThemeNames  []string `json:"themeNames"`
	Difficulty  string   `json:"difficulty"`
	NbQuestions int      `json:"nbQuestions"`
	TimeLimit   int      `json:"timeLimit"`
	Mode        string   `json:"mode"`
	NbPlayers   int      `json:"nbPlayers"`
	MaxPlayers  int      `json:"maxPlayers"`
	Status      string   `json:"status"`
}

// SessionsList answers sessions/list. The sessions array is omitted
// entirely when no session is waiting.
type SessionsList struct {
	Head
	NbSessions int              `json:"nbSessions"`
	Sessions   []SessionSummary `json:"sessions,omitempty"`
}

// JokerState reports how many uses remain per joker.
type JokerState struct {
	Fifty int `json:"fifty"`
	Skip  int `json:"skip"`
}

// SessionCreated answers a successful session/create. Lives only appears
// in battle mode, where it is always at least one.
type SessionCreated struct {
	Head
	SessionID int64      `json:"sessionId"`
	IsCreator bool       `json:"isCreator"`
	Lives     int        `json:"lives,omitempty"`
	Jokers    JokerState `json:"jokers"`
}

// SessionJoined answers a successful session/join. Players lists pseudos
// in join order, the joiner last.
type SessionJoined struct {
	Head
	SessionID int64      `json:"sessionId"`
	Mode      string     `json:"mode"`
	IsCreator bool       `json:"isCreator"`
	Players   []string   `json:"players"`
	Lives     int        `json:"lives,omitempty"`
	Jokers    JokerState `json:"jokers"`
}

// JokerUsed answers a successful joker/use. RemainingAnswers appears only
// for the fifty joker and keeps the stored option order.
type JokerUsed struct {
	Head
	RemainingAnswers []string   `json:"remainingAnswers,omitempty"`
	Jokers           JokerState `json:"jokers"`
}

// PlayerJoinedEvent tells the other session members someone joined.
type PlayerJoinedEvent struct {
	Action    string `json:"action"`
	Pseudo    string `json:"pseudo"`
	NbPlayers int    `json:"nbPlayers"`
}

// PlayerLeftEvent tells the remaining session members someone left.
type PlayerLeftEvent struct {
	Action string `json:"action"`
	Pseudo string `json:"pseudo"`
	Reason string `json:"reason"`
}

// SessionStartedEvent opens the pre-game countdown.
type SessionStartedEvent struct {
	Action    string `json:"action"`
	Message   string `json:"message"`
	Countdown int    `json:"countdown"`
}

// QuestionEvent delivers one question. Answers carries the four options of
// a multiple-choice question and is absent for the other kinds.
type QuestionEvent struct {
	Action         string   `json:"action"`
	QuestionNum    int      `json:"questionNum"`
	TotalQuestions int      `json:"totalQuestions"`
	Type           string   `json:"type"`
	Difficulty     string   `json:"difficulty"`
	Question       string   `json:"question"`
	TimeLimit      int      `json:"timeLimit"`
	Answers        []string `json:"answers,omitempty"`
}

// PlayerResult is one row of a question/results event. ResponseTime and
// Lives are battle-only and must still marshal when zero, hence the
// pointers.
type PlayerResult struct {
	Pseudo       string   `json:"pseudo"`
	Answer       int      `json:"answer"`
	Correct      bool     `json:"correct"`
	Points       int      `json:"points"`
	TotalScore   int      `json:"totalScore"`
	ResponseTime *float64 `json:"responseTime,omitempty"`
	Lives        *int     `json:"lives,omitempty"`
}

// ResultsEvent closes a question. CorrectAnswer is a number for
// multiple-choice and true/false questions and a string for text
// questions. LastPlayer names the slowest battle answerer of the round.
type ResultsEvent struct {
	Action        string         `json:"action"`
	CorrectAnswer any            `json:"correctAnswer"`
	Explanation   string         `json:"explanation,omitempty"`
	LastPlayer    string         `json:"lastPlayer,omitempty"`
	Results       []PlayerResult `json:"results"`
}

// PlayerEliminatedEvent announces a battle elimination.
type PlayerEliminatedEvent struct {
	Action string `json:"action"`
	Pseudo string `json:"pseudo"`
}

// RankEntry is one row of the final ranking. Lives is battle-only and may
// be zero; EliminatedAt appears only for eliminated players and is always
// at least one.
type RankEntry struct {
	Rank           int    `json:"rank"`
	Pseudo         string `json:"pseudo"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correctAnswers"`
	Lives          *int   `json:"lives,omitempty"`
	EliminatedAt   int    `json:"eliminatedAt,omitempty"`
}

// FinishedEvent ends a session. Winner is battle-only.
type FinishedEvent struct {
	Action  string      `json:"action"`
	Mode    string      `json:"mode"`
	Winner  string      `json:"winner,omitempty"`
	Ranking []RankEntry `json:"ranking"`
}
