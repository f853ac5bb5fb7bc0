package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Request is a single parsed client request.
type Request struct {
	Method   string
	Endpoint string

	// Body holds the raw JSON object of a POST request, sliced from the
	// first '{' of the body line. It is nil when the body line carried no
	// object. GET requests never have a body.
	Body []byte
}

// Reader reads requests off a client connection.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r in a request reader enforcing MaxLineLen.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, MaxLineLen)}
}

// line returns the next non-empty line with its terminator stripped.
func (r *Reader) line() (string, error) {
	for {
		raw, err := r.br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			return "", ErrLineTooLong
		}
		if err != nil {
			// An unterminated trailing line is dropped.
			return "", err
		}
		line := strings.TrimRight(string(raw), "\r\n")
		if line != "" {
			return line, nil
		}
	}
}

// ReadRequest blocks until a full request arrives. A POST header consumes
// the next non-empty line as its body. ErrMalformed leaves the reader
// usable; any other error means the connection is done.
func (r *Reader) ReadRequest() (*Request, error) {
	header, err := r.line()
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, header)
	}
	req := &Request{Method: fields[0], Endpoint: fields[1]}
	if req.Method == MethodPost {
		body, err := r.line()
		if err != nil {
			return nil, err
		}
		if i := strings.IndexByte(body, '{'); i >= 0 {
			req.Body = []byte(body[i:])
		}
	}
	return req, nil
}

// ValidBody reports whether the request carries a parseable JSON object.
// Bytes trailing the object are ignored.
func (r *Request) ValidBody() bool {
	if len(r.Body) == 0 {
		return false
	}
	var raw json.RawMessage
	return json.NewDecoder(bytes.NewReader(r.Body)).Decode(&raw) == nil
}

// DecodeBody unmarshals the request body into v. Unknown fields are
// ignored, bytes trailing the object are ignored.
func (r *Request) DecodeBody(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("decode body: no JSON object")
	}
	if err := json.NewDecoder(bytes.NewReader(r.Body)).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// Number decodes raw as a JSON number. It reports false for a missing
// field, null, or any non-numeric value.
func Number(raw json.RawMessage) (float64, bool) {
	var f *float64
	if json.Unmarshal(raw, &f) != nil || f == nil {
		return 0, false
	}
	return *f, true
}

// Ints decodes raw as a JSON array, truncating each numeric element to an
// int and mapping non-numeric elements to zero. Anything that is not an
// array yields nil.
func Ints(raw json.RawMessage) []int {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]int, len(items))
	for i, item := range items {
		f, _ := Number(item)
		out[i] = int(f)
	}
	return out
}

// CredentialsRequest carries player/register and player/login bodies.
type CredentialsRequest struct {
	Pseudo   *string `json:"pseudo"`
	Password *string `json:"password"`
}

// CreateSessionRequest carries session/create parameters. Pointer fields
// distinguish absent values; numeric fields stay raw so validation can
// treat a malformed number like the zero it decodes to in a lenient
// parser.
type CreateSessionRequest struct {
	Name        *string         `json:"name"`
	ThemeIDs    json.RawMessage `json:"themeIds"`
	Difficulty  *string         `json:"difficulty"`
	NbQuestions json.RawMessage `json:"nbQuestions"`
	TimeLimit   json.RawMessage `json:"timeLimit"`
	Mode        *string         `json:"mode"`
	MaxPlayers  json.RawMessage `json:"maxPlayers"`
	Lives       json.RawMessage `json:"lives"`
}

// JoinSessionRequest carries the target session id.
type JoinSessionRequest struct {
	SessionID json.RawMessage `json:"sessionId"`
}

// AnswerRequest carries a question/answer submission. Answer stays raw so
// the handler can dispatch on its JSON type: a number is an option index,
// a string a free-text answer, a bool a true/false answer.
type AnswerRequest struct {
	Answer       json.RawMessage `json:"answer"`
	ResponseTime json.RawMessage `json:"responseTime"`
}

// JokerRequest names the joker being played.
type JokerRequest struct {
	Type *string `json:"type"`
}
