package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultMaxFrame bounds a single line on the wire.
const DefaultMaxFrame = 1 << 20

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrFrameTooLarge  = errors.New("frame too large")
)

// Encode serializes m as one JSON object terminated by a newline.
// encoding/json escapes control characters inside strings, so the only raw
// newline in the result is the terminator.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// wireMessage is the JSON shape of a Message. JSON strings are UTF-8, so a
// path that is not valid UTF-8 also travels byte-exact in path_bytes
// (base64); path keeps a readable copy for receivers that ignore it.
type wireMessage struct {
	Type      MessageType `json:"type"`
	Path      string      `json:"path,omitempty"`
	PathBytes []byte      `json:"path_bytes,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{Type: m.Type, Path: m.Path}
	if !utf8.ValidString(m.Path) {
		w.PathBytes = []byte(m.Path)
	}
	return json.Marshal(w)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Type, m.Path = w.Type, w.Path
	if len(w.PathBytes) > 0 {
		m.Path = string(w.PathBytes)
	}
	return nil
}

// Reader decodes a newline-delimited stream of messages. It is not safe for
// concurrent use; each connection has exactly one reader.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader, maxFrame int) *Reader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	scanner := bufio.NewScanner(r)
	// The scanner's buffer also holds the terminating newline.
	limit := maxFrame + 1
	initial := 4096
	if initial > limit {
		initial = limit
	}
	scanner.Buffer(make([]byte, 0, initial), limit)
	return &Reader{scanner: scanner}
}

// Next returns the next message. Blank lines are skipped. A line that is not
// a JSON object yields an error wrapping ErrMalformedFrame; the stream stays
// aligned, so the caller may keep reading. At end of stream Next returns
// io.EOF.
func (r *Reader) Next() (Message, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var m Message
		if err := json.Unmarshal(line, &m); err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return m, nil
	}
	err := r.scanner.Err()
	if err == nil {
		return Message{}, io.EOF
	}
	if errors.Is(err, bufio.ErrTooLong) {
		return Message{}, ErrFrameTooLarge
	}
	return Message{}, err
}
