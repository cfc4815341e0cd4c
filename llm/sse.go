package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// ServerSentEventsReader decodes a text/event-stream body into typed
// events. Only "data:" lines carry payloads; event names, comments, and
// blank separators are protocol framing and are skipped.
type ServerSentEventsReader[T any] struct {
	scanner *bufio.Scanner
	err     error
}

// NewServerSentEventsReader wraps a streaming response body. Closing the
// body stays with the caller.
func NewServerSentEventsReader[T any](stream io.Reader) *ServerSentEventsReader[T] {
	scanner := bufio.NewScanner(stream)
	// A single data line can exceed the scanner's default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ServerSentEventsReader[T]{scanner: scanner}
}

// Err returns the terminal error, if any. Valid after Next returns false.
func (s *ServerSentEventsReader[T]) Err() error {
	return s.err
}

// Next returns the next decoded event. It returns false at end of stream,
// on the "[DONE]" sentinel, or on the first malformed payload.
func (s *ServerSentEventsReader[T]) Next() (T, bool) {
	var zero T
	for s.scanner.Scan() {
		data, ok := bytes.CutPrefix(bytes.TrimSpace(s.scanner.Bytes()), []byte("data:"))
		if !ok {
			continue
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			return zero, false
		}
		var event T
		if err := json.Unmarshal(data, &event); err != nil {
			s.err = fmt.Errorf("malformed event payload: %w", err)
			return zero, false
		}
		return event, true
	}
	s.err = s.scanner.Err()
	return zero, false
}
