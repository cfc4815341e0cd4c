package llm

import (
	"strings"
	"testing"

	"github.com/deepnoodle-ai/wonton/assert"
)

func TestServerSentEventsReader(t *testing.T) {
	body := strings.Join([]string{
		"event: message_start",
		`data: {"type":"message_start","n":0}`,
		"",
		"event: content_block_delta",
		`data: {"type":"content_block_delta","n":1}`,
		"",
		": a comment line",
		`{"type":"not an event: data lines only"}`,
		`data: {"type":"message_stop","n":2}`,
		"",
		"data: [DONE]",
		"",
	}, "\n")

	reader := NewServerSentEventsReader[map[string]any](strings.NewReader(body))

	var events []map[string]any
	for {
		event, ok := reader.Next()
		if !ok {
			break
		}
		events = append(events, event)
	}
	assert.NoError(t, reader.Err())
	assert.Equal(t, 3, len(events))
	assert.Equal(t, "message_start", events[0]["type"])
	assert.Equal(t, float64(0), events[0]["n"])
	assert.Equal(t, "content_block_delta", events[1]["type"])
	assert.Equal(t, "message_stop", events[2]["type"])
}

func TestServerSentEventsReaderInvalidJSON(t *testing.T) {
	body := "data: {not json}\n\n"
	reader := NewServerSentEventsReader[map[string]any](strings.NewReader(body))
	_, ok := reader.Next()
	assert.False(t, ok)
	assert.Error(t, reader.Err())
}
