package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deepnoodle-ai/forky/llm"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var captured Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.Equal(t, DefaultVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(Response{
			ID:         "msg_1",
			Model:      captured.Model,
			Role:       "assistant",
			Content:    []*ContentBlock{{Type: "text", Text: "hello"}},
			StopReason: "end_turn",
			Usage:      Usage{InputTokens: 9, OutputTokens: 3},
		})
	}))
	defer server.Close()

	provider := New(WithAPIKey("test-key"), WithEndpoint(server.URL))
	response, err := provider.Generate(context.Background(), []*llm.Message{
		llm.NewUserTextMessage("say hello"),
	}, llm.WithModel("claude-test"), llm.WithSystemPrompt("be brief"))
	require.NoError(t, err)
	require.Equal(t, "hello", response.Message.Text())
	require.Equal(t, "end_turn", response.StopReason)
	require.Equal(t, 9, response.Usage.InputTokens)

	require.Equal(t, "claude-test", captured.Model)
	require.Equal(t, "be brief", captured.System)
	require.Len(t, captured.Messages, 1)
	require.Equal(t, "user", captured.Messages[0].Role)
	require.Equal(t, "say hello", captured.Messages[0].Content[0].Text)
}

func TestGenerateEmptyMessages(t *testing.T) {
	provider := New(WithAPIKey("test-key"))
	_, err := provider.Generate(context.Background(), nil)
	require.ErrorContains(t, err, "no messages")
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := New(WithAPIKey("bad"), WithEndpoint(server.URL))
	_, err := provider.Generate(context.Background(), []*llm.Message{
		llm.NewUserTextMessage("hi"),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 401")
}

func TestStream(t *testing.T) {
	events := []string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_1","model":"claude-test","usage":{"input_tokens":5,"output_tokens":1}}}`,
		``,
		`event: content_block_start`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		``,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
		``,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`,
		``,
		`data: {"type":"content_block_stop","index":0}`,
		``,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":4}}`,
		``,
		`data: {"type":"message_stop"}`,
		``,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range events {
			w.Write([]byte(line + "\n"))
		}
	}))
	defer server.Close()

	provider := New(WithAPIKey("test-key"), WithEndpoint(server.URL))
	stream, err := provider.Stream(context.Background(), []*llm.Message{
		llm.NewUserTextMessage("say hello"),
	})
	require.NoError(t, err)
	defer stream.Close()

	var text string
	var final *llm.Response
	for {
		event, ok := stream.Next(context.Background())
		if !ok {
			break
		}
		switch event.Type {
		case llm.EventContentBlockDelta:
			text += event.Delta.Text
		case llm.EventMessageDelta:
			final = event.Response
		}
	}
	require.NoError(t, stream.Err())
	require.Equal(t, "Hello", text)
	require.NotNil(t, final)
	require.Equal(t, "Hello", final.Message.Text())
	require.Equal(t, "end_turn", final.StopReason)
	require.Equal(t, 5, final.Usage.InputTokens)
	require.Equal(t, 5, final.Usage.OutputTokens)
}

func TestConvertMessagesRejectsEmptyContent(t *testing.T) {
	_, err := convertMessages([]*llm.Message{{Role: llm.User}})
	require.ErrorContains(t, err, "empty message")
}

func TestAvailableModels(t *testing.T) {
	provider := New()
	models := provider.AvailableModels()
	require.NotEmpty(t, models)
	require.Equal(t, DefaultModel, models[1].ID)
}
