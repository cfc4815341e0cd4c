package openai

import (
	"context"
	"strings"

	"github.com/deepnoodle-ai/forky/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"
)

// Stream adapts the SDK's chunk stream to llm.Stream.
type Stream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	err     error
	id      string
	model   string
	content strings.Builder
	usage   llm.Usage
}

func (s *Stream) Next(ctx context.Context) (*llm.Event, bool) {
	for {
		if ctx.Err() != nil {
			s.err = ctx.Err()
			return nil, false
		}
		if !s.stream.Next() {
			if err := s.stream.Err(); err != nil {
				s.err = err
			}
			return nil, false
		}
		chunk := s.stream.Current()
		if s.id == "" {
			s.id = chunk.ID
			s.model = chunk.Model
		}
		if chunk.Usage.TotalTokens > 0 {
			s.usage = llm.Usage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			s.content.WriteString(choice.Delta.Content)
			return &llm.Event{
				Type:  llm.EventContentBlockDelta,
				Delta: &llm.Delta{Type: "text_delta", Text: choice.Delta.Content},
			}, true
		}
		if choice.FinishReason != "" {
			return &llm.Event{
				Type:     llm.EventMessageDelta,
				Delta:    &llm.Delta{StopReason: choice.FinishReason},
				Response: s.buildFinalResponse(choice.FinishReason),
			}, true
		}
	}
}

func (s *Stream) buildFinalResponse(stopReason string) *llm.Response {
	return llm.NewResponse(llm.ResponseOptions{
		ID:         s.id,
		Model:      s.model,
		Role:       llm.Assistant,
		StopReason: stopReason,
		Message:    llm.NewAssistantTextMessage(s.content.String()),
		Usage:      s.usage,
	})
}

func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) Close() error {
	return s.stream.Close()
}
