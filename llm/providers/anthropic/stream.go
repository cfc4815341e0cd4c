package anthropic

import (
	"context"
	"io"
	"strings"

	"github.com/deepnoodle-ai/forky/llm"
)

// Stream implements llm.Stream over the Messages API event stream. Text
// deltas are surfaced as they arrive and the final response is assembled
// from the accumulated blocks when the message_delta event carries the stop
// reason.
type Stream struct {
	events  *llm.ServerSentEventsReader[StreamEvent]
	body    io.ReadCloser
	err     error
	message Response
	blocks  map[int]*strings.Builder
	usage   Usage
}

func (s *Stream) Next(ctx context.Context) (*llm.Event, bool) {
	for {
		if ctx.Err() != nil {
			s.err = ctx.Err()
			return nil, false
		}
		event, ok := s.events.Next()
		if !ok {
			if err := s.events.Err(); err != nil {
				s.err = err
			}
			return nil, false
		}
		if out := s.handle(&event); out != nil {
			return out, true
		}
	}
}

func (s *Stream) handle(event *StreamEvent) *llm.Event {
	switch event.Type {
	case "message_start":
		s.message = event.Message
		s.usage = event.Message.Usage
		return &llm.Event{Type: llm.EventMessageStart}

	case "content_block_start":
		if s.blocks == nil {
			s.blocks = make(map[int]*strings.Builder)
		}
		b := &strings.Builder{}
		b.WriteString(event.ContentBlock.Text)
		s.blocks[event.Index] = b
		return &llm.Event{Type: llm.EventContentBlockStart, Index: event.Index}

	case "content_block_delta":
		if event.Delta.Type != "text_delta" || event.Delta.Text == "" {
			return nil
		}
		if b, ok := s.blocks[event.Index]; ok {
			b.WriteString(event.Delta.Text)
		}
		return &llm.Event{
			Type:  llm.EventContentBlockDelta,
			Index: event.Index,
			Delta: &llm.Delta{Type: "text_delta", Text: event.Delta.Text},
		}

	case "content_block_stop":
		return &llm.Event{Type: llm.EventContentBlockStop, Index: event.Index}

	case "message_delta":
		s.usage.InputTokens += event.Usage.InputTokens
		s.usage.OutputTokens += event.Usage.OutputTokens
		return &llm.Event{
			Type:     llm.EventMessageDelta,
			Delta:    &llm.Delta{StopReason: event.Delta.StopReason},
			Response: s.buildFinalResponse(event.Delta.StopReason),
		}

	case "message_stop":
		return &llm.Event{Type: llm.EventMessageStop}

	case "ping":
		return &llm.Event{Type: llm.EventPing}
	}
	return nil
}

func (s *Stream) buildFinalResponse(stopReason string) *llm.Response {
	var content []*llm.Content
	for i := 0; i < len(s.blocks); i++ {
		if b, ok := s.blocks[i]; ok {
			content = append(content, &llm.Content{
				Type: llm.ContentTypeText,
				Text: b.String(),
			})
		}
	}
	return llm.NewResponse(llm.ResponseOptions{
		ID:         s.message.ID,
		Model:      s.message.Model,
		Role:       llm.Assistant,
		StopReason: stopReason,
		Message:    llm.NewMessage(llm.Assistant, content),
		Usage: llm.Usage{
			InputTokens:  s.usage.InputTokens,
			OutputTokens: s.usage.OutputTokens,
		},
	})
}

func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) Close() error {
	return s.body.Close()
}
