package google

import (
	"context"
	"iter"
	"strings"

	"github.com/deepnoodle-ai/forky/llm"
	"google.golang.org/genai"
)

// Stream adapts the genai response sequence to llm.Stream.
type Stream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	model   string
	err     error
	done    bool
	id      string
	content strings.Builder
	usage   llm.Usage
}

func newStream(seq iter.Seq2[*genai.GenerateContentResponse, error], model string) *Stream {
	next, stop := iter.Pull2(seq)
	return &Stream{next: next, stop: stop, model: model}
}

func (s *Stream) Next(ctx context.Context) (*llm.Event, bool) {
	for {
		if ctx.Err() != nil {
			s.err = ctx.Err()
			return nil, false
		}
		if s.done {
			return nil, false
		}
		resp, err, ok := s.next()
		if !ok {
			// Sequence exhausted; emit the assembled final response once.
			s.done = true
			return &llm.Event{
				Type:     llm.EventMessageDelta,
				Delta:    &llm.Delta{StopReason: "end_turn"},
				Response: s.buildFinalResponse(),
			}, true
		}
		if err != nil {
			s.err = err
			return nil, false
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		if s.id == "" {
			s.id = resp.ResponseID
		}
		if resp.UsageMetadata != nil {
			s.usage = usageFrom(resp)
		}
		var text strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
		if text.Len() == 0 {
			continue
		}
		s.content.WriteString(text.String())
		return &llm.Event{
			Type:  llm.EventContentBlockDelta,
			Delta: &llm.Delta{Type: "text_delta", Text: text.String()},
		}, true
	}
}

func (s *Stream) buildFinalResponse() *llm.Response {
	return llm.NewResponse(llm.ResponseOptions{
		ID:         s.id,
		Model:      s.model,
		Role:       llm.Assistant,
		StopReason: "end_turn",
		Message:    llm.NewAssistantTextMessage(s.content.String()),
		Usage:      s.usage,
	})
}

func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) Close() error {
	s.stop()
	return nil
}
