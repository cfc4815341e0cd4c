package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/deepnoodle-ai/forky"
	"github.com/deepnoodle-ai/forky/graph"
	"github.com/deepnoodle-ai/forky/llm"
)

// ChatResult reports a committed chat turn.
type ChatResult struct {
	UserNodeID      string `json:"user_node_id"`
	AssistantNodeID string `json:"assistant_node_id"`
	Content         string `json:"content"`

	// Truncated is set when the turn was cut off mid-stream and the
	// partial assistant content was committed.
	Truncated bool `json:"truncated,omitempty"`
}

// Chat appends a user message, generates the assistant's reply against the
// current history, and commits both nodes. On model failure nothing is
// committed.
func (s *Service) Chat(ctx context.Context, id, message string, attachments ...graph.Attachment) (*ChatResult, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.chatMessages(conv.Graph, message)
	if err != nil {
		return nil, err
	}

	mctx, cancel := s.modelContext(ctx)
	defer cancel()
	resp, err := s.client.Generate(mctx, messages, s.generateOptions()...)
	if err != nil {
		return nil, mapModelError(err)
	}
	return s.commitTurn(ctx, conv, message, resp.Message.Text(), false, attachments)
}

// ChatStream starts a streamed chat turn. The conversation lock is held
// until the stream finishes, so the assistant node commits before another
// writer runs. If the caller cancels mid-stream, the partial assistant
// content accumulated so far is still committed.
func (s *Service) ChatStream(ctx context.Context, id, message string, attachments ...graph.Attachment) (*ChatStream, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		release()
		return nil, err
	}
	messages, err := s.chatMessages(conv.Graph, message)
	if err != nil {
		release()
		return nil, err
	}

	cs := &ChatStream{ch: make(chan string)}
	streamer, ok := s.client.(llm.StreamingLLM)
	if !ok {
		// Provider cannot stream; deliver the whole reply as one chunk.
		go func() {
			defer release()
			defer close(cs.ch)
			mctx, cancel := s.modelContext(ctx)
			defer cancel()
			resp, err := s.client.Generate(mctx, messages, s.generateOptions()...)
			if err != nil {
				cs.fail(mapModelError(err))
				return
			}
			text := resp.Message.Text()
			select {
			case cs.ch <- text:
			case <-ctx.Done():
			}
			result, err := s.commitTurn(context.WithoutCancel(ctx), conv, message, text, false, attachments)
			if err != nil {
				cs.fail(err)
				return
			}
			cs.finish(result)
		}()
		return cs, nil
	}

	mctx, cancel := s.modelContext(ctx)
	stream, err := streamer.Stream(mctx, messages, s.generateOptions()...)
	if err != nil {
		cancel()
		release()
		return nil, mapModelError(err)
	}

	go func() {
		defer release()
		defer cancel()
		defer close(cs.ch)
		defer stream.Close()

		var content string
		for {
			event, ok := stream.Next(mctx)
			if !ok {
				break
			}
			if event.Delta == nil || event.Delta.Text == "" {
				continue
			}
			content += event.Delta.Text
			select {
			case cs.ch <- event.Delta.Text:
			case <-ctx.Done():
			}
		}

		err := stream.Err()
		if mctx.Err() != nil {
			err = mctx.Err()
		}
		truncated := false
		switch {
		case err == nil:
			// Complete turn.
		case errors.Is(err, context.Canceled) && content != "":
			// Client went away mid-stream; keep the partial turn.
			truncated = true
		default:
			cs.fail(mapModelError(err))
			return
		}

		result, err := s.commitTurn(context.WithoutCancel(ctx), conv, message, content, truncated, attachments)
		if err != nil {
			cs.fail(err)
			return
		}
		cs.finish(result)
	}()
	return cs, nil
}

// commitTurn appends the user and assistant nodes and saves the
// conversation. Callers hold the conversation lock.
func (s *Service) commitTurn(ctx context.Context, conv *forky.Conversation, message, reply string, truncated bool, attachments []graph.Attachment) (*ChatResult, error) {
	userNode, err := conv.Graph.Append(conv.Graph.CurrentID(), llm.User, message, attachments...)
	if err != nil {
		return nil, err
	}
	assistantNode, err := conv.Graph.Append(userNode.ID, llm.Assistant, reply)
	if err != nil {
		return nil, err
	}
	conv.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}
	return &ChatResult{
		UserNodeID:      userNode.ID,
		AssistantNodeID: assistantNode.ID,
		Content:         reply,
		Truncated:       truncated,
	}, nil
}

// chatMessages converts the current history into the model message list
// and appends the new user message. System sentinel nodes carry no
// dialogue and are dropped.
func (s *Service) chatMessages(g *graph.Graph, message string) ([]*llm.Message, error) {
	history, err := g.History(g.CurrentID())
	if err != nil {
		return nil, err
	}
	messages := make([]*llm.Message, 0, len(history)+1)
	for _, n := range history {
		switch n.Role {
		case llm.User:
			messages = append(messages, llm.NewUserTextMessage(n.Content))
		case llm.Assistant:
			messages = append(messages, llm.NewAssistantTextMessage(n.Content))
		}
	}
	return append(messages, llm.NewUserTextMessage(message)), nil
}

func (s *Service) generateOptions() []llm.Option {
	opts := []llm.Option{llm.WithLogger(s.logger)}
	if s.defaultModel != "" {
		opts = append(opts, llm.WithModel(s.defaultModel))
	}
	if s.systemPrompt != "" {
		opts = append(opts, llm.WithSystemPrompt(s.systemPrompt))
	}
	return opts
}

// ChatStream delivers a streamed chat turn chunk by chunk. After the
// stream ends, Result reports the committed nodes and Err any failure.
type ChatStream struct {
	ch chan string

	mu     sync.Mutex
	err    error
	result *ChatResult
}

// Next returns the next text chunk. It returns false when the stream is
// complete or failed; check Err afterwards.
func (cs *ChatStream) Next(ctx context.Context) (string, bool) {
	select {
	case chunk, ok := <-cs.ch:
		return chunk, ok
	case <-ctx.Done():
		return "", false
	}
}

// Err returns the stream's terminal error, if any. Valid after Next has
// returned false.
func (cs *ChatStream) Err() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.err
}

// Result reports the committed chat turn. Valid after Next has returned
// false; nil when the turn failed without committing.
func (cs *ChatStream) Result() *ChatResult {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.result
}

func (cs *ChatStream) fail(err error) {
	cs.mu.Lock()
	cs.err = err
	cs.mu.Unlock()
}

func (cs *ChatStream) finish(result *ChatResult) {
	cs.mu.Lock()
	cs.result = result
	cs.mu.Unlock()
}
