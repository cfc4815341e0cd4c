package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/deepnoodle-ai/forky/graph"
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/forky/slogger"
)

// Summarizer reduces a linearized conversation history to a StateRecord by
// delegating to a model. Results are cached per node id: node content is
// append-only, so a node's history never changes while it exists.
type Summarizer struct {
	client llm.LLM
	model  string
	logger slogger.Logger

	mu    sync.Mutex
	cache map[string]StateRecord
}

// SummarizerOptions configures a Summarizer.
type SummarizerOptions struct {
	Client llm.LLM
	Model  string
	Logger slogger.Logger
}

// NewSummarizer creates a Summarizer with the given options.
func NewSummarizer(opts SummarizerOptions) *Summarizer {
	logger := opts.Logger
	if logger == nil {
		logger = slogger.DefaultLogger
	}
	return &Summarizer{
		client: opts.Client,
		model:  opts.Model,
		logger: logger,
		cache:  make(map[string]StateRecord),
	}
}

// Summarize produces a StateRecord for the history ending at the given
// node. If the model returns unparseable output, one retry is made with a
// stricter prompt; on a second failure the record comes back empty with
// topic "unknown" and Failed set, and the merge proceeds in
// structural-only mode. The only error returned is context cancellation.
func (s *Summarizer) Summarize(ctx context.Context, nodeID string, history []*graph.Node) (StateRecord, error) {
	if len(history) == 0 {
		return StateRecord{}, nil
	}
	if nodeID != "" {
		s.mu.Lock()
		cached, ok := s.cache[nodeID]
		s.mu.Unlock()
		if ok {
			return cached, nil
		}
	}

	conversation := formatHistory(history)
	record, err := s.attempt(ctx, fmt.Sprintf(stateSummaryPrompt, conversation))
	if err != nil {
		if ctx.Err() != nil {
			return StateRecord{}, ctx.Err()
		}
		s.logger.Warn("state summary attempt failed, retrying with strict prompt",
			"node_id", nodeID, "error", err)
		record, err = s.attempt(ctx, fmt.Sprintf(strictStateSummaryPrompt, conversation))
	}
	if err != nil {
		if ctx.Err() != nil {
			return StateRecord{}, ctx.Err()
		}
		s.logger.Warn("state summary failed after retry, downgrading to structural mode",
			"node_id", nodeID, "error", err)
		// Placeholder records are not cached so a later merge can retry.
		return StateRecord{Topic: "unknown", Failed: true}, nil
	}

	if nodeID != "" {
		s.mu.Lock()
		s.cache[nodeID] = record
		s.mu.Unlock()
	}
	return record, nil
}

// Seed primes the cache with a previously computed record, typically one
// persisted by the store from an earlier merge.
func (s *Summarizer) Seed(nodeID string, record StateRecord) {
	if nodeID == "" || record.Failed {
		return
	}
	s.mu.Lock()
	s.cache[nodeID] = record
	s.mu.Unlock()
}

// Cached returns the cached record for a node, if any.
func (s *Summarizer) Cached(nodeID string) (StateRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.cache[nodeID]
	return record, ok
}

// Invalidate drops the cached record for a node. Callers use this when a
// node is removed from its conversation.
func (s *Summarizer) Invalidate(nodeID string) {
	s.mu.Lock()
	delete(s.cache, nodeID)
	s.mu.Unlock()
}

func (s *Summarizer) attempt(ctx context.Context, prompt string) (StateRecord, error) {
	opts := []llm.Option{llm.WithLogger(s.logger)}
	if s.model != "" {
		opts = append(opts, llm.WithModel(s.model))
	}
	resp, err := s.client.Generate(ctx, []*llm.Message{llm.NewUserTextMessage(prompt)}, opts...)
	if err != nil {
		return StateRecord{}, err
	}
	return parseStateRecord(resp.Message.Text())
}

func parseStateRecord(text string) (StateRecord, error) {
	var record StateRecord
	if err := json.Unmarshal([]byte(extractJSON(text)), &record); err != nil {
		return StateRecord{}, fmt.Errorf("invalid state summary json: %w", err)
	}
	return record, nil
}

// formatHistory renders the conversation as labeled turns for the summary
// prompt.
func formatHistory(history []*graph.Node) string {
	var b strings.Builder
	for i, n := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(roleLabel(n.Role))
		b.WriteString(": ")
		b.WriteString(n.Content)
	}
	return b.String()
}

func roleLabel(role llm.Role) string {
	s := role.String()
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
