// Package service exposes the conversation engine to front-ends: CRUD on
// conversations, chat turns, branching, checkout, merge, node deletion, and
// search. All writes to one conversation are serialized by a
// conversation-scoped lock; operations on different conversations proceed
// independently.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deepnoodle-ai/forky"
	"github.com/deepnoodle-ai/forky/graph"
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/forky/merge"
	"github.com/deepnoodle-ai/forky/slogger"
	"github.com/deepnoodle-ai/forky/store"
)

// DefaultLockTimeout is how long an operation waits for a conversation's
// lock before giving up with ErrBusy.
const DefaultLockTimeout = 5 * time.Second

// Service is the conversation engine façade. It owns no graph state
// between operations: each write loads the conversation, mutates it in
// memory, and saves it back atomically while holding the conversation's
// lock.
type Service struct {
	store        store.Store
	client       llm.LLM
	executor     *merge.Executor
	defaultModel string
	systemPrompt string
	timeout      time.Duration
	lockTimeout  time.Duration
	logger       slogger.Logger

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// Options configures a Service.
type Options struct {
	Store  store.Store
	Client llm.LLM

	// Model used when a chat or merge does not name one.
	Model string

	// SystemPrompt prepended to chat completions. Optional.
	SystemPrompt string

	// Timeout applied to each model call. Zero disables the deadline.
	Timeout time.Duration

	// LockTimeout bounds the wait for a conversation lock. Defaults to
	// DefaultLockTimeout.
	LockTimeout time.Duration

	Logger slogger.Logger
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slogger.DefaultLogger
	}
	lockTimeout := opts.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Service{
		store:        opts.Store,
		client:       opts.Client,
		defaultModel: opts.Model,
		systemPrompt: opts.SystemPrompt,
		timeout:      opts.Timeout,
		lockTimeout:  lockTimeout,
		logger:       logger,
		locks:        make(map[string]chan struct{}),
		executor: merge.NewExecutor(merge.ExecutorOptions{
			Client: opts.Client,
			Model:  opts.Model,
			Logger: logger,
		}),
	}, nil
}

// lockFor returns the conversation's lock channel, creating it on first
// use. The channel holds one token; taking the token takes the lock.
func (s *Service) lockFor(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		ch <- struct{}{}
		s.locks[id] = ch
	}
	return ch
}

// acquire takes the conversation lock, waiting up to the lock timeout.
func (s *Service) acquire(ctx context.Context, id string) (release func(), err error) {
	ch := s.lockFor(id)
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case <-ch:
		return func() { ch <- struct{}{} }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", forky.ErrBusy, id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// modelContext applies the service's per-call model deadline.
func (s *Service) modelContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// mapModelError converts transport-level failures into the service's
// stable error kinds.
func mapModelError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", forky.ErrModelTimeout, err)
	}
	return err
}

// ListConversations returns summaries of all conversations.
func (s *Service) ListConversations(ctx context.Context) ([]*forky.ConversationSummary, error) {
	return s.store.ListConversations(ctx)
}

// CreateConversation creates and persists an empty conversation holding
// only its root node.
func (s *Service) CreateConversation(ctx context.Context, name string) (*forky.Conversation, error) {
	now := time.Now().UTC()
	conv := &forky.Conversation{
		ID:        graph.NewID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Graph:     graph.New(),
	}
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.logger.Info("created conversation", "conversation_id", conv.ID, "name", name)
	return conv, nil
}

// DeleteConversation removes a conversation entirely.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()
	return s.store.DeleteConversation(ctx, id)
}

// RenameConversation updates a conversation's display name.
func (s *Service) RenameConversation(ctx context.Context, id, name string) error {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()
	return s.store.RenameConversation(ctx, id, name)
}

// LoadConversation loads a conversation and marks it active.
func (s *Service) LoadConversation(ctx context.Context, id string) (*forky.Conversation, error) {
	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetActiveConversation(ctx, id); err != nil {
		return nil, err
	}
	conv.IsActive = true
	return conv, nil
}

// GetHistory returns the linearized history from the root to the current
// node, fork markers filtered.
func (s *Service) GetHistory(ctx context.Context, id string) ([]*graph.Node, error) {
	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	return conv.Graph.History(conv.Graph.CurrentID())
}

// Checkout moves the conversation's current pointer to a node id or a
// branch name and returns the resolved node id.
func (s *Service) Checkout(ctx context.Context, id, identifier string) (string, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return "", err
	}
	defer release()

	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return "", err
	}
	resolved, err := conv.Graph.Checkout(identifier)
	if err != nil {
		return "", err
	}
	conv.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return "", err
	}
	return resolved, nil
}

// Fork inserts a fork marker below the current node and checks it out.
// When branchName is empty a name is generated.
func (s *Service) Fork(ctx context.Context, id, branchName string) (string, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return "", err
	}
	defer release()

	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return "", err
	}
	if branchName == "" {
		branchName = "branch-" + graph.NewID()[:8]
	}
	marker, err := conv.Graph.Fork(conv.Graph.CurrentID(), branchName)
	if err != nil {
		return "", err
	}
	conv.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return "", err
	}
	s.logger.Info("forked conversation", "conversation_id", id, "branch", branchName, "marker_id", marker.ID)
	return marker.ID, nil
}

// DeleteNode removes a node, splicing its children onto its parents.
// Summaries cached for the node or anything downstream of it are
// invalidated, since their histories change.
func (s *Service) DeleteNode(ctx context.Context, id, nodeID string) error {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return err
	}
	stale, err := conv.Graph.Descendants(nodeID)
	if err != nil {
		return err
	}
	if err := conv.Graph.DeleteNode(nodeID); err != nil {
		return err
	}
	conv.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return err
	}
	staleIDs := make([]string, 0, len(stale))
	for staleID := range stale {
		s.executor.Summarizer().Invalidate(staleID)
		staleIDs = append(staleIDs, staleID)
	}
	if err := s.store.DeleteNodeSummaries(ctx, staleIDs); err != nil {
		s.logger.Warn("failed to drop persisted summaries", "conversation_id", id, "error", err)
	}
	return nil
}

// CheckMergeEligibility reports whether two nodes can merge and the LCA
// they would merge through.
func (s *Service) CheckMergeEligibility(ctx context.Context, id, a, b string) (merge.Eligibility, error) {
	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return merge.Eligibility{}, err
	}
	return merge.CheckEligibility(conv.Graph, a, b)
}

// MergeOutcome reports a committed merge.
type MergeOutcome struct {
	NewNodeID      string                 `json:"new_node_id"`
	HasConflicts   bool                   `json:"has_conflicts"`
	Conflicts      []graph.ConflictRecord `json:"conflicts,omitempty"`
	StructuralOnly bool                   `json:"structural_only,omitempty"`
}

// MergeBranches merges targetID into the conversation's current node. The
// lock is held for the whole pipeline so the merge node and the current
// pointer commit atomically with respect to other writers. Nothing is
// persisted if any pipeline step fails.
func (s *Service) MergeBranches(ctx context.Context, id, targetID, mergePrompt string) (*MergeOutcome, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	s.seedSummaries(ctx, id)

	mctx, cancel := s.modelContext(ctx)
	defer cancel()
	result, err := s.executor.Merge(mctx, conv.Graph, conv.Graph.CurrentID(), targetID, mergePrompt)
	if err != nil {
		return nil, mapModelError(err)
	}

	node, err := conv.Graph.AppendMerge(result.Content, result.Metadata)
	if err != nil {
		return nil, err
	}
	conv.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.persistSummaries(ctx, id, result.Metadata)
	return &MergeOutcome{
		NewNodeID:      node.ID,
		HasConflicts:   result.HasConflicts,
		Conflicts:      result.Metadata.Conflicts,
		StructuralOnly: result.StructuralOnly,
	}, nil
}

// seedSummaries primes the summarizer cache with summaries persisted by
// earlier merges so unchanged branches skip their model call.
func (s *Service) seedSummaries(ctx context.Context, id string) {
	persisted, err := s.store.LoadNodeSummaries(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load persisted summaries", "conversation_id", id, "error", err)
		return
	}
	for nodeID, raw := range persisted {
		var record merge.StateRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		s.executor.Summarizer().Seed(nodeID, record)
	}
}

// persistSummaries stores the summaries computed for the merge's three
// anchor nodes. Best effort: a failure here does not undo the merge.
func (s *Service) persistSummaries(ctx context.Context, id string, meta graph.MergeMetadata) {
	summaries := make(map[string]string)
	for _, nodeID := range []string{meta.LCAID, meta.LeftParentID, meta.RightParentID} {
		record, ok := s.executor.Summarizer().Cached(nodeID)
		if !ok {
			continue
		}
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		summaries[nodeID] = string(data)
	}
	if err := s.store.SaveNodeSummaries(ctx, id, summaries); err != nil {
		s.logger.Warn("failed to persist state summaries", "conversation_id", id, "error", err)
	}
}

// Search runs a full-text query across all conversations.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*forky.SearchResult, error) {
	return s.store.Search(ctx, query, limit)
}

// AvailableModels lists the models the configured provider offers, when it
// can enumerate them.
func (s *Service) AvailableModels() []llm.ModelInfo {
	if lister, ok := s.client.(llm.ModelLister); ok {
		return lister.AvailableModels()
	}
	return nil
}
