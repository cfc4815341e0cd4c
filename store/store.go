// Package store persists conversations. The SQLite implementation keeps
// each conversation's DAG in relational form (nodes plus an ordered parent
// table) and maintains a full-text index over node content.
package store

import (
	"context"

	"github.com/deepnoodle-ai/forky"
)

// Store is the persistence boundary for conversations. Writes are atomic
// per conversation: a save either lands completely or not at all.
type Store interface {
	// SaveConversation writes the conversation and its full graph,
	// replacing any previously stored version.
	SaveConversation(ctx context.Context, conv *forky.Conversation) error

	// LoadConversation reads a conversation and validates its graph.
	// Returns forky.ErrConversationNotFound for unknown ids and a
	// *forky.CorruptStoreError when the stored graph violates an
	// invariant.
	LoadConversation(ctx context.Context, id string) (*forky.Conversation, error)

	// ListConversations returns summaries of all conversations, most
	// recently updated first.
	ListConversations(ctx context.Context) ([]*forky.ConversationSummary, error)

	// DeleteConversation removes a conversation and all of its nodes.
	DeleteConversation(ctx context.Context, id string) error

	// RenameConversation updates a conversation's display name.
	RenameConversation(ctx context.Context, id, name string) error

	// SetActiveConversation marks one conversation active and clears the
	// flag on all others.
	SetActiveConversation(ctx context.Context, id string) error

	// SaveNodeSummaries upserts cached state-summary JSON per node id so
	// later merges of unchanged branches skip the summary model call.
	SaveNodeSummaries(ctx context.Context, conversationID string, summaries map[string]string) error

	// LoadNodeSummaries returns the persisted state-summary JSON for every
	// node in the conversation that has one.
	LoadNodeSummaries(ctx context.Context, conversationID string) (map[string]string, error)

	// DeleteNodeSummaries removes persisted summaries for the given nodes.
	DeleteNodeSummaries(ctx context.Context, nodeIDs []string) error

	// Search runs a full-text query over node content across all
	// conversations.
	Search(ctx context.Context, query string, limit int) ([]*forky.SearchResult, error)

	// Close releases the underlying database.
	Close() error
}
