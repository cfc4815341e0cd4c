package forky

import (
	"time"

	"github.com/deepnoodle-ai/forky/graph"
)

// Conversation is a named, persistent conversation DAG. The graph owns the
// nodes and the current-node pointer; the surrounding fields are display and
// bookkeeping metadata.
type Conversation struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time

	// IsActive marks the conversation CLI commands operate on by default.
	// At most one conversation is active per store.
	IsActive bool

	Graph *graph.Graph
}

// ConversationSummary is the lightweight listing form of a conversation.
type ConversationSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	IsActive      bool      `json:"is_active"`
	NodeCount     int       `json:"node_count"`
	CurrentNodeID string    `json:"current_node_id,omitempty"`
}

// SearchResult is one full-text search hit across all conversations.
type SearchResult struct {
	ConversationID   string `json:"conversation_id"`
	ConversationName string `json:"conversation_name"`
	NodeID           string `json:"node_id"`
	Role             string `json:"role"`
	Snippet          string `json:"snippet"`
}
