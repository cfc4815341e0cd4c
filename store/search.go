package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/forky"
)

// DefaultSearchLimit caps result counts when the caller passes no limit.
const DefaultSearchLimit = 50

// Search runs a full-text query over node content across all
// conversations. Matches come back ranked, each with a highlighted
// snippet.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]*forky.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	// Quote the query so FTS5 operators are literal, then prefix-match.
	term := `"` + strings.ReplaceAll(query, `"`, `""`) + `"*`

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			fts.node_id,
			fts.conversation_id,
			c.name,
			fts.role,
			snippet(nodes_fts, 2, '<mark>', '</mark>', '...', 32)
		FROM nodes_fts fts
		JOIN conversations c ON fts.conversation_id = c.id
		WHERE nodes_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var out []*forky.SearchResult
	for rows.Next() {
		var r forky.SearchResult
		if err := rows.Scan(&r.NodeID, &r.ConversationID, &r.ConversationName, &r.Role, &r.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
