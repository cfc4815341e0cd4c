package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deepnoodle-ai/forky"
	"github.com/deepnoodle-ai/forky/graph"
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/forky/slogger"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const timeFormat = time.RFC3339Nano

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger slogger.Logger
}

// SQLiteStoreOptions configures a SQLiteStore.
type SQLiteStoreOptions struct {
	Path   string
	Logger slogger.Logger
}

// NewSQLiteStore opens (and if needed creates) the database at the given
// path and applies the schema.
func NewSQLiteStore(opts SQLiteStoreOptions) (*SQLiteStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slogger.DefaultLogger
	}
	path := opts.Path
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db, path: opts.Path, logger: logger}, nil
}

// Path returns the database file path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveConversation writes the conversation in one transaction, replacing
// the stored node set with the graph's current nodes. The FTS index
// follows via triggers.
func (s *SQLiteStore) SaveConversation(ctx context.Context, conv *forky.Conversation) error {
	if conv == nil || conv.Graph == nil {
		return fmt.Errorf("cannot save nil conversation")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, name, current_node_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			current_node_id = excluded.current_node_id,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		conv.ID, conv.Name, conv.Graph.CurrentID(), boolToInt(conv.IsActive),
		conv.CreatedAt.UTC().Format(timeFormat), conv.UpdatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM node_parents
		WHERE node_id IN (SELECT id FROM nodes WHERE conversation_id = ?)`, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to clear node parents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}

	for _, n := range conv.Graph.Nodes() {
		mergeJSON, err := marshalNullable(n.Merge)
		if err != nil {
			return fmt.Errorf("failed to encode merge metadata for node %s: %w", n.ID, err)
		}
		var attachmentsJSON any
		if len(n.Attachments) > 0 {
			data, err := json.Marshal(n.Attachments)
			if err != nil {
				return fmt.Errorf("failed to encode attachments for node %s: %w", n.ID, err)
			}
			attachmentsJSON = string(data)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nodes (id, conversation_id, role, content, branch_name, created_at, merge_metadata, attachments)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, conv.ID, string(n.Role), n.Content, n.BranchName,
			n.CreatedAt.UTC().Format(timeFormat), mergeJSON, attachmentsJSON)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.ID, err)
		}
		for ordinal, parentID := range n.ParentIDs {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO node_parents (node_id, parent_id, ordinal)
				VALUES (?, ?, ?)`, n.ID, parentID, ordinal)
			if err != nil {
				return fmt.Errorf("failed to insert parent edge %s->%s: %w", n.ID, parentID, err)
			}
		}
	}

	// Drop cached summaries for nodes that no longer exist.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM node_summaries
		WHERE conversation_id = ?
		AND node_id NOT IN (SELECT id FROM nodes WHERE conversation_id = ?)`,
		conv.ID, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to prune node summaries: %w", err)
	}
	return tx.Commit()
}

// LoadConversation reads the conversation and rebuilds its graph. The
// rebuilt graph is validated; a violation surfaces as CorruptStoreError
// rather than a half-loaded conversation.
func (s *SQLiteStore) LoadConversation(ctx context.Context, id string) (*forky.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, current_node_id, is_active, created_at, updated_at
		FROM conversations WHERE id = ?`, id)

	var conv forky.Conversation
	var currentNodeID, createdAt, updatedAt string
	var isActive int
	err := row.Scan(&conv.ID, &conv.Name, &currentNodeID, &isActive, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", forky.ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.IsActive = isActive != 0
	if conv.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, &forky.CorruptStoreError{ConversationID: id, Detail: fmt.Errorf("bad created_at: %w", err)}
	}
	if conv.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, &forky.CorruptStoreError{ConversationID: id, Detail: fmt.Errorf("bad updated_at: %w", err)}
	}

	nodes, err := s.loadNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := graph.FromNodes(nodes, currentNodeID)
	if err != nil {
		return nil, &forky.CorruptStoreError{ConversationID: id, Detail: err}
	}
	conv.Graph = g
	return &conv, nil
}

func (s *SQLiteStore) loadNodes(ctx context.Context, conversationID string) ([]*graph.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, branch_name, created_at, merge_metadata, attachments
		FROM nodes WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*graph.Node
	byID := make(map[string]*graph.Node)
	for rows.Next() {
		var n graph.Node
		var role, createdAt string
		var mergeJSON, attachmentsJSON sql.NullString
		if err := rows.Scan(&n.ID, &role, &n.Content, &n.BranchName, &createdAt, &mergeJSON, &attachmentsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Role = llm.Role(role)
		if n.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, &forky.CorruptStoreError{ConversationID: conversationID, Detail: fmt.Errorf("node %s: bad created_at: %w", n.ID, err)}
		}
		if mergeJSON.Valid && mergeJSON.String != "" {
			var meta graph.MergeMetadata
			if err := json.Unmarshal([]byte(mergeJSON.String), &meta); err != nil {
				return nil, &forky.CorruptStoreError{ConversationID: conversationID, Detail: fmt.Errorf("node %s: bad merge metadata: %w", n.ID, err)}
			}
			n.Merge = &meta
		}
		if attachmentsJSON.Valid && attachmentsJSON.String != "" {
			if err := json.Unmarshal([]byte(attachmentsJSON.String), &n.Attachments); err != nil {
				return nil, &forky.CorruptStoreError{ConversationID: conversationID, Detail: fmt.Errorf("node %s: bad attachments: %w", n.ID, err)}
			}
		}
		nodes = append(nodes, &n)
		byID[n.ID] = &n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate nodes: %w", err)
	}

	parentRows, err := s.db.QueryContext(ctx, `
		SELECT np.node_id, np.parent_id
		FROM node_parents np
		JOIN nodes n ON np.node_id = n.id
		WHERE n.conversation_id = ?
		ORDER BY np.node_id, np.ordinal`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parent edges: %w", err)
	}
	defer parentRows.Close()
	for parentRows.Next() {
		var nodeID, parentID string
		if err := parentRows.Scan(&nodeID, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan parent edge: %w", err)
		}
		n, ok := byID[nodeID]
		if !ok {
			return nil, &forky.CorruptStoreError{ConversationID: conversationID, Detail: fmt.Errorf("parent edge references unknown node %s", nodeID)}
		}
		n.ParentIDs = append(n.ParentIDs, parentID)
	}
	if err := parentRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parent edges: %w", err)
	}
	return nodes, nil
}

// ListConversations returns all conversations, most recently updated
// first, with their node counts.
func (s *SQLiteStore) ListConversations(ctx context.Context) ([]*forky.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.current_node_id, c.is_active, c.created_at, c.updated_at, COUNT(n.id)
		FROM conversations c
		LEFT JOIN nodes n ON n.conversation_id = c.id
		GROUP BY c.id
		ORDER BY c.updated_at DESC, c.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []*forky.ConversationSummary
	for rows.Next() {
		var sum forky.ConversationSummary
		var createdAt, updatedAt string
		var isActive int
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.CurrentNodeID, &isActive, &createdAt, &updatedAt, &sum.NodeCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		sum.IsActive = isActive != 0
		if sum.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("conversation %s: bad created_at: %w", sum.ID, err)
		}
		if sum.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
			return nil, fmt.Errorf("conversation %s: bad updated_at: %w", sum.ID, err)
		}
		out = append(out, &sum)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its nodes.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM node_parents
		WHERE node_id IN (SELECT id FROM nodes WHERE conversation_id = ?)`, id)
	if err != nil {
		return fmt.Errorf("failed to delete parent edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM node_summaries WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete node summaries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", forky.ErrConversationNotFound, id)
	}
	return tx.Commit()
}

// RenameConversation updates a conversation's display name.
func (s *SQLiteStore) RenameConversation(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", forky.ErrConversationNotFound, id)
	}
	return nil
}

// SetActiveConversation marks the given conversation active and clears the
// flag on every other conversation.
func (s *SQLiteStore) SetActiveConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET is_active = 0 WHERE is_active = 1`); err != nil {
		return fmt.Errorf("failed to clear active flags: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET is_active = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to set active flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", forky.ErrConversationNotFound, id)
	}
	return tx.Commit()
}

// SaveNodeSummaries upserts the given summary JSON per node id.
func (s *SQLiteStore) SaveNodeSummaries(ctx context.Context, conversationID string, summaries map[string]string) error {
	if len(summaries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeFormat)
	for nodeID, record := range summaries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO node_summaries (node_id, conversation_id, record, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(node_id) DO UPDATE SET
				record = excluded.record,
				updated_at = excluded.updated_at`,
			nodeID, conversationID, record, now)
		if err != nil {
			return fmt.Errorf("failed to upsert summary for node %s: %w", nodeID, err)
		}
	}
	return tx.Commit()
}

// LoadNodeSummaries returns all persisted summary JSON for a conversation.
func (s *SQLiteStore) LoadNodeSummaries(ctx context.Context, conversationID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, record FROM node_summaries WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load node summaries: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var nodeID, record string
		if err := rows.Scan(&nodeID, &record); err != nil {
			return nil, fmt.Errorf("failed to scan node summary: %w", err)
		}
		out[nodeID] = record
	}
	return out, rows.Err()
}

// DeleteNodeSummaries removes persisted summaries for the given nodes.
func (s *SQLiteStore) DeleteNodeSummaries(ctx context.Context, nodeIDs []string) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, nodeID := range nodeIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM node_summaries WHERE node_id = ?`, nodeID); err != nil {
			return fmt.Errorf("failed to delete summary for node %s: %w", nodeID, err)
		}
	}
	return tx.Commit()
}

func marshalNullable(v *graph.MergeMetadata) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
