package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/deepnoodle-ai/forky"
	"github.com/deepnoodle-ai/forky/graph"
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(SQLiteStoreOptions{
		Path: filepath.Join(t.TempDir(), "forky.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newConversation(t *testing.T, name string) *forky.Conversation {
	t.Helper()
	now := time.Now().UTC()
	return &forky.Conversation{
		ID:        graph.NewID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Graph:     graph.New(),
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv := newConversation(t, "roundtrip")
	g := conv.Graph
	q, err := g.Append(g.Root().ID, llm.User, "what should we build?")
	require.NoError(t, err)
	a, err := g.Append(q.ID, llm.Assistant, "a conversation engine")
	require.NoError(t, err)
	marker, err := g.Fork(a.ID, "alt-design")
	require.NoError(t, err)
	alt, err := g.Append(marker.ID, llm.User, "what about a different design?")
	require.NoError(t, err)
	other, err := g.Append(a.ID, llm.User, "keep going with this design")
	require.NoError(t, err)
	merged, err := g.AppendMerge("both designs considered", graph.MergeMetadata{
		LCAID:         a.ID,
		LeftParentID:  other.ID,
		RightParentID: alt.ID,
		Conflicts: []graph.ConflictRecord{
			{Category: "decisions", LeftItem: "x", RightItem: "y", Kind: graph.ConflictDiverges},
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.SaveConversation(ctx, conv))

	loaded, err := s.LoadConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, conv.ID, loaded.ID)
	require.Equal(t, "roundtrip", loaded.Name)
	require.Equal(t, merged.ID, loaded.Graph.CurrentID())
	require.Equal(t, g.Len(), loaded.Graph.Len())

	for _, orig := range g.Nodes() {
		got, err := loaded.Graph.Node(orig.ID)
		require.NoError(t, err)
		require.Equal(t, orig.Role, got.Role)
		require.Equal(t, orig.Content, got.Content)
		require.Equal(t, orig.BranchName, got.BranchName)
		require.Equal(t, orig.ParentIDs, got.ParentIDs)
		require.True(t, orig.CreatedAt.Equal(got.CreatedAt), "node %s timestamp", orig.ID)
	}

	gotMerge, err := loaded.Graph.Node(merged.ID)
	require.NoError(t, err)
	require.NotNil(t, gotMerge.Merge)
	require.Equal(t, a.ID, gotMerge.Merge.LCAID)
	require.Equal(t, other.ID, gotMerge.Merge.LeftParentID)
	require.Equal(t, alt.ID, gotMerge.Merge.RightParentID)
	require.Len(t, gotMerge.Merge.Conflicts, 1)
	require.Equal(t, graph.ConflictDiverges, gotMerge.Merge.Conflicts[0].Kind)
}

func TestSaveReplacesDeletedNodes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv := newConversation(t, "deletions")
	g := conv.Graph
	q, err := g.Append(g.Root().ID, llm.User, "first question")
	require.NoError(t, err)
	a, err := g.Append(q.ID, llm.Assistant, "first answer")
	require.NoError(t, err)
	require.NoError(t, s.SaveConversation(ctx, conv))

	require.NoError(t, g.DeleteNode(q.ID))
	require.NoError(t, s.SaveConversation(ctx, conv))

	loaded, err := s.LoadConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, g.Len(), loaded.Graph.Len())
	_, err = loaded.Graph.Node(q.ID)
	require.ErrorIs(t, err, graph.ErrNodeNotFound)
	got, err := loaded.Graph.Node(a.ID)
	require.NoError(t, err)
	require.Equal(t, []string{g.Root().ID}, got.ParentIDs)
}

func TestSaveAfterDeletingMergeLCA(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv := newConversation(t, "lca deletion")
	g := conv.Graph
	a, err := g.Append(g.Root().ID, llm.User, "shared base")
	require.NoError(t, err)
	b, err := g.Append(a.ID, llm.Assistant, "main branch")
	require.NoError(t, err)
	marker, err := g.Fork(a.ID, "alt")
	require.NoError(t, err)
	c, err := g.Append(marker.ID, llm.Assistant, "alt branch")
	require.NoError(t, err)
	merged, err := g.AppendMerge("combined", graph.MergeMetadata{
		LCAID:         a.ID,
		LeftParentID:  b.ID,
		RightParentID: c.ID,
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveConversation(ctx, conv))

	// Deleting the merge's common ancestor must leave a graph that still
	// loads: the persisted metadata cannot reference the vanished node.
	require.NoError(t, g.DeleteNode(a.ID))
	require.NoError(t, s.SaveConversation(ctx, conv))

	loaded, err := s.LoadConversation(ctx, conv.ID)
	require.NoError(t, err)
	got, err := loaded.Graph.Node(merged.ID)
	require.NoError(t, err)
	require.Equal(t, g.Root().ID, got.Merge.LCAID)
}

func TestLoadUnknownConversation(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadConversation(context.Background(), "missing")
	require.ErrorIs(t, err, forky.ErrConversationNotFound)
}

func TestLoadCorruptCurrentPointer(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "forky.db")
	s, err := NewSQLiteStore(SQLiteStoreOptions{Path: path})
	require.NoError(t, err)
	defer s.Close()

	conv := newConversation(t, "corrupt")
	_, err = conv.Graph.Append(conv.Graph.Root().ID, llm.User, "hello")
	require.NoError(t, err)
	require.NoError(t, s.SaveConversation(ctx, conv))

	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`UPDATE conversations SET current_node_id = 'dangling' WHERE id = ?`, conv.ID)
	require.NoError(t, err)

	_, err = s.LoadConversation(ctx, conv.ID)
	var corrupt *forky.CorruptStoreError
	require.ErrorAs(t, err, &corrupt)
	require.Equal(t, conv.ID, corrupt.ConversationID)
}

func TestListConversations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := newConversation(t, "first")
	require.NoError(t, s.SaveConversation(ctx, first))

	second := newConversation(t, "second")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	second.UpdatedAt = first.UpdatedAt.Add(time.Minute)
	_, err := second.Graph.Append(second.Graph.Root().ID, llm.User, "hi")
	require.NoError(t, err)
	require.NoError(t, s.SaveConversation(ctx, second))
	require.NoError(t, s.SetActiveConversation(ctx, second.ID))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Most recently updated first.
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, 2, list[0].NodeCount)
	require.True(t, list[0].IsActive)
	require.Equal(t, first.ID, list[1].ID)
	require.Equal(t, 1, list[1].NodeCount)
	require.False(t, list[1].IsActive)
}

func TestSetActiveConversationIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := newConversation(t, "first")
	second := newConversation(t, "second")
	require.NoError(t, s.SaveConversation(ctx, first))
	require.NoError(t, s.SaveConversation(ctx, second))

	require.NoError(t, s.SetActiveConversation(ctx, first.ID))
	require.NoError(t, s.SetActiveConversation(ctx, second.ID))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	active := 0
	for _, sum := range list {
		if sum.IsActive {
			active++
			require.Equal(t, second.ID, sum.ID)
		}
	}
	require.Equal(t, 1, active)

	require.ErrorIs(t, s.SetActiveConversation(ctx, "missing"), forky.ErrConversationNotFound)
}

func TestRenameConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv := newConversation(t, "before")
	require.NoError(t, s.SaveConversation(ctx, conv))
	require.NoError(t, s.RenameConversation(ctx, conv.ID, "after"))

	loaded, err := s.LoadConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, "after", loaded.Name)

	require.ErrorIs(t, s.RenameConversation(ctx, "missing", "x"), forky.ErrConversationNotFound)
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv := newConversation(t, "doomed")
	_, err := conv.Graph.Append(conv.Graph.Root().ID, llm.User, "hello")
	require.NoError(t, err)
	require.NoError(t, s.SaveConversation(ctx, conv))

	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	_, err = s.LoadConversation(ctx, conv.ID)
	require.ErrorIs(t, err, forky.ErrConversationNotFound)

	// Deleted nodes leave the search index too.
	results, err := s.Search(ctx, "hello", 10)
	require.NoError(t, err)
	require.Empty(t, results)

	require.ErrorIs(t, s.DeleteConversation(ctx, conv.ID), forky.ErrConversationNotFound)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv := newConversation(t, "searchable")
	g := conv.Graph
	q, err := g.Append(g.Root().ID, llm.User, "tell me about goroutines and channels")
	require.NoError(t, err)
	_, err = g.Append(q.ID, llm.Assistant, "goroutines are lightweight threads")
	require.NoError(t, err)
	require.NoError(t, s.SaveConversation(ctx, conv))

	results, err := s.Search(ctx, "goroutines", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.Equal(t, conv.ID, r.ConversationID)
		require.Equal(t, "searchable", r.ConversationName)
		require.Contains(t, r.Snippet, "<mark>goroutines</mark>")
	}

	results, err = s.Search(ctx, "nonexistent-term", 10)
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = s.Search(ctx, "   ", 10)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestNodeSummaries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conv := newConversation(t, "summaries")
	g := conv.Graph
	a, err := g.Append(g.Root().ID, llm.User, "A")
	require.NoError(t, err)
	b, err := g.Append(a.ID, llm.Assistant, "B")
	require.NoError(t, err)
	require.NoError(t, s.SaveConversation(ctx, conv))

	require.NoError(t, s.SaveNodeSummaries(ctx, conv.ID, map[string]string{
		a.ID: `{"facts":["x=1"],"topic":"t"}`,
		b.ID: `{"facts":["x=1","y=2"],"topic":"t"}`,
	}))

	loaded, err := s.LoadNodeSummaries(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, `{"facts":["x=1"],"topic":"t"}`, loaded[a.ID])

	// Upsert replaces the stored record.
	require.NoError(t, s.SaveNodeSummaries(ctx, conv.ID, map[string]string{
		a.ID: `{"facts":["x=2"],"topic":"t"}`,
	}))
	loaded, err = s.LoadNodeSummaries(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, `{"facts":["x=2"],"topic":"t"}`, loaded[a.ID])

	// Saving the conversation prunes summaries for nodes that are gone.
	require.NoError(t, g.DeleteNode(b.ID))
	require.NoError(t, s.SaveConversation(ctx, conv))
	loaded, err = s.LoadNodeSummaries(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.NotContains(t, loaded, b.ID)

	require.NoError(t, s.DeleteNodeSummaries(ctx, []string{a.ID}))
	loaded, err = s.LoadNodeSummaries(ctx, conv.ID)
	require.NoError(t, err)
	require.Empty(t, loaded)

	// Deleting the conversation clears any remaining summaries.
	require.NoError(t, s.SaveNodeSummaries(ctx, conv.ID, map[string]string{a.ID: `{"topic":"t"}`}))
	require.NoError(t, s.DeleteConversation(ctx, conv.ID))
	loaded, err = s.LoadNodeSummaries(ctx, conv.ID)
	require.NoError(t, err)
	require.Empty(t, loaded)
}
