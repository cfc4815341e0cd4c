package graph

import (
	"testing"
	"time"

	"github.com/deepnoodle-ai/forky/llm"
	"github.com/stretchr/testify/require"
)

// forked builds root -> base with two children, left and right.
func forked(t *testing.T) (*Graph, *Node, *Node, *Node) {
	t.Helper()
	g := New()
	base, err := g.Append(g.Root().ID, llm.User, "base")
	require.NoError(t, err)
	left, err := g.Append(base.ID, llm.Assistant, "left")
	require.NoError(t, err)
	right, err := g.Append(base.ID, llm.Assistant, "right")
	require.NoError(t, err)
	return g, base, left, right
}

func TestAncestorsIncludesSelf(t *testing.T) {
	g, base, left, _ := forked(t)

	set, err := g.Ancestors(left.ID)
	require.NoError(t, err)
	require.Len(t, set, 3)
	require.Contains(t, set, left.ID)
	require.Contains(t, set, base.ID)
	require.Contains(t, set, g.Root().ID)

	_, err = g.Ancestors("missing")
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDescendants(t *testing.T) {
	g, base, left, right := forked(t)

	set, err := g.Descendants(base.ID)
	require.NoError(t, err)
	require.Len(t, set, 3)
	require.Contains(t, set, base.ID)
	require.Contains(t, set, left.ID)
	require.Contains(t, set, right.ID)
}

func TestIsAncestor(t *testing.T) {
	g, base, left, right := forked(t)

	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{"root of leaf", g.Root().ID, left.ID, true},
		{"parent of child", base.ID, left.ID, true},
		{"self", left.ID, left.ID, true},
		{"child of parent", left.ID, base.ID, false},
		{"siblings", left.ID, right.ID, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.IsAncestor(tc.a, tc.b)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestAncestryIsAntisymmetric(t *testing.T) {
	g, _, _, _ := forked(t)
	nodes := g.Nodes()
	for _, a := range nodes {
		for _, b := range nodes {
			if a.ID == b.ID {
				continue
			}
			ab, err := g.IsAncestor(a.ID, b.ID)
			require.NoError(t, err)
			ba, err := g.IsAncestor(b.ID, a.ID)
			require.NoError(t, err)
			require.False(t, ab && ba, "%s and %s are mutual ancestors", a.ID, b.ID)
		}
	}
}

func TestLCAOfSiblings(t *testing.T) {
	g, base, left, right := forked(t)

	lca, err := g.LCA(left.ID, right.ID)
	require.NoError(t, err)
	require.Equal(t, base.ID, lca)

	// Symmetric in its arguments.
	lca, err = g.LCA(right.ID, left.ID)
	require.NoError(t, err)
	require.Equal(t, base.ID, lca)
}

func TestLCAWithAncestor(t *testing.T) {
	g, base, left, _ := forked(t)

	lca, err := g.LCA(base.ID, left.ID)
	require.NoError(t, err)
	require.Equal(t, base.ID, lca)

	lca, err = g.LCA(left.ID, left.ID)
	require.NoError(t, err)
	require.Equal(t, left.ID, lca)
}

func TestLCAAfterMergeTieBreak(t *testing.T) {
	// Diamond: root -> base -> {left, right} -> merge, then two branches
	// off merge and base. The common ancestor set of the post-merge
	// branches contains both parents of the merge; the deepest wins.
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	nodes := []*Node{
		{ID: "root", Role: llm.System, Content: RootContent, CreatedAt: base},
		{ID: "a", Role: llm.User, ParentIDs: []string{"root"}, CreatedAt: base.Add(1 * time.Second)},
		{ID: "b", Role: llm.Assistant, ParentIDs: []string{"a"}, CreatedAt: base.Add(2 * time.Second)},
		{ID: "c", Role: llm.Assistant, ParentIDs: []string{"a"}, CreatedAt: base.Add(3 * time.Second)},
		{
			ID: "m", Role: llm.Assistant, ParentIDs: []string{"b", "c"},
			Merge:     &MergeMetadata{LCAID: "a", LeftParentID: "b", RightParentID: "c"},
			CreatedAt: base.Add(4 * time.Second),
		},
		{ID: "x", Role: llm.User, ParentIDs: []string{"m"}, CreatedAt: base.Add(5 * time.Second)},
		{ID: "y", Role: llm.User, ParentIDs: []string{"m"}, CreatedAt: base.Add(6 * time.Second)},
	}
	g, err := FromNodes(nodes, "root")
	require.NoError(t, err)

	lca, err := g.LCA("x", "y")
	require.NoError(t, err)
	require.Equal(t, "m", lca)
}

func TestLCATieBreakByCreationTime(t *testing.T) {
	// Both p and q are parents of both tips, so the common ancestor set
	// has two candidates with no deeper member. The later-created one is
	// the canonical answer.
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	nodes := []*Node{
		{ID: "root", Role: llm.System, Content: RootContent, CreatedAt: base},
		{ID: "p", Role: llm.User, ParentIDs: []string{"root"}, CreatedAt: base.Add(1 * time.Second)},
		{ID: "q", Role: llm.User, ParentIDs: []string{"root"}, CreatedAt: base.Add(2 * time.Second)},
		{
			ID: "s", Role: llm.Assistant, ParentIDs: []string{"p", "q"},
			Merge:     &MergeMetadata{LCAID: "root", LeftParentID: "p", RightParentID: "q"},
			CreatedAt: base.Add(3 * time.Second),
		},
		{
			ID: "t", Role: llm.Assistant, ParentIDs: []string{"p", "q"},
			Merge:     &MergeMetadata{LCAID: "root", LeftParentID: "p", RightParentID: "q"},
			CreatedAt: base.Add(4 * time.Second),
		},
	}
	g, err := FromNodes(nodes, "root")
	require.NoError(t, err)

	lca, err := g.LCA("s", "t")
	require.NoError(t, err)
	require.Equal(t, "q", lca)
}

func TestHistoryStructure(t *testing.T) {
	g := New()
	a, err := g.Append(g.Root().ID, llm.User, "A")
	require.NoError(t, err)
	marker, err := g.Fork(a.ID, "side")
	require.NoError(t, err)
	b, err := g.Append(marker.ID, llm.Assistant, "B")
	require.NoError(t, err)

	history, err := g.History(b.ID)
	require.NoError(t, err)
	require.Equal(t, g.Root().ID, history[0].ID)
	require.Equal(t, b.ID, history[len(history)-1].ID)
	for _, n := range history {
		require.False(t, n.IsForkMarker())
	}
}

func TestHistoryUnknownNode(t *testing.T) {
	g := New()
	_, err := g.History("missing")
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestBranchNameOf(t *testing.T) {
	g := New()
	a, err := g.Append(g.Root().ID, llm.User, "A")
	require.NoError(t, err)
	marker, err := g.Fork(a.ID, "side")
	require.NoError(t, err)
	b, err := g.Append(marker.ID, llm.Assistant, "B")
	require.NoError(t, err)

	name, err := g.BranchNameOf(b.ID)
	require.NoError(t, err)
	require.Equal(t, "side", name)

	name, err = g.BranchNameOf(a.ID)
	require.NoError(t, err)
	require.Equal(t, "", name)
}
