package graph

import (
	"testing"
	"time"

	"github.com/deepnoodle-ai/forky/llm"
	"github.com/stretchr/testify/require"
)

func TestNewGraph(t *testing.T) {
	g := New()
	require.Equal(t, 1, g.Len())

	root := g.Root()
	require.NotNil(t, root)
	require.Equal(t, llm.System, root.Role)
	require.Equal(t, RootContent, root.Content)
	require.True(t, root.IsRoot())
	require.Equal(t, root.ID, g.CurrentID())
	require.NoError(t, g.Validate())
}

func TestLinearAppend(t *testing.T) {
	g := New()
	hi, err := g.Append(g.Root().ID, llm.User, "hi")
	require.NoError(t, err)
	require.Equal(t, hi.ID, g.CurrentID())

	hello, err := g.Append(hi.ID, llm.Assistant, "hello")
	require.NoError(t, err)
	require.Equal(t, hello.ID, g.CurrentID())

	history, err := g.History(g.CurrentID())
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, []string{RootContent, "hi", "hello"}, contents(history))
	require.Equal(t, []llm.Role{llm.System, llm.User, llm.Assistant}, roles(history))
	require.NoError(t, g.Validate())
}

func TestAppendInvalidParent(t *testing.T) {
	g := New()
	_, err := g.Append("missing", llm.User, "hi")
	require.ErrorIs(t, err, ErrInvalidParent)
}

func TestForkAndCheckout(t *testing.T) {
	g := New()
	hi, err := g.Append(g.Root().ID, llm.User, "hi")
	require.NoError(t, err)
	hello, err := g.Append(hi.ID, llm.Assistant, "hello")
	require.NoError(t, err)

	marker, err := g.Fork(g.Root().ID, "alt")
	require.NoError(t, err)
	require.True(t, marker.IsForkMarker())
	require.Equal(t, "alt", marker.BranchName)
	require.Equal(t, marker.ID, g.CurrentID())

	other, err := g.Append(marker.ID, llm.User, "other")
	require.NoError(t, err)
	reply, err := g.Append(other.ID, llm.Assistant, "reply")
	require.NoError(t, err)

	// The fork marker is structure, not dialogue.
	history, err := g.History(reply.ID)
	require.NoError(t, err)
	require.Equal(t, []string{RootContent, "other", "reply"}, contents(history))

	// Checkout by node id restores the original branch.
	id, err := g.Checkout(hello.ID)
	require.NoError(t, err)
	require.Equal(t, hello.ID, id)
	require.Equal(t, hello.ID, g.CurrentID())

	history, err = g.History(g.CurrentID())
	require.NoError(t, err)
	require.Equal(t, []string{RootContent, "hi", "hello"}, contents(history))

	// Checkout by branch name lands on the branch tip.
	id, err = g.Checkout("alt")
	require.NoError(t, err)
	require.Equal(t, reply.ID, id)
	require.NoError(t, g.Validate())
}

func TestCheckoutUnknownIdentifier(t *testing.T) {
	g := New()
	_, err := g.Checkout("no-such-branch")
	require.ErrorIs(t, err, ErrUnknownIdentifier)
}

func TestCheckoutLatestMarkerWins(t *testing.T) {
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	root := &Node{ID: "root", Role: llm.System, Content: RootContent, CreatedAt: base}
	oldMarker := &Node{
		ID: "m1", Role: llm.System, Content: ForkMarkerContent,
		BranchName: "alt", ParentIDs: []string{"root"}, CreatedAt: base.Add(time.Second),
	}
	oldTip := &Node{
		ID: "t1", Role: llm.User, Content: "old",
		ParentIDs: []string{"m1"}, CreatedAt: base.Add(2 * time.Second),
	}
	newMarker := &Node{
		ID: "m2", Role: llm.System, Content: ForkMarkerContent,
		BranchName: "alt", ParentIDs: []string{"root"}, CreatedAt: base.Add(3 * time.Second),
	}
	newTip := &Node{
		ID: "t2", Role: llm.User, Content: "new",
		ParentIDs: []string{"m2"}, CreatedAt: base.Add(4 * time.Second),
	}
	g, err := FromNodes([]*Node{root, oldMarker, oldTip, newMarker, newTip}, "root")
	require.NoError(t, err)

	id, err := g.Checkout("alt")
	require.NoError(t, err)
	require.Equal(t, "t2", id)
}

func TestBranchTipPicksLatestChild(t *testing.T) {
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	root := &Node{ID: "root", Role: llm.System, Content: RootContent, CreatedAt: base}
	marker := &Node{
		ID: "m", Role: llm.System, Content: ForkMarkerContent,
		BranchName: "alt", ParentIDs: []string{"root"}, CreatedAt: base.Add(time.Second),
	}
	early := &Node{
		ID: "early", Role: llm.User, Content: "early",
		ParentIDs: []string{"m"}, CreatedAt: base.Add(2 * time.Second),
	}
	late := &Node{
		ID: "late", Role: llm.User, Content: "late",
		ParentIDs: []string{"m"}, CreatedAt: base.Add(3 * time.Second),
	}
	deeper := &Node{
		ID: "deeper", Role: llm.Assistant, Content: "deeper",
		ParentIDs: []string{"late"}, CreatedAt: base.Add(4 * time.Second),
	}
	g, err := FromNodes([]*Node{root, marker, early, late, deeper}, "root")
	require.NoError(t, err)

	id, err := g.Checkout("alt")
	require.NoError(t, err)
	require.Equal(t, "deeper", id)
}

func TestAppendMerge(t *testing.T) {
	g := New()
	base, err := g.Append(g.Root().ID, llm.User, "base")
	require.NoError(t, err)
	left, err := g.Append(base.ID, llm.Assistant, "left")
	require.NoError(t, err)
	right, err := g.Append(base.ID, llm.Assistant, "right")
	require.NoError(t, err)

	merged, err := g.AppendMerge("combined", MergeMetadata{
		LCAID:         base.ID,
		LeftParentID:  left.ID,
		RightParentID: right.ID,
	})
	require.NoError(t, err)
	require.True(t, merged.IsMerge())
	require.Equal(t, []string{left.ID, right.ID}, merged.ParentIDs)
	require.Equal(t, merged.ID, g.CurrentID())
	require.NoError(t, g.Validate())

	// History through a merge node follows the left parent.
	leftHistory, err := g.History(left.ID)
	require.NoError(t, err)
	mergedHistory, err := g.History(merged.ID)
	require.NoError(t, err)
	require.Len(t, mergedHistory, len(leftHistory)+1)
	for i, n := range leftHistory {
		require.Equal(t, n.ID, mergedHistory[i].ID)
	}
	require.Equal(t, merged.ID, mergedHistory[len(mergedHistory)-1].ID)
}

func TestAppendMergeRejectsBadInput(t *testing.T) {
	g := New()
	base, err := g.Append(g.Root().ID, llm.User, "base")
	require.NoError(t, err)
	left, err := g.Append(base.ID, llm.Assistant, "left")
	require.NoError(t, err)

	_, err = g.AppendMerge("x", MergeMetadata{LeftParentID: left.ID, RightParentID: left.ID})
	require.Error(t, err)

	_, err = g.AppendMerge("x", MergeMetadata{LCAID: base.ID, LeftParentID: left.ID, RightParentID: "missing"})
	require.ErrorIs(t, err, ErrInvalidParent)

	_, err = g.AppendMerge("x", MergeMetadata{LCAID: left.ID, LeftParentID: base.ID, RightParentID: left.ID})
	require.Error(t, err, "lca must be an ancestor of both parents")
}

func TestDeleteNodeWithInheritance(t *testing.T) {
	g := New()
	a, err := g.Append(g.Root().ID, llm.User, "A")
	require.NoError(t, err)
	b, err := g.Append(a.ID, llm.Assistant, "B")
	require.NoError(t, err)
	c, err := g.Append(b.ID, llm.User, "C")
	require.NoError(t, err)

	require.NoError(t, g.DeleteNode(b.ID))

	_, err = g.Node(b.ID)
	require.ErrorIs(t, err, ErrNodeNotFound)
	got, err := g.Node(c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{a.ID}, got.ParentIDs)
	// The pointer sat below the deleted node; the rewire keeps it there.
	require.Equal(t, c.ID, g.CurrentID())
	require.NoError(t, g.Validate())

	history, err := g.History(c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{RootContent, "A", "C"}, contents(history))
}

func TestDeleteCurrentRepositionsToParent(t *testing.T) {
	g := New()
	a, err := g.Append(g.Root().ID, llm.User, "A")
	require.NoError(t, err)
	b, err := g.Append(a.ID, llm.Assistant, "B")
	require.NoError(t, err)
	require.Equal(t, b.ID, g.CurrentID())

	require.NoError(t, g.DeleteNode(b.ID))
	require.Equal(t, a.ID, g.CurrentID())
	require.NoError(t, g.Validate())
}

func TestDeleteRootRefused(t *testing.T) {
	g := New()
	require.ErrorIs(t, g.DeleteNode(g.Root().ID), ErrCannotDeleteRoot)
}

func TestDeleteUnknownNode(t *testing.T) {
	g := New()
	require.ErrorIs(t, g.DeleteNode("missing"), ErrNodeNotFound)
}

func TestDeleteMergeParentRewritesMetadata(t *testing.T) {
	g := New()
	base, err := g.Append(g.Root().ID, llm.User, "base")
	require.NoError(t, err)
	left, err := g.Append(base.ID, llm.Assistant, "left")
	require.NoError(t, err)
	right, err := g.Append(base.ID, llm.Assistant, "right")
	require.NoError(t, err)
	merged, err := g.AppendMerge("combined", MergeMetadata{
		LCAID:         base.ID,
		LeftParentID:  left.ID,
		RightParentID: right.ID,
	})
	require.NoError(t, err)

	require.NoError(t, g.DeleteNode(left.ID))

	got, err := g.Node(merged.ID)
	require.NoError(t, err)
	// Left slot inherited the deleted node's parent; the duplicate edge to
	// base was collapsed away.
	require.Equal(t, []string{base.ID, right.ID}, got.ParentIDs)
	require.Equal(t, base.ID, got.Merge.LeftParentID)
	require.Equal(t, right.ID, got.Merge.RightParentID)
	require.NoError(t, g.Validate())
}

func TestDeleteMergeLCARewritesMetadata(t *testing.T) {
	g := New()
	a, err := g.Append(g.Root().ID, llm.User, "a")
	require.NoError(t, err)
	b, err := g.Append(a.ID, llm.Assistant, "b")
	require.NoError(t, err)
	marker, err := g.Fork(a.ID, "alt")
	require.NoError(t, err)
	c, err := g.Append(marker.ID, llm.Assistant, "c")
	require.NoError(t, err)
	merged, err := g.AppendMerge("combined", MergeMetadata{
		LCAID:         a.ID,
		LeftParentID:  b.ID,
		RightParentID: c.ID,
	})
	require.NoError(t, err)

	// The merge node is not a child of the LCA, so the rewrite has to
	// reach past the deleted node's direct children.
	require.NoError(t, g.DeleteNode(a.ID))

	got, err := g.Node(merged.ID)
	require.NoError(t, err)
	require.Equal(t, g.Root().ID, got.Merge.LCAID)
	require.Equal(t, b.ID, got.Merge.LeftParentID)
	require.Equal(t, c.ID, got.Merge.RightParentID)
	require.NoError(t, g.Validate())
}

func TestNodesTopologicalOrder(t *testing.T) {
	g := New()
	a, err := g.Append(g.Root().ID, llm.User, "A")
	require.NoError(t, err)
	b, err := g.Append(a.ID, llm.Assistant, "B")
	require.NoError(t, err)
	c, err := g.Append(a.ID, llm.Assistant, "C")
	require.NoError(t, err)
	_, err = g.AppendMerge("M", MergeMetadata{LCAID: a.ID, LeftParentID: b.ID, RightParentID: c.ID})
	require.NoError(t, err)

	nodes := g.Nodes()
	require.Len(t, nodes, 5)
	require.Equal(t, g.Root().ID, nodes[0].ID)

	position := make(map[string]int)
	for i, n := range nodes {
		position[n.ID] = i
	}
	for _, n := range nodes {
		for _, p := range n.ParentIDs {
			require.Less(t, position[p], position[n.ID], "parent %s must precede %s", p, n.ID)
		}
	}

	// The order is stable across calls.
	again := g.Nodes()
	for i := range nodes {
		require.Equal(t, nodes[i].ID, again[i].ID)
	}
}

func TestFromNodesRejectsCorruptGraphs(t *testing.T) {
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	root := &Node{ID: "root", Role: llm.System, Content: RootContent, CreatedAt: base}
	child := &Node{ID: "a", Role: llm.User, Content: "a", ParentIDs: []string{"root"}, CreatedAt: base.Add(time.Second)}

	tests := []struct {
		name    string
		nodes   []*Node
		current string
	}{
		{"no nodes", nil, ""},
		{"missing parent", []*Node{
			root,
			{ID: "a", Role: llm.User, ParentIDs: []string{"ghost"}, CreatedAt: base},
		}, "root"},
		{"two roots", []*Node{
			root,
			{ID: "root2", Role: llm.System, Content: RootContent, CreatedAt: base},
		}, "root"},
		{"dangling current", []*Node{root, child}, "ghost"},
		{"cycle", []*Node{
			root,
			{ID: "a", Role: llm.User, ParentIDs: []string{"b"}, CreatedAt: base},
			{ID: "b", Role: llm.User, ParentIDs: []string{"a"}, CreatedAt: base},
		}, "root"},
		{"two-parent node without metadata", []*Node{
			root, child,
			{ID: "b", Role: llm.User, Content: "b", ParentIDs: []string{"root"}, CreatedAt: base.Add(time.Second)},
			{ID: "m", Role: llm.Assistant, ParentIDs: []string{"a", "b"}, CreatedAt: base.Add(2 * time.Second)},
		}, "root"},
		{"merge metadata mismatch", []*Node{
			root, child,
			{ID: "b", Role: llm.User, Content: "b", ParentIDs: []string{"root"}, CreatedAt: base.Add(time.Second)},
			{
				ID: "m", Role: llm.Assistant, ParentIDs: []string{"a", "b"},
				Merge:     &MergeMetadata{LCAID: "root", LeftParentID: "a", RightParentID: "ghost"},
				CreatedAt: base.Add(2 * time.Second),
			},
		}, "root"},
		{"fork marker with two parents", []*Node{
			root, child,
			{ID: "b", Role: llm.User, Content: "b", ParentIDs: []string{"root"}, CreatedAt: base.Add(time.Second)},
			{
				ID: "m", Role: llm.System, Content: ForkMarkerContent, ParentIDs: []string{"a", "b"},
				Merge:     &MergeMetadata{LCAID: "root", LeftParentID: "a", RightParentID: "b"},
				CreatedAt: base.Add(2 * time.Second),
			},
		}, "root"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromNodes(tc.nodes, tc.current)
			require.Error(t, err)
		})
	}
}

func TestInvariantsHoldAcrossOperationSequence(t *testing.T) {
	g := New()
	check := func() {
		t.Helper()
		require.NoError(t, g.Validate())
	}

	a, err := g.Append(g.Root().ID, llm.User, "A")
	require.NoError(t, err)
	check()
	b, err := g.Append(a.ID, llm.Assistant, "B")
	require.NoError(t, err)
	check()
	marker, err := g.Fork(a.ID, "side")
	require.NoError(t, err)
	check()
	c, err := g.Append(marker.ID, llm.User, "C")
	require.NoError(t, err)
	check()
	_, err = g.AppendMerge("M", MergeMetadata{LCAID: a.ID, LeftParentID: b.ID, RightParentID: c.ID})
	require.NoError(t, err)
	check()
	require.NoError(t, g.DeleteNode(c.ID))
	check()
	require.NoError(t, g.DeleteNode(b.ID))
	check()
}

func contents(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Content
	}
	return out
}

func roles(nodes []*Node) []llm.Role {
	out := make([]llm.Role, len(nodes))
	for i, n := range nodes {
		out[i] = n.Role
	}
	return out
}
