package merge

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/forky"
	"github.com/deepnoodle-ai/forky/graph"
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/stretchr/testify/require"
)

// forkPoint builds a conversation with two branches diverging from a single
// node and returns the graph, the fork point, and the two branch tips.
func forkPoint(t *testing.T) (*graph.Graph, *graph.Node, *graph.Node, *graph.Node) {
	t.Helper()
	g := graph.New()
	base, err := g.Append(g.Root().ID, llm.User, "let's plan the system")
	require.NoError(t, err)
	left, err := g.Append(base.ID, llm.Assistant, "left branch work")
	require.NoError(t, err)
	right, err := g.Append(base.ID, llm.Assistant, "right branch work")
	require.NoError(t, err)
	return g, base, left, right
}

func TestCheckEligibility(t *testing.T) {
	g, base, left, right := forkPoint(t)

	tests := []struct {
		name     string
		current  string
		target   string
		eligible bool
		reason   string
	}{
		{"divergent branches", left.ID, right.ID, true, ""},
		{"self merge", left.ID, left.ID, false, forky.ReasonSelfMerge},
		{"ancestor into descendant", base.ID, left.ID, false, forky.ReasonAncestorDescendant},
		{"descendant into ancestor", left.ID, base.ID, false, forky.ReasonAncestorDescendant},
		{"root and tip", g.Root().ID, right.ID, false, forky.ReasonAncestorDescendant},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			elig, err := CheckEligibility(g, tc.current, tc.target)
			require.NoError(t, err)
			require.Equal(t, tc.eligible, elig.Eligible)
			require.Equal(t, tc.reason, elig.Reason)
			if tc.eligible {
				require.Equal(t, base.ID, elig.LCAID)
			}
		})
	}
}

func TestCheckEligibilityUnknownNode(t *testing.T) {
	g, _, left, _ := forkPoint(t)

	_, err := CheckEligibility(g, left.ID, "nope")
	require.ErrorIs(t, err, graph.ErrNodeNotFound)
	_, err = CheckEligibility(g, "nope", left.ID)
	require.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestMergeDisjointAdditions(t *testing.T) {
	g, base, left, right := forkPoint(t)
	client := &scriptedLLM{responses: []string{
		`{"facts":["x=1"],"topic":"plan"}`,
		`{"facts":["x=1","y=2"],"topic":"plan"}`,
		`{"facts":["x=1","z=3"],"topic":"plan"}`,
		"both branches are now combined",
	}}
	e := NewExecutor(ExecutorOptions{Client: client})

	nodesBefore := g.Len()
	result, err := e.Merge(context.Background(), g, left.ID, right.ID, "combine the work")
	require.NoError(t, err)
	require.Equal(t, "both branches are now combined", result.Content)
	require.Equal(t, base.ID, result.Metadata.LCAID)
	require.Equal(t, left.ID, result.Metadata.LeftParentID)
	require.Equal(t, right.ID, result.Metadata.RightParentID)
	require.Empty(t, result.Metadata.Conflicts)
	require.False(t, result.HasConflicts)
	require.False(t, result.StructuralOnly)

	// The executor reads the graph but never mutates it.
	require.Equal(t, nodesBefore, g.Len())

	// The merge prompt carries the user's instructions and reports the
	// absence of conflicts.
	prompt := client.prompts[len(client.prompts)-1]
	require.Contains(t, prompt, "combine the work")
	require.Contains(t, prompt, "No conflicts were detected")
}

func TestMergeDetectsConflict(t *testing.T) {
	g, _, left, right := forkPoint(t)
	client := &scriptedLLM{responses: []string{
		`{"decisions":["use a managed database for storage"],"topic":"plan"}`,
		`{"decisions":["use a managed database for everything"],"topic":"plan"}`,
		`{"decisions":["use a managed database for archival only"],"topic":"plan"}`,
		"the branches disagree about the database",
	}}
	e := NewExecutor(ExecutorOptions{Client: client})

	result, err := e.Merge(context.Background(), g, left.ID, right.ID, "")
	require.NoError(t, err)
	require.True(t, result.HasConflicts)
	require.Len(t, result.Metadata.Conflicts, 1)
	c := result.Metadata.Conflicts[0]
	require.Equal(t, CategoryDecisions, c.Category)
	require.Equal(t, graph.ConflictBothModified, c.Kind)

	prompt := client.prompts[len(client.prompts)-1]
	require.Contains(t, prompt, "Do not auto-resolve")
}

func TestMergeIneligible(t *testing.T) {
	g, base, left, _ := forkPoint(t)
	client := &scriptedLLM{}
	e := NewExecutor(ExecutorOptions{Client: client})

	_, err := e.Merge(context.Background(), g, left.ID, left.ID, "")
	var ineligible *forky.MergeIneligibleError
	require.ErrorAs(t, err, &ineligible)
	require.Equal(t, forky.ReasonSelfMerge, ineligible.Reason)

	_, err = e.Merge(context.Background(), g, base.ID, left.ID, "")
	require.ErrorAs(t, err, &ineligible)
	require.Equal(t, forky.ReasonAncestorDescendant, ineligible.Reason)

	// Ineligible merges never reach the model.
	require.Equal(t, 0, client.callCount())
}

func TestMergeStructuralOnlyOnSummaryFailure(t *testing.T) {
	g, _, left, right := forkPoint(t)
	client := &scriptedLLM{responses: []string{
		"not json",
		"still not json",
		`{"facts":["y=2"],"topic":"plan"}`,
		`{"facts":["z=3"],"topic":"plan"}`,
		"merged without summaries",
	}}
	e := NewExecutor(ExecutorOptions{Client: client})

	result, err := e.Merge(context.Background(), g, left.ID, right.ID, "")
	require.NoError(t, err)
	require.True(t, result.StructuralOnly)
	require.False(t, result.HasConflicts)
	require.Empty(t, result.Metadata.Conflicts)
	require.Equal(t, "merged without summaries", result.Content)

	prompt := client.prompts[len(client.prompts)-1]
	require.Contains(t, prompt, "conflicts could not be detected")
}

func TestMergeModelFailureLeavesNoPartialState(t *testing.T) {
	g, _, left, right := forkPoint(t)
	client := &scriptedLLM{responses: []string{
		`{"facts":["x=1"],"topic":"plan"}`,
		`{"facts":["y=2"],"topic":"plan"}`,
		`{"facts":["z=3"],"topic":"plan"}`,
		// No response left for the final completion.
	}}
	e := NewExecutor(ExecutorOptions{Client: client})

	nodesBefore := g.Len()
	_, err := e.Merge(context.Background(), g, left.ID, right.ID, "")
	require.Error(t, err)
	require.Equal(t, nodesBefore, g.Len())
}
