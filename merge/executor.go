package merge

import (
	"context"

	"github.com/deepnoodle-ai/forky"
	"github.com/deepnoodle-ai/forky/graph"
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/forky/slogger"
)

// Eligibility is the outcome of a merge pre-check. When Eligible is false,
// Reason carries a stable reason code.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
	LCAID    string `json:"lca_id,omitempty"`
}

// CheckEligibility decides whether two nodes can be merged. A node cannot
// merge with itself, with one of its ancestors or descendants, or with a
// node it shares no ancestor with. The returned error is non-nil only when
// a node id is unknown or the graph is malformed.
func CheckEligibility(g *graph.Graph, currentID, targetID string) (Eligibility, error) {
	if _, err := g.Node(currentID); err != nil {
		return Eligibility{}, err
	}
	if _, err := g.Node(targetID); err != nil {
		return Eligibility{}, err
	}
	if currentID == targetID {
		return Eligibility{Reason: forky.ReasonSelfMerge}, nil
	}
	related, err := g.IsAncestor(currentID, targetID)
	if err != nil {
		return Eligibility{}, err
	}
	if !related {
		related, err = g.IsAncestor(targetID, currentID)
		if err != nil {
			return Eligibility{}, err
		}
	}
	if related {
		return Eligibility{Reason: forky.ReasonAncestorDescendant}, nil
	}
	lcaID, err := g.LCA(currentID, targetID)
	if err != nil {
		return Eligibility{}, err
	}
	if lcaID == "" {
		return Eligibility{Reason: forky.ReasonNoCommonAncestor}, nil
	}
	return Eligibility{Eligible: true, LCAID: lcaID}, nil
}

// Executor runs the three-way merge pipeline. It reads the graph but never
// mutates it: the caller appends the merge node from the returned Result,
// which keeps failure at any pipeline step free of partial writes.
type Executor struct {
	client     llm.LLM
	model      string
	summarizer *Summarizer
	logger     slogger.Logger
}

// ExecutorOptions configures an Executor. Summarizer is optional; when nil
// one is built from the same client and model.
type ExecutorOptions struct {
	Client     llm.LLM
	Model      string
	Summarizer *Summarizer
	Logger     slogger.Logger
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ExecutorOptions) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slogger.DefaultLogger
	}
	summarizer := opts.Summarizer
	if summarizer == nil {
		summarizer = NewSummarizer(SummarizerOptions{
			Client: opts.Client,
			Model:  opts.Model,
			Logger: logger,
		})
	}
	return &Executor{
		client:     opts.Client,
		model:      opts.Model,
		summarizer: summarizer,
		logger:     logger,
	}
}

// Result is the output of a merge pipeline run: the content of the merge
// node to append and its metadata.
type Result struct {
	Content        string
	Metadata       graph.MergeMetadata
	HasConflicts   bool
	StructuralOnly bool
}

// Merge runs the full pipeline for merging targetID into currentID:
// eligibility, three histories, three state summaries, two diffs, conflict
// classification, and the final model completion. The left side of the
// merge is always the current node. When any summary fails, conflict
// detection downgrades to structural-only and the model is told to check
// for contradictions itself.
func (e *Executor) Merge(ctx context.Context, g *graph.Graph, currentID, targetID, mergePrompt string) (*Result, error) {
	elig, err := CheckEligibility(g, currentID, targetID)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, &forky.MergeIneligibleError{Reason: elig.Reason}
	}

	baseHistory, err := g.History(elig.LCAID)
	if err != nil {
		return nil, err
	}
	leftHistory, err := g.History(currentID)
	if err != nil {
		return nil, err
	}
	rightHistory, err := g.History(targetID)
	if err != nil {
		return nil, err
	}

	baseState, err := e.summarizer.Summarize(ctx, elig.LCAID, baseHistory)
	if err != nil {
		return nil, err
	}
	leftState, err := e.summarizer.Summarize(ctx, currentID, leftHistory)
	if err != nil {
		return nil, err
	}
	rightState, err := e.summarizer.Summarize(ctx, targetID, rightHistory)
	if err != nil {
		return nil, err
	}

	leftDiff := Diff(baseState, leftState)
	rightDiff := Diff(baseState, rightState)

	structuralOnly := baseState.Failed || leftState.Failed || rightState.Failed
	var conflicts []graph.ConflictRecord
	if !structuralOnly {
		conflicts = Classify(leftDiff, rightDiff)
	}

	e.logger.Info("merging branches",
		"left", currentID,
		"right", targetID,
		"lca", elig.LCAID,
		"conflicts", len(conflicts),
		"structural_only", structuralOnly)

	prompt := buildMergePrompt(baseState, leftDiff, rightDiff, conflicts, mergePrompt, structuralOnly)
	opts := []llm.Option{
		llm.WithSystemPrompt(mergeSystemPrompt),
		llm.WithLogger(e.logger),
	}
	if e.model != "" {
		opts = append(opts, llm.WithModel(e.model))
	}
	resp, err := e.client.Generate(ctx, []*llm.Message{llm.NewUserTextMessage(prompt)}, opts...)
	if err != nil {
		return nil, err
	}

	return &Result{
		Content: resp.Message.Text(),
		Metadata: graph.MergeMetadata{
			LCAID:         elig.LCAID,
			LeftParentID:  currentID,
			RightParentID: targetID,
			Conflicts:     conflicts,
		},
		HasConflicts:   len(conflicts) > 0,
		StructuralOnly: structuralOnly,
	}, nil
}

// Summarizer returns the executor's summarizer so callers can share its
// cache or invalidate entries on node deletion.
func (e *Executor) Summarizer() *Summarizer {
	return e.summarizer
}
