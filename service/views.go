package service

import (
	"context"
	"time"

	"github.com/deepnoodle-ai/forky/graph"
	"github.com/deepnoodle-ai/forky/llm"
)

// NodeView is the front-end projection of one node.
type NodeView struct {
	ID         string               `json:"id"`
	Role       llm.Role             `json:"role"`
	Content    string               `json:"content"`
	ParentIDs  []string             `json:"parent_ids,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	BranchName string               `json:"branch_name,omitempty"`
	IsCurrent  bool                 `json:"is_current"`
	IsMerge    bool                 `json:"is_merge,omitempty"`
	Merge      *graph.MergeMetadata `json:"merge_metadata,omitempty"`
}

// GraphView is the full conversation DAG as seen by a front-end. Nodes are
// in deterministic topological order, root first.
type GraphView struct {
	Nodes         []NodeView `json:"nodes"`
	CurrentNodeID string     `json:"current_node_id"`
}

// GetGraph returns the conversation's DAG for rendering.
func (s *Service) GetGraph(ctx context.Context, id string) (*GraphView, error) {
	conv, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	g := conv.Graph
	currentID := g.CurrentID()
	nodes := g.Nodes()
	view := &GraphView{
		Nodes:         make([]NodeView, 0, len(nodes)),
		CurrentNodeID: currentID,
	}
	for _, n := range nodes {
		view.Nodes = append(view.Nodes, NodeView{
			ID:         n.ID,
			Role:       n.Role,
			Content:    n.Content,
			ParentIDs:  append([]string(nil), n.ParentIDs...),
			CreatedAt:  n.CreatedAt,
			BranchName: n.BranchName,
			IsCurrent:  n.ID == currentID,
			IsMerge:    n.IsMerge(),
			Merge:      n.Merge,
		})
	}
	return view, nil
}
