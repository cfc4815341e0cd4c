package graph

import (
	"time"

	"github.com/deepnoodle-ai/forky/llm"
)

// RootContent is the payload of every conversation's root system node.
const RootContent = "Root"

// ForkMarkerContent is the payload of fork marker nodes. Markers record a
// named branching point and carry no model-visible content.
const ForkMarkerContent = "<FORK>"

// Attachment is an opaque reference to external content associated with a
// node. Resolution to model-native representations happens in the provider
// adapters, not here.
type Attachment struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Ref       string `json:"ref"`
}

// ConflictRecord describes one detected overlap between the two sides of a
// merge that could not be mechanically reconciled. Conflicts are surfaced to
// the model, never auto-resolved.
type ConflictRecord struct {
	Category  string `json:"category"`
	LeftItem  string `json:"left_item"`
	RightItem string `json:"right_item"`
	Kind      string `json:"kind"` // contradicts, diverges, or both_modified
}

// Conflict kinds.
const (
	ConflictContradicts  = "contradicts"
	ConflictDiverges     = "diverges"
	ConflictBothModified = "both_modified"
)

// MergeMetadata is present on merge nodes only. The left parent is the
// conversation's current node at merge time; history linearization follows it
// through the merge.
type MergeMetadata struct {
	LCAID         string           `json:"lca_id"`
	LeftParentID  string           `json:"left_parent_id"`
	RightParentID string           `json:"right_parent_id"`
	Conflicts     []ConflictRecord `json:"conflicts,omitempty"`
}

// Node is a single message in a conversation DAG. Once committed, all fields
// except deletion are append-only: id, role, content, parents, and timestamp
// never change.
type Node struct {
	ID      string   `json:"id"`
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`

	// ParentIDs in ordinal order. The root has none, ordinary nodes one,
	// merge nodes two. Index 0 is the primary (left) parent used for
	// history linearization.
	ParentIDs []string `json:"parent_ids,omitempty"`

	CreatedAt   time.Time      `json:"created_at"`
	BranchName  string         `json:"branch_name,omitempty"`
	Merge       *MergeMetadata `json:"merge_metadata,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// IsRoot reports whether the node has no parents.
func (n *Node) IsRoot() bool {
	return len(n.ParentIDs) == 0
}

// IsMerge reports whether the node is a committed merge node.
func (n *Node) IsMerge() bool {
	return n.Merge != nil && len(n.ParentIDs) == 2
}

// IsForkMarker reports whether the node is a fork marker.
func (n *Node) IsForkMarker() bool {
	return n.Role == llm.System && n.Content == ForkMarkerContent
}

// HasParent reports whether id is one of the node's parents.
func (n *Node) HasParent(id string) bool {
	for _, p := range n.ParentIDs {
		if p == id {
			return true
		}
	}
	return false
}

// Copy returns a deep copy of the node.
func (n *Node) Copy() *Node {
	cp := *n
	cp.ParentIDs = append([]string(nil), n.ParentIDs...)
	if n.Merge != nil {
		m := *n.Merge
		m.Conflicts = append([]ConflictRecord(nil), n.Merge.Conflicts...)
		cp.Merge = &m
	}
	cp.Attachments = append([]Attachment(nil), n.Attachments...)
	return &cp
}

// later reports whether node a orders after node b by creation time, with
// lexicographic id order breaking ties. Every "latest" selection in this
// package uses this rule so traversal stays deterministic.
func later(a, b *Node) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
