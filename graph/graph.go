// Package graph implements the in-memory conversation DAG: append, fork,
// checkout, merge-node insertion, delete-with-inheritance, and the ancestry
// queries (lowest common ancestor, history linearization) the merge pipeline
// is built on.
//
// The graph is a DAG, not a tree: merge nodes have two parents. Every
// mutation preserves the structural invariants (single root, acyclicity,
// valid parent references, valid current pointer), and Validate can re-check
// them wholesale, which the store does on load.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/deepnoodle-ai/forky/llm"
	"github.com/google/uuid"
)

var (
	ErrNodeNotFound        = errors.New("node not found")
	ErrInvalidParent       = errors.New("invalid parent node")
	ErrUnknownIdentifier   = errors.New("unknown identifier")
	ErrCannotDeleteRoot    = errors.New("cannot delete root node")
	ErrCannotDeleteCurrent = errors.New("cannot delete current node")
)

// Graph is one conversation's DAG. It is not safe for concurrent use; the
// service serializes access per conversation.
type Graph struct {
	nodes     map[string]*Node
	children  map[string][]string
	rootID    string
	currentID string

	// Ancestor sets memoized between mutations. A single merge request
	// issues many ancestry queries against an unchanged graph.
	anc map[string]map[string]struct{}
}

// New creates a conversation graph containing only the root system node.
func New() *Graph {
	g := &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
	}
	root := &Node{
		ID:        NewID(),
		Role:      llm.System,
		Content:   RootContent,
		CreatedAt: time.Now().UTC(),
	}
	g.nodes[root.ID] = root
	g.rootID = root.ID
	g.currentID = root.ID
	return g
}

// FromNodes reconstructs a graph from persisted nodes and validates all
// structural invariants. The node slice must contain exactly one root.
func FromNodes(nodes []*Node, currentID string) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("conversation has no nodes")
	}
	g := &Graph{
		nodes:     make(map[string]*Node, len(nodes)),
		children:  make(map[string][]string),
		currentID: currentID,
	}
	for _, n := range nodes {
		if _, ok := g.nodes[n.ID]; ok {
			return nil, fmt.Errorf("duplicate node id %s", n.ID)
		}
		cp := n.Copy()
		g.nodes[cp.ID] = cp
		if cp.IsRoot() {
			g.rootID = cp.ID
		}
	}
	g.rebuildChildren()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// NewID returns a fresh globally unique node id.
func NewID() string {
	return uuid.NewString()
}

// Root returns the root node.
func (g *Graph) Root() *Node {
	return g.nodes[g.rootID]
}

// CurrentID returns the id of the current checkout.
func (g *Graph) CurrentID() string {
	return g.currentID
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// Children returns the ids of a node's children in insertion order.
func (g *Graph) Children(id string) []string {
	return append([]string(nil), g.children[id]...)
}

// Append creates an ordinary single-parent node and moves the current
// checkout to it.
func (g *Graph) Append(parentID string, role llm.Role, content string, attachments ...Attachment) (*Node, error) {
	if _, ok := g.nodes[parentID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParent, parentID)
	}
	n := &Node{
		ID:          NewID(),
		Role:        role,
		Content:     content,
		ParentIDs:   []string{parentID},
		CreatedAt:   time.Now().UTC(),
		Attachments: attachments,
	}
	g.insert(n)
	g.currentID = n.ID
	return n, nil
}

// Fork inserts a named fork marker below fromID and checks it out. The next
// Append begins a divergent chain.
func (g *Graph) Fork(fromID, branchName string) (*Node, error) {
	if _, ok := g.nodes[fromID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParent, fromID)
	}
	n := &Node{
		ID:         NewID(),
		Role:       llm.System,
		Content:    ForkMarkerContent,
		ParentIDs:  []string{fromID},
		CreatedAt:  time.Now().UTC(),
		BranchName: branchName,
	}
	g.insert(n)
	g.currentID = n.ID
	return n, nil
}

// AppendMerge creates an assistant merge node with the two parents named in
// the metadata and checks it out. The metadata's LCA must be an ancestor of
// both parents.
func (g *Graph) AppendMerge(content string, meta MergeMetadata) (*Node, error) {
	if meta.LeftParentID == meta.RightParentID {
		return nil, fmt.Errorf("merge parents must be distinct")
	}
	for _, id := range []string{meta.LeftParentID, meta.RightParentID} {
		if _, ok := g.nodes[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidParent, id)
		}
		ok, err := g.IsAncestor(meta.LCAID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("merge lca %s is not an ancestor of parent %s", meta.LCAID, id)
		}
	}
	md := meta
	n := &Node{
		ID:        NewID(),
		Role:      llm.Assistant,
		Content:   content,
		ParentIDs: []string{meta.LeftParentID, meta.RightParentID},
		CreatedAt: time.Now().UTC(),
		Merge:     &md,
	}
	g.insert(n)
	g.currentID = n.ID
	return n, nil
}

// Checkout moves the current pointer. The identifier is a node id or a
// branch name. Branch names resolve to the latest matching fork marker's
// deepest descendant, choosing the latest-created child at each step.
func (g *Graph) Checkout(identifier string) (string, error) {
	if _, ok := g.nodes[identifier]; ok {
		g.currentID = identifier
		return identifier, nil
	}
	marker := g.latestMarker(identifier)
	if marker == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownIdentifier, identifier)
	}
	tip := g.branchTip(marker.ID)
	g.currentID = tip
	return tip, nil
}

// latestMarker returns the most recently created fork marker with the given
// branch name, or nil.
func (g *Graph) latestMarker(branchName string) *Node {
	var best *Node
	for _, n := range g.nodes {
		if !n.IsForkMarker() || n.BranchName != branchName {
			continue
		}
		if best == nil || later(n, best) {
			best = n
		}
	}
	return best
}

// branchTip walks down from a node, always picking the latest-created child,
// and returns the deepest node reached.
func (g *Graph) branchTip(id string) string {
	for {
		kids := g.children[id]
		if len(kids) == 0 {
			return id
		}
		next := g.nodes[kids[0]]
		for _, kid := range kids[1:] {
			if later(g.nodes[kid], next) {
				next = g.nodes[kid]
			}
		}
		id = next.ID
	}
}

// DeleteNode removes a node and rewires its children onto its parents,
// preserving parent ordinal order and deduplicating. The root is
// undeletable. If the current checkout is the deleted node, the pointer
// moves to the node's first surviving parent.
func (g *Graph) DeleteNode(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if id == g.rootID {
		return ErrCannotDeleteRoot
	}
	if len(n.ParentIDs) == 0 {
		// Unreachable for a valid graph; refuse rather than orphan the
		// current pointer.
		return ErrCannotDeleteCurrent
	}
	primary := n.ParentIDs[0]

	for _, childID := range g.children[id] {
		c := g.nodes[childID]
		var rewired []string
		seen := make(map[string]struct{})
		for _, p := range c.ParentIDs {
			if p == id {
				for _, gp := range n.ParentIDs {
					if _, dup := seen[gp]; !dup {
						seen[gp] = struct{}{}
						rewired = append(rewired, gp)
					}
				}
				continue
			}
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				rewired = append(rewired, p)
			}
		}
		if len(rewired) == 0 {
			return ErrCannotDeleteCurrent
		}
		c.ParentIDs = rewired
	}

	// Merge metadata anywhere in the graph may reference the deleted node:
	// parent references only from its children, but an LCA reference from
	// any merge downstream of it. Shortcut all of them to the deleted
	// node's primary parent; the rewire preserves ancestry, so the
	// shortcut target is still an ancestor of both merge parents.
	for _, m := range g.nodes {
		if m.Merge == nil || m.ID == id {
			continue
		}
		if m.Merge.LeftParentID == id {
			m.Merge.LeftParentID = primary
		}
		if m.Merge.RightParentID == id {
			m.Merge.RightParentID = primary
		}
		if m.Merge.LCAID == id {
			m.Merge.LCAID = primary
		}
	}

	delete(g.nodes, id)
	g.rebuildChildren()
	if g.currentID == id {
		g.currentID = primary
	}
	return nil
}

// Nodes returns all nodes in deterministic topological order, root first.
// Ties are broken by creation time, then id.
func (g *Graph) Nodes() []*Node {
	return g.topoSort()
}

// topoSort is Kahn's algorithm with a deterministic ready-queue order.
func (g *Graph) topoSort() []*Node {
	inDegree := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		inDegree[id] = len(n.ParentIDs)
	}
	var ready []*Node
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, g.nodes[id])
		}
	}
	result := make([]*Node, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return later(ready[j], ready[i]) })
		n := ready[0]
		ready = ready[1:]
		result = append(result, n)
		for _, childID := range g.children[n.ID] {
			inDegree[childID]--
			if inDegree[childID] == 0 {
				ready = append(ready, g.nodes[childID])
			}
		}
	}
	return result
}

// Validate re-checks every structural invariant. It runs on every load; a
// failure there means the persisted conversation is corrupt.
func (g *Graph) Validate() error {
	var rootCount int
	for _, n := range g.nodes {
		if n.IsRoot() {
			rootCount++
			if n.ID != g.rootID {
				return fmt.Errorf("root pointer %s does not match parentless node %s", g.rootID, n.ID)
			}
		}
		for _, p := range n.ParentIDs {
			if _, ok := g.nodes[p]; !ok {
				return fmt.Errorf("node %s references missing parent %s", n.ID, p)
			}
		}
		if len(n.ParentIDs) > 2 {
			return fmt.Errorf("node %s has %d parents", n.ID, len(n.ParentIDs))
		}
		if len(n.ParentIDs) == 2 {
			if n.ParentIDs[0] == n.ParentIDs[1] {
				return fmt.Errorf("merge node %s has duplicate parents", n.ID)
			}
			if n.Merge == nil {
				return fmt.Errorf("two-parent node %s is missing merge metadata", n.ID)
			}
			if !n.HasParent(n.Merge.LeftParentID) || !n.HasParent(n.Merge.RightParentID) {
				return fmt.Errorf("merge node %s metadata does not match its parents", n.ID)
			}
		}
		if n.IsForkMarker() && len(n.ParentIDs) != 1 {
			return fmt.Errorf("fork marker %s must have exactly one parent", n.ID)
		}
	}
	if rootCount != 1 {
		return fmt.Errorf("expected exactly one root node, found %d", rootCount)
	}
	if _, ok := g.nodes[g.currentID]; !ok {
		return fmt.Errorf("current node %s does not exist", g.currentID)
	}
	if err := g.checkAcyclic(); err != nil {
		return err
	}
	// Merge LCA checks need ancestry, which needs acyclicity, so they run
	// last.
	for _, n := range g.nodes {
		if !n.IsMerge() {
			continue
		}
		for _, p := range n.ParentIDs {
			ok, err := g.IsAncestor(n.Merge.LCAID, p)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("merge node %s lca %s is not an ancestor of parent %s", n.ID, n.Merge.LCAID, p)
			}
		}
	}
	return nil
}

func (g *Graph) checkAcyclic() error {
	if len(g.topoSort()) != len(g.nodes) {
		return fmt.Errorf("conversation graph contains a cycle")
	}
	return nil
}

func (g *Graph) insert(n *Node) {
	g.nodes[n.ID] = n
	for _, p := range n.ParentIDs {
		g.children[p] = append(g.children[p], n.ID)
	}
	g.anc = nil
}

// rebuildChildren reconstructs the child index with each parent's children
// sorted oldest-first, so traversal order is stable across loads and
// deletions.
func (g *Graph) rebuildChildren() {
	g.children = make(map[string][]string)
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return later(g.nodes[ids[j]], g.nodes[ids[i]]) })
	for _, id := range ids {
		for _, p := range g.nodes[id].ParentIDs {
			g.children[p] = append(g.children[p], id)
		}
	}
	g.anc = nil
}
