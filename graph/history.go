package graph

import "fmt"

// History linearizes the conversation from the root to the given node. The
// walk follows each node's primary parent; at a merge node that is the
// recorded left parent, so the right side contributes context only through
// the merge node's content. Fork markers are graph structure, not dialogue,
// and are filtered from the result.
func (g *Graph) History(id string) ([]*Node, error) {
	path, err := g.pathToRoot(id)
	if err != nil {
		return nil, err
	}
	// Reverse to root-first order, dropping markers.
	out := make([]*Node, 0, len(path))
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].IsForkMarker() {
			continue
		}
		out = append(out, path[i])
	}
	return out, nil
}

// pathToRoot returns the primary-parent chain from id up to the root,
// node-first. Fork markers are included.
func (g *Graph) pathToRoot(id string) ([]*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	var path []*Node
	visited := make(map[string]struct{})
	for {
		if _, seen := visited[n.ID]; seen {
			return nil, fmt.Errorf("cycle detected walking parents from %s", id)
		}
		visited[n.ID] = struct{}{}
		path = append(path, n)
		if n.IsRoot() {
			return path, nil
		}
		next := n.ParentIDs[0]
		// Merge nodes record which parent carries the primary history. The
		// recorded id is preferred when it is still a parent; deletions can
		// rewire parents out from under old metadata.
		if n.Merge != nil && n.HasParent(n.Merge.LeftParentID) {
			next = n.Merge.LeftParentID
		}
		n = g.nodes[next]
	}
}

// BranchNameOf returns the name of the branch the given node sits on: the
// branch name of the nearest fork marker on its primary-parent chain, or ""
// if the node is on the trunk.
func (g *Graph) BranchNameOf(id string) (string, error) {
	path, err := g.pathToRoot(id)
	if err != nil {
		return "", err
	}
	for _, n := range path {
		if n.IsForkMarker() && n.BranchName != "" {
			return n.BranchName, nil
		}
		// A merge node closes the branches below it.
		if n.IsMerge() && n.ID != id {
			return "", nil
		}
	}
	return "", nil
}
