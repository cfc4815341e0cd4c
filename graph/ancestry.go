package graph

import "fmt"

// Ancestors returns the ancestor set of a node, including the node itself.
// Sets are memoized until the next mutation.
func (g *Graph) Ancestors(id string) (map[string]struct{}, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if set, ok := g.anc[id]; ok {
		return set, nil
	}
	set := make(map[string]struct{})
	queue := []string{id}
	set[id] = struct{}{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range g.nodes[cur].ParentIDs {
			if _, seen := set[p]; !seen {
				set[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
	if g.anc == nil {
		g.anc = make(map[string]map[string]struct{})
	}
	g.anc[id] = set
	return set, nil
}

// Descendants returns the descendant set of a node, including the node
// itself.
func (g *Graph) Descendants(id string) (map[string]struct{}, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	set := make(map[string]struct{})
	queue := []string{id}
	set[id] = struct{}{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range g.children[cur] {
			if _, seen := set[c]; !seen {
				set[c] = struct{}{}
				queue = append(queue, c)
			}
		}
	}
	return set, nil
}

// IsAncestor reports whether a is an ancestor of b. A node is an ancestor of
// itself.
func (g *Graph) IsAncestor(a, b string) (bool, error) {
	set, err := g.Ancestors(b)
	if err != nil {
		return false, err
	}
	if _, ok := g.nodes[a]; !ok {
		return false, fmt.Errorf("%w: %s", ErrNodeNotFound, a)
	}
	_, ok := set[a]
	return ok, nil
}

// LCA returns the lowest common ancestor of a and b. In a DAG the deepest
// common ancestor need not be unique; among the candidates with no
// descendant in the common-ancestor set, the latest-created wins, with
// lexicographic id order breaking timestamp ties. Returns "" when the nodes
// share no ancestor, which cannot happen in a single-rooted conversation but
// is handled for corrupted input.
func (g *Graph) LCA(a, b string) (string, error) {
	ancA, err := g.Ancestors(a)
	if err != nil {
		return "", err
	}
	ancB, err := g.Ancestors(b)
	if err != nil {
		return "", err
	}
	common := make(map[string]struct{})
	for id := range ancA {
		if _, ok := ancB[id]; ok {
			common[id] = struct{}{}
		}
	}
	if len(common) == 0 {
		return "", nil
	}
	// The common set is ancestor-closed, so a member has a descendant in
	// the set iff one of its direct children is a member.
	var best *Node
	for id := range common {
		hasDeeper := false
		for _, c := range g.children[id] {
			if _, ok := common[c]; ok {
				hasDeeper = true
				break
			}
		}
		if hasDeeper {
			continue
		}
		n := g.nodes[id]
		if best == nil || later(n, best) {
			best = n
		}
	}
	if best == nil {
		// Only possible if the common set contains a cycle.
		return "", fmt.Errorf("no lowest common ancestor in cyclic input")
	}
	return best.ID, nil
}
