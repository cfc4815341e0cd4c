package merge

import "github.com/deepnoodle-ai/forky/graph"

// Classify detects conflicts between the two sides' diffs against their
// common base. Three kinds are recognized, per category:
//
//   - both_modified: both sides changed the same base item to different text
//   - contradicts: one side added an item whose handle the other side removed
//   - diverges: both sides added different items sharing a handle
//
// A handle yields at most one conflict, with both_modified taking
// precedence over contradicts, and contradicts over diverges. Two sides
// landing on identical text is agreement, not a conflict. Classification is
// deterministic: categories are visited in canonical order and handles in
// their order of first appearance.
func Classify(left, right StateDiff) []graph.ConflictRecord {
	var conflicts []graph.ConflictRecord
	for _, cat := range Categories {
		conflicts = append(conflicts, classifyCategory(cat, left, right)...)
	}
	return conflicts
}

func classifyCategory(cat string, left, right StateDiff) []graph.ConflictRecord {
	leftChanged := changeIndex(left.Changed[cat])
	rightChanged := changeIndex(right.Changed[cat])
	leftAdded := handleIndex(left.Added[cat])
	rightAdded := handleIndex(right.Added[cat])
	leftRemoved := handleIndex(left.Removed[cat])
	rightRemoved := handleIndex(right.Removed[cat])

	var out []graph.ConflictRecord
	for _, h := range handleOrder(left, right, cat) {
		cl, clOK := leftChanged[h]
		cr, crOK := rightChanged[h]
		if clOK && crOK {
			// Both sides modified the same base item. Differing results
			// conflict; identical results agree.
			if normalize(cl.After) != normalize(cr.After) {
				out = append(out, graph.ConflictRecord{
					Category:  cat,
					LeftItem:  cl.After,
					RightItem: cr.After,
					Kind:      graph.ConflictBothModified,
				})
			}
			continue
		}
		if added, ok := leftAdded[h]; ok {
			if removed, ok := rightRemoved[h]; ok {
				out = append(out, graph.ConflictRecord{
					Category:  cat,
					LeftItem:  added,
					RightItem: removed,
					Kind:      graph.ConflictContradicts,
				})
				continue
			}
		}
		if added, ok := rightAdded[h]; ok {
			if removed, ok := leftRemoved[h]; ok {
				out = append(out, graph.ConflictRecord{
					Category:  cat,
					LeftItem:  removed,
					RightItem: added,
					Kind:      graph.ConflictContradicts,
				})
				continue
			}
		}
		la, laOK := leftAdded[h]
		ra, raOK := rightAdded[h]
		if laOK && raOK && normalize(la) != normalize(ra) {
			out = append(out, graph.ConflictRecord{
				Category:  cat,
				LeftItem:  la,
				RightItem: ra,
				Kind:      graph.ConflictDiverges,
			})
		}
	}
	return out
}

// handleOrder returns the category's candidate handles in order of first
// appearance: left changes, right changes, left additions, right additions.
func handleOrder(left, right StateDiff, cat string) []string {
	var order []string
	seen := make(map[string]struct{})
	add := func(h string) {
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		order = append(order, h)
	}
	for _, ch := range left.Changed[cat] {
		add(handle(ch.Before))
	}
	for _, ch := range right.Changed[cat] {
		add(handle(ch.Before))
	}
	for _, item := range left.Added[cat] {
		add(handle(item))
	}
	for _, item := range right.Added[cat] {
		add(handle(item))
	}
	return order
}

// handleIndex maps each item's handle to the first item carrying it.
func handleIndex(items []string) map[string]string {
	idx := make(map[string]string, len(items))
	for _, item := range items {
		h := handle(item)
		if _, ok := idx[h]; !ok {
			idx[h] = item
		}
	}
	return idx
}

// changeIndex maps each change's before-handle to the first change
// carrying it.
func changeIndex(changes []Change) map[string]Change {
	idx := make(map[string]Change, len(changes))
	for _, ch := range changes {
		h := handle(ch.Before)
		if _, ok := idx[h]; !ok {
			idx[h] = ch
		}
	}
	return idx
}
