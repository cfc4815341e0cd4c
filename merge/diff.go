package merge

import (
	"strings"
	"unicode"
)

// handleTokens is the number of leading tokens used to identify an item.
// Two items with the same handle are treated as describing the same thing.
const handleTokens = 5

// Change records an item that exists in both states with differing text.
type Change struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// StateDiff captures the semantic changes from a base state to a side
// state, keyed by category. It is pure data: computing one performs no I/O
// and the result is fully determined by its inputs.
type StateDiff struct {
	Added   map[string][]string `json:"added"`
	Removed map[string][]string `json:"removed"`
	Changed map[string][]Change `json:"changed"`
}

// IsEmpty reports whether the diff records no changes.
func (d StateDiff) IsEmpty() bool {
	for _, cat := range Categories {
		if len(d.Added[cat]) > 0 || len(d.Removed[cat]) > 0 || len(d.Changed[cat]) > 0 {
			return false
		}
	}
	return true
}

// Diff computes the semantic changes from base to side, per category.
// Equality is string equality after trimming and case-folding. An item
// counts as changed when its handle matches an item on the other side but
// the full text differs.
func Diff(base, side StateRecord) StateDiff {
	d := StateDiff{
		Added:   make(map[string][]string),
		Removed: make(map[string][]string),
		Changed: make(map[string][]Change),
	}
	for _, cat := range Categories {
		baseItems := base.Items(cat)
		sideItems := side.Items(cat)

		baseSet := normalizedSet(baseItems)
		sideSet := normalizedSet(sideItems)

		for _, item := range sideItems {
			if _, ok := baseSet[normalize(item)]; !ok {
				d.Added[cat] = append(d.Added[cat], item)
			}
		}
		for _, item := range baseItems {
			if _, ok := sideSet[normalize(item)]; !ok {
				d.Removed[cat] = append(d.Removed[cat], item)
			}
		}

		// Handle matching pairs a base item with the first side item that
		// shares its handle; a pair with differing text is a change.
		sideByHandle := make(map[string]string)
		for _, item := range sideItems {
			h := handle(item)
			if _, ok := sideByHandle[h]; !ok {
				sideByHandle[h] = item
			}
		}
		for _, item := range baseItems {
			other, ok := sideByHandle[handle(item)]
			if !ok {
				continue
			}
			if normalize(item) != normalize(other) {
				d.Changed[cat] = append(d.Changed[cat], Change{Before: item, After: other})
			}
		}
	}
	return d
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizedSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[normalize(item)] = struct{}{}
	}
	return set
}

// handle returns the item's identity key: its leading tokens, lowercased
// and joined by single spaces. Tokenization splits on whitespace and
// punctuation.
func handle(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(fields) > handleTokens {
		fields = fields[:handleTokens]
	}
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return strings.Join(fields, " ")
}
