// Package merge implements the three-way semantic merge pipeline: branch
// state summarization, deterministic semantic diffing, conflict
// classification, and synthesis of the merged response. Conflicts are
// detected here but never resolved here; they are surfaced to the model.
package merge

// Semantic categories tracked in a StateRecord. Classification and prompt
// synthesis iterate these in order so output is deterministic.
const (
	CategoryFacts         = "facts"
	CategoryDecisions     = "decisions"
	CategoryOpenQuestions = "open_questions"
	CategoryAssumptions   = "assumptions"
)

// Categories lists the semantic categories in canonical order.
var Categories = []string{
	CategoryFacts,
	CategoryDecisions,
	CategoryOpenQuestions,
	CategoryAssumptions,
}

// StateRecord is a structured summary of one branch of conversation at a
// point in time. Item order within each list is summarizer-chosen and is
// preserved; the engine does not deduplicate.
type StateRecord struct {
	Facts         []string `json:"facts"`
	Decisions     []string `json:"decisions"`
	OpenQuestions []string `json:"open_questions"`
	Assumptions   []string `json:"assumptions"`
	Topic         string   `json:"topic"`

	// Failed is set when the summarizer exhausted its retries and returned
	// a placeholder record. Merges downgrade to structural-only conflict
	// detection when any input record failed.
	Failed bool `json:"-"`
}

// Items returns the record's items for the given category. Unknown
// categories yield nil.
func (r StateRecord) Items(category string) []string {
	switch category {
	case CategoryFacts:
		return r.Facts
	case CategoryDecisions:
		return r.Decisions
	case CategoryOpenQuestions:
		return r.OpenQuestions
	case CategoryAssumptions:
		return r.Assumptions
	}
	return nil
}

// IsEmpty reports whether the record carries no items in any category.
func (r StateRecord) IsEmpty() bool {
	return len(r.Facts) == 0 &&
		len(r.Decisions) == 0 &&
		len(r.OpenQuestions) == 0 &&
		len(r.Assumptions) == 0
}
