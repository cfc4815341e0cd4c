package merge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/forky/graph"
)

const stateSummaryPrompt = `Analyze the following conversation and extract a structured state summary.

<conversation>
%s
</conversation>

Extract the current state of the conversation into a structured format.
Be precise and concise. Only include items that are explicitly stated or
strongly implied.

Output a valid JSON object with these fields:
- "facts": array of established facts (things stated as true)
- "decisions": array of decisions that have been made
- "open_questions": array of unresolved questions
- "assumptions": array of assumptions being made
- "topic": one short phrase naming the conversation's subject

Example output:
{
  "facts": ["The project uses Go 1.22", "The database is PostgreSQL"],
  "decisions": ["Use REST instead of GraphQL"],
  "open_questions": ["What is the latency target?"],
  "assumptions": ["Users have admin access"],
  "topic": "API redesign"
}

If a category has no items, use an empty array [].
Return ONLY the JSON object, no additional text.`

const strictStateSummaryPrompt = `Extract a state summary from the conversation below.

<conversation>
%s
</conversation>

Respond with EXACTLY one JSON object and nothing else. No markdown fences,
no commentary, no leading or trailing text. The object must have exactly
these keys: "facts", "decisions", "open_questions", "assumptions" (each an
array of strings, [] when empty) and "topic" (a string).`

const mergeSystemPrompt = `You are merging two divergent branches of a conversation back together. You are given the state both branches started from, what each branch changed, and any detected conflicts. Write the assistant's next message: a coherent continuation that unifies both branches' progress. Never silently pick a winner for a conflict.`

// buildMergePrompt assembles the final merge completion prompt from the
// baseline state, the two branch diffs, the detected conflicts, and the
// caller's instructions.
func buildMergePrompt(base StateRecord, left, right StateDiff, conflicts []graph.ConflictRecord, userPrompt string, structuralOnly bool) string {
	var b strings.Builder
	b.WriteString("Two branches of this conversation are being merged.\n\n")

	b.WriteString("<base_state>\n")
	b.WriteString(marshalIndent(base))
	b.WriteString("\n</base_state>\n\n")

	b.WriteString("<left_branch_changes>\n")
	b.WriteString(marshalIndent(left))
	b.WriteString("\n</left_branch_changes>\n\n")

	b.WriteString("<right_branch_changes>\n")
	b.WriteString(marshalIndent(right))
	b.WriteString("\n</right_branch_changes>\n\n")

	switch {
	case len(conflicts) > 0:
		b.WriteString("The branches conflict on the following points. Do not auto-resolve these; surface them to the user or ask clarifying questions:\n")
		for _, c := range conflicts {
			fmt.Fprintf(&b, "- [%s/%s] left: %q vs right: %q\n", c.Category, c.Kind, c.LeftItem, c.RightItem)
		}
		b.WriteString("\n")
	case structuralOnly:
		b.WriteString("State summarization was unavailable, so conflicts could not be detected. Compare the two branches yourself and call out any contradictions rather than resolving them.\n\n")
	default:
		b.WriteString("No conflicts were detected between the branches.\n\n")
	}

	if userPrompt != "" {
		b.WriteString("Merge instructions from the user:\n")
		b.WriteString(userPrompt)
		b.WriteString("\n\n")
	}

	b.WriteString("Write the next assistant message continuing the merged conversation.")
	return b.String()
}

func marshalIndent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
