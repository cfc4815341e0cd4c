package merge

import "strings"

// extractJSON pulls a JSON object out of model output that may wrap it in
// markdown code fences or surrounding prose. Returns the trimmed candidate;
// the caller decides whether it parses.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)

	// Strip a fenced code block if present, with or without a language tag.
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	// Fall back to the outermost braces when prose surrounds the object.
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
