package anthropic

import "github.com/deepnoodle-ai/forky/llm"

const (
	ModelClaudeOpus41   = "claude-opus-4-1"
	ModelClaudeSonnet45 = "claude-sonnet-4-5"
	ModelClaudeSonnet4  = "claude-sonnet-4-0"
	ModelClaudeHaiku45  = "claude-haiku-4-5"
	ModelClaude37Sonnet = "claude-3-7-sonnet-latest"
)

func availableModels() []llm.ModelInfo {
	return []llm.ModelInfo{
		{ID: ModelClaudeOpus41, Name: "Claude Opus 4.1"},
		{ID: ModelClaudeSonnet45, Name: "Claude Sonnet 4.5"},
		{ID: ModelClaudeSonnet4, Name: "Claude Sonnet 4"},
		{ID: ModelClaudeHaiku45, Name: "Claude Haiku 4.5"},
		{ID: ModelClaude37Sonnet, Name: "Claude Sonnet 3.7"},
	}
}
