package openai

import "github.com/deepnoodle-ai/forky/llm"

const (
	ModelGPT5     = "gpt-5"
	ModelGPT5Mini = "gpt-5-mini"
	ModelGPT5Nano = "gpt-5-nano"
	ModelGPT41    = "gpt-4.1"
	ModelGPT4o    = "gpt-4o"
)

func availableModels() []llm.ModelInfo {
	return []llm.ModelInfo{
		{ID: ModelGPT5, Name: "GPT-5"},
		{ID: ModelGPT5Mini, Name: "GPT-5 Mini"},
		{ID: ModelGPT5Nano, Name: "GPT-5 Nano"},
		{ID: ModelGPT41, Name: "GPT-4.1"},
		{ID: ModelGPT4o, Name: "GPT-4o"},
	}
}
