package google

import "github.com/deepnoodle-ai/forky/llm"

const (
	ModelGemini25Pro       = "gemini-2.5-pro"
	ModelGemini25Flash     = "gemini-2.5-flash"
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
)

func availableModels() []llm.ModelInfo {
	return []llm.ModelInfo{
		{ID: ModelGemini25Pro, Name: "Gemini 2.5 Pro"},
		{ID: ModelGemini25Flash, Name: "Gemini 2.5 Flash"},
		{ID: ModelGemini25FlashLite, Name: "Gemini 2.5 Flash Lite"},
	}
}
