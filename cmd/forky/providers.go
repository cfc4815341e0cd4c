package main

// Providers register themselves with the default registry at init time.
import (
	_ "github.com/deepnoodle-ai/forky/llm/providers/anthropic"
	_ "github.com/deepnoodle-ai/forky/llm/providers/google"
	_ "github.com/deepnoodle-ai/forky/llm/providers/openai"
)
