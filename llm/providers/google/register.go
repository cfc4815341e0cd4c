package google

import (
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/forky/llm/providers"
)

func init() {
	providers.Register(providers.ProviderEntry{
		Name:  ProviderName,
		Match: providers.PrefixesMatcher("gemini"),
		Factory: func(model, endpoint string) llm.LLM {
			opts := []Option{}
			if model != "" {
				opts = append(opts, WithModel(model))
			}
			return New(opts...)
		},
	})
}
