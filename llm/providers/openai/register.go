package openai

import (
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/forky/llm/providers"
)

func init() {
	providers.Register(providers.ProviderEntry{
		Name:  ProviderName,
		Match: providers.EnvMatcher("OPENAI_API_KEY", providers.PrefixesMatcher("gpt-", "o1", "o3", "o4")),
		Factory: func(model, endpoint string) llm.LLM {
			opts := []Option{}
			if model != "" {
				opts = append(opts, WithModel(model))
			}
			if endpoint != "" {
				opts = append(opts, WithEndpoint(endpoint))
			}
			return New(opts...)
		},
	})
}
