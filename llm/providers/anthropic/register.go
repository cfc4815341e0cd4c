package anthropic

import (
	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/forky/llm/providers"
)

func init() {
	providers.Register(providers.ProviderEntry{
		Name:  ProviderName,
		Match: providers.EnvMatcher("ANTHROPIC_API_KEY", providers.PrefixesMatcher("claude")),
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
