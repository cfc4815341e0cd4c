// Package llm defines the model client capability the conversation engine
// depends on: role-tagged messages, a generate/stream interface, and the
// streaming event shapes. Provider adapters live in llm/providers.
package llm

import (
	"context"

	"github.com/deepnoodle-ai/forky/slogger"
)

// LLM is implemented by model providers that can generate a response for a
// message list.
type LLM interface {
	// Name of the provider, e.g. "anthropic".
	Name() string

	// Generate a response from the LLM by passing messages.
	Generate(ctx context.Context, messages []*Message, opts ...Option) (*Response, error)
}

// StreamingLLM is implemented by providers that support streamed responses.
type StreamingLLM interface {
	LLM

	// Stream a response from the LLM by passing messages.
	Stream(ctx context.Context, messages []*Message, opts ...Option) (Stream, error)
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	AvailableModels() []ModelInfo
}

// ModelInfo identifies one model offered by a provider.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Config holds configuration parameters for LLM generation.
type Config struct {
	Model        string
	SystemPrompt string
	MaxTokens    *int
	Temperature  *float64
	Logger       slogger.Logger
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Option is a function that configures the generation.
type Option func(*Config)

// WithModel sets the LLM model for the generation.
func WithModel(model string) Option {
	return func(config *Config) {
		config.Model = model
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(systemPrompt string) Option {
	return func(config *Config) {
		config.SystemPrompt = systemPrompt
	}
}

// WithMaxTokens sets the max tokens.
func WithMaxTokens(maxTokens int) Option {
	return func(config *Config) {
		config.MaxTokens = &maxTokens
	}
}

// WithTemperature sets the temperature.
func WithTemperature(temperature float64) Option {
	return func(config *Config) {
		config.Temperature = &temperature
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger slogger.Logger) Option {
	return func(config *Config) {
		config.Logger = logger
	}
}
