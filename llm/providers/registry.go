package providers

import (
	"os"
	"strings"
	"sync"

	"github.com/deepnoodle-ai/forky/llm"
)

// ProviderFactory creates an LLM client for a given model name and optional
// endpoint override.
type ProviderFactory func(model, endpoint string) llm.LLM

// ModelMatcher determines if a model name matches a provider.
type ModelMatcher func(model string) bool

// ProviderEntry pairs a matcher with its factory.
type ProviderEntry struct {
	Name    string
	Match   ModelMatcher
	Factory ProviderFactory
}

// Registry manages model-to-provider mappings. Providers register themselves
// during init() and the registry is used to create clients based on model
// names.
type Registry struct {
	mu      sync.RWMutex
	entries []ProviderEntry
}

// Register adds a provider entry to the registry. Entries are checked in
// registration order, so register more specific matchers before more general
// ones.
func (r *Registry) Register(entry ProviderEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// CreateModel returns an LLM client for the given model name and endpoint.
// It iterates through registered entries in order and returns the first
// match, or nil if nothing matches.
func (r *Registry) CreateModel(model, endpoint string) llm.LLM {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if entry.Match(model) {
			return entry.Factory(model, endpoint)
		}
	}
	return nil
}

// Lookup returns the entry registered under the given provider name.
func (r *Registry) Lookup(name string) (ProviderEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if strings.EqualFold(entry.Name, name) {
			return entry, true
		}
	}
	return ProviderEntry{}, false
}

// Entries returns a copy of all registered provider entries.
func (r *Registry) Entries() []ProviderEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ProviderEntry, len(r.entries))
	copy(result, r.entries)
	return result
}

// PrefixesMatcher returns a matcher that checks for any of the given
// prefixes, case-insensitive.
func PrefixesMatcher(prefixes ...string) ModelMatcher {
	lowered := make([]string, len(prefixes))
	for i, p := range prefixes {
		lowered[i] = strings.ToLower(p)
	}
	return func(model string) bool {
		lower := strings.ToLower(model)
		for _, prefix := range lowered {
			if strings.HasPrefix(lower, prefix) {
				return true
			}
		}
		return false
	}
}

// EnvMatcher returns a matcher that only matches if an environment variable
// is set. Useful for providers that require API keys.
func EnvMatcher(envVar string, inner ModelMatcher) ModelMatcher {
	return func(model string) bool {
		if os.Getenv(envVar) == "" {
			return false
		}
		return inner(model)
	}
}

// Global default registry
var defaultRegistry = &Registry{}

// Register adds a provider entry to the default registry. This is typically
// called from provider init() functions.
func Register(entry ProviderEntry) {
	defaultRegistry.Register(entry)
}

// CreateModel creates an LLM client using the default registry.
func CreateModel(model, endpoint string) llm.LLM {
	return defaultRegistry.CreateModel(model, endpoint)
}

// DefaultRegistry returns the default global registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
