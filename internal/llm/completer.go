package llm

import (
	"context"
	"fmt"
	"os"
	"sort"
)

// Request contains the data sent to a model.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response contains the raw text produced by a model.
type Response struct {
	Content string
	Cached  bool
}

// Completer is the provider abstraction used by the stages.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Provider describes a supported backend.
type Provider struct {
	Name         string
	DefaultModel string
	KeyEnv       []string
	BaseURLEnv   string
}

var providers = map[string]Provider{
	"anthropic": {Name: "anthropic", DefaultModel: "claude-sonnet-4-20250514", KeyEnv: []string{"ANTHROPIC_API_KEY"}},
	"openai":    {Name: "openai", DefaultModel: "gpt-4o", KeyEnv: []string{"OPENAI_API_KEY"}, BaseURLEnv: "SIEVE_OPENAI_BASE_URL"},
	"gemini":    {Name: "gemini", DefaultModel: "gemini-2.0-flash", KeyEnv: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}},
	"ollama":    {Name: "ollama", DefaultModel: "llama3", BaseURLEnv: "OLLAMA_HOST"},
}

var aliases = map[string]string{
	"claude":   "anthropic",
	"google":   "gemini",
	"lmstudio": "ollama",
}

// LookupProvider resolves a provider name or alias.
func LookupProvider(name string) (Provider, error) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	p, ok := providers[name]
	if !ok {
		return Provider{}, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

// Providers lists the supported providers sorted by name.
func Providers() []Provider {
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// APIKey returns the first non-empty key from the provider's environment
// variables.
func (p Provider) APIKey() string {
	for _, name := range p.KeyEnv {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// BaseURL returns the base URL override from the environment, if any.
func (p Provider) BaseURL() string {
	if p.BaseURLEnv == "" {
		return ""
	}
	return os.Getenv(p.BaseURLEnv)
}

// NeedsKey reports whether the provider refuses to run without an API key.
func (p Provider) NeedsKey() bool {
	return len(p.KeyEnv) > 0
}
