package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/mohammad-safakhou/prosearch/config"
)

// Request is a single text-generation call.
type Request struct {
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage reports token consumption when the vendor returns it.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Response is the result of a generation call. For structured calls the
// decoded value lands in the caller's target and Content carries the raw text.
type Response struct {
	Content string
	Model   string
	Usage   *Usage
}

// ModelInfo describes one configured model for the catalog endpoints.
type ModelInfo struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Description              string `json:"description"`
	MaxTokens                int    `json:"context_length"`
	SupportsStructuredOutput bool   `json:"supports_structured_output"`
}

// Provider is the text-generation capability consumed by the research nodes.
// GenerateStructured constrains the output to the JSON schema of out's type
// and unmarshals the result into out. All failures are *Error values.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
	GenerateStructured(ctx context.Context, req Request, out any) (*Response, error)
	Models() []ModelInfo
}

// New creates a provider from its configuration section.
func New(name string, cfg config.LLMProvider) (Provider, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAIProvider(name, cfg)
	case "gemini":
		return NewGeminiProvider(name, cfg)
	default:
		return nil, newError(KindConfiguration, name, fmt.Errorf("unsupported LLM provider type: %s", cfg.Type))
	}
}

// FromConfig builds every provider whose credentials resolve. Providers with
// broken configuration are skipped; at least one must survive.
func FromConfig(cfg config.LLMConfig) (map[string]Provider, error) {
	providers := make(map[string]Provider)
	for name, pc := range cfg.Providers {
		p, err := New(name, pc)
		if err != nil {
			continue
		}
		providers[name] = p
	}
	if len(providers) == 0 {
		return nil, newError(KindConfiguration, "llm", fmt.Errorf("no LLM providers are properly configured"))
	}
	return providers, nil
}

// modelCatalog converts a config model map into a sorted ModelInfo list.
func modelCatalog(models map[string]config.LLMModel) []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for id, m := range models {
		name := m.Name
		if name == "" {
			name = id
		}
		out = append(out, ModelInfo{
			ID:                       id,
			Name:                     name,
			Description:              m.Description,
			MaxTokens:                m.MaxTokens,
			SupportsStructuredOutput: m.SupportsStructuredOutput,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// resolveModel looks up a model's config, tolerating lookups by API name.
func resolveModel(models map[string]config.LLMModel, id string) (config.LLMModel, bool) {
	if m, ok := models[id]; ok {
		return m, true
	}
	for _, m := range models {
		if m.Name == id || m.APIName == id {
			return m, true
		}
	}
	return config.LLMModel{}, false
}
