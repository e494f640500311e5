package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/mohammad-safakhou/prosearch/config"
)

// GeminiProvider implements Provider using the official google.golang.org/genai SDK.
type GeminiProvider struct {
	name   string
	config config.LLMProvider
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(name string, cfg config.LLMProvider) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, newError(KindConfiguration, name, fmt.Errorf("Gemini API key not configured"))
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, newError(KindConfiguration, name, fmt.Errorf("failed to create Gemini client: %w", err))
	}
	return &GeminiProvider{name: name, config: cfg, client: client}, nil
}

func (p *GeminiProvider) Name() string { return p.name }

func (p *GeminiProvider) Models() []ModelInfo { return modelCatalog(p.config.Models) }

// Generate performs a plain text generation call.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	return p.generate(ctx, req, nil)
}

// GenerateStructured performs a schema-constrained generation call and
// unmarshals the JSON result into out.
func (p *GeminiProvider) GenerateStructured(ctx context.Context, req Request, out any) (*Response, error) {
	schema, err := schemaFor(out)
	if err != nil {
		return nil, newError(KindAPI, p.name, err)
	}
	resp, err := p.generate(ctx, req, schema)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resp.Content), out); err != nil {
		return nil, newError(KindAPI, p.name, fmt.Errorf("structured output is not valid JSON: %w", err))
	}
	return resp, nil
}

func (p *GeminiProvider) generate(ctx context.Context, req Request, schema map[string]any) (*Response, error) {
	m, ok := resolveModel(p.config.Models, req.Model)
	if !ok {
		// Gemini model names are stable API identifiers; pass unknown ones through.
		m = config.LLMModel{Name: req.Model}
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = m.Name
	}

	cfg := &genai.GenerateContentConfig{}
	temperature := m.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	if temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(temperature))
	}
	maxTokens := m.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	if schema != nil {
		cfg.ResponseSchema = toGenaiSchema(schema)
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, apiModel, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, classifyGenai(p.name, err)
	}
	text := resp.Text()
	if text == "" && len(resp.Candidates) == 0 {
		return nil, newError(KindAPI, p.name, fmt.Errorf("empty response from Gemini"))
	}

	out := &Response{Content: text, Model: apiModel}
	if resp.UsageMetadata != nil {
		out.Usage = &Usage{
			PromptTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// classifyGenai maps SDK failures onto the error taxonomy by status code where
// one is present in the error text.
func classifyGenai(name string, err error) *Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return &Error{Kind: KindRateLimit, Provider: name, Status: 429, Err: err}
	case strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout"):
		return newError(KindTimeout, name, err)
	default:
		return classify(name, err)
	}
}

// toGenaiSchema converts a JSON schema map to the SDK's schema type.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}
