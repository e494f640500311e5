package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mohammad-safakhou/prosearch/config"
)

// OpenAIProvider implements Provider against the OpenAI-compatible
// chat-completions API. Any vendor exposing that surface works by pointing
// BaseURL at it.
type OpenAIProvider struct {
	name   string
	config config.LLMProvider
	http   *httpClient
}

// NewOpenAIProvider creates a new OpenAI-compatible provider
func NewOpenAIProvider(name string, cfg config.LLMProvider) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, newError(KindConfiguration, name, fmt.Errorf("OpenAI API key not configured"))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		name:   name,
		config: cfg,
		http:   newHTTPClient(name, cfg.Timeout, cfg.MaxRetries),
	}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Models() []ModelInfo { return modelCatalog(p.config.Models) }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate generates free text via chat completions
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	return p.complete(ctx, req, nil)
}

// GenerateStructured constrains the model to JSON matching out's schema. The
// chat-completions surface has no schema parameter, so the schema is inlined
// into the prompt and json_object mode enforces well-formed output.
func (p *OpenAIProvider) GenerateStructured(ctx context.Context, req Request, out any) (*Response, error) {
	schema, err := schemaFor(out)
	if err != nil {
		return nil, newError(KindAPI, p.name, err)
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, newError(KindAPI, p.name, err)
	}
	structured := req
	structured.Prompt = fmt.Sprintf(
		"%s\n\nRespond with a single JSON object matching this JSON schema, with no surrounding prose or code fences:\n%s",
		req.Prompt, schemaJSON,
	)
	resp, err := p.complete(ctx, structured, &responseFormat{Type: "json_object"})
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(resp.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return nil, newError(KindAPI, p.name, fmt.Errorf("structured output is not valid JSON: %w", err))
	}
	return resp, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, req Request, format *responseFormat) (*Response, error) {
	m, ok := resolveModel(p.config.Models, req.Model)
	if !ok {
		return nil, newError(KindConfiguration, p.name, fmt.Errorf("model %s not configured", req.Model))
	}
	apiModel := m.APIName
	if apiModel == "" {
		apiModel = m.Name
	}

	temperature := m.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	maxTokens := m.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	body := chatRequest{
		Model:          apiModel,
		Messages:       []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: format,
	}

	var out chatResponse
	headers := map[string]string{"Authorization": "Bearer " + p.config.APIKey}
	if err := p.http.doJSON(ctx, "POST", p.config.BaseURL+"/chat/completions", headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, newError(KindAPI, p.name, fmt.Errorf("no choices in response"))
	}

	return &Response{
		Content: out.Choices[0].Message.Content,
		Model:   apiModel,
		Usage: &Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
		},
	}, nil
}
