package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/prosearch/config"
	"github.com/mohammad-safakhou/prosearch/internal/research"
	"github.com/mohammad-safakhou/prosearch/models"
	"github.com/mohammad-safakhou/prosearch/provider"
)

type catalogProvider struct {
	name   string
	models []provider.ModelInfo
}

func (p catalogProvider) Name() string { return p.name }
func (p catalogProvider) Generate(context.Context, provider.Request) (*provider.Response, error) {
	return nil, errors.New("not implemented")
}
func (p catalogProvider) GenerateStructured(context.Context, provider.Request, any) (*provider.Response, error) {
	return nil, errors.New("not implemented")
}
func (p catalogProvider) Models() []provider.ModelInfo { return p.models }

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "gemini",
			Routing:         config.LLMRoutingConfig{Answer: "gemini-2.5-pro"},
		},
		Search: config.SearchConfig{Provider: "google"},
	}
}

func TestListProviders(t *testing.T) {
	e := echo.New()
	h := &ProvidersHandler{
		Config: testConfig(),
		Providers: map[string]provider.Provider{
			"openai": catalogProvider{name: "openai", models: []provider.ModelInfo{{ID: "gpt-4o"}}},
			"gemini": catalogProvider{name: "gemini"},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/llm-providers", nil)
	rec := httptest.NewRecorder()
	if err := h.list(e.NewContext(req, rec)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	var resp []ProviderInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 || resp[0].Name != "gemini" || resp[1].Name != "openai" {
		t.Fatalf("unexpected catalog: %+v", resp)
	}
	if resp[0].Label != "Google Gemini" || resp[1].Label != "OpenAI" {
		t.Fatalf("unexpected labels: %+v", resp)
	}
	if len(resp[1].Models) != 1 || resp[1].Models[0].ID != "gpt-4o" {
		t.Fatalf("unexpected models: %+v", resp[1].Models)
	}
}

func TestProviderModelsUnknownProvider(t *testing.T) {
	e := echo.New()
	h := &ProvidersHandler{Config: testConfig(), Providers: map[string]provider.Provider{}}

	req := httptest.NewRequest(http.MethodGet, "/api/llm-providers/nope/models", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("name")
	ctx.SetParamValues("nope")

	err := h.models(ctx)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	e := echo.New()
	h := &ProvidersHandler{Config: testConfig()}

	req := httptest.NewRequest(http.MethodGet, "/api/default-config", nil)
	rec := httptest.NewRecorder()
	if err := h.defaults(e.NewContext(req, rec)); err != nil {
		t.Fatalf("defaults: %v", err)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["llm_provider"] != "gemini" || resp["model"] != "gemini-2.5-pro" {
		t.Fatalf("unexpected defaults: %v", resp)
	}
	if resp["search_provider"] != "google" || resp["effort"] != "medium" {
		t.Fatalf("unexpected defaults: %v", resp)
	}
}

type stubResearcher struct {
	got    []models.Message
	opts   research.Overrides
	result *research.Result
	err    error
}

func (s *stubResearcher) Run(_ context.Context, messages []models.Message, o research.Overrides) (*research.Result, error) {
	s.got = messages
	s.opts = o
	return s.result, s.err
}

func TestResearchRun(t *testing.T) {
	e := echo.New()
	stub := &stubResearcher{result: &research.Result{
		Answer:        "the answer",
		Sources:       []models.Source{{Label: "[1]", ShortURL: "[1]", URL: "https://e.com/x", Title: "Example"}},
		SearchQueries: []string{"q1"},
		ResearchLoops: 1,
	}}
	h := &ResearchHandler{Agent: stub}

	body := `{"question":"what is new in Go","options":{"effort":"high","search_provider":"tavily"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.run(e.NewContext(req, rec)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	if len(stub.got) != 1 || stub.got[0].Role != models.RoleUser || stub.got[0].Content != "what is new in Go" {
		t.Fatalf("unexpected messages passed to agent: %+v", stub.got)
	}
	if stub.opts.Effort != "high" || stub.opts.SearchProvider != "tavily" {
		t.Fatalf("overrides lost: %+v", stub.opts)
	}

	var resp research.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "the answer" || len(resp.Sources) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestResearchRunRequiresInput(t *testing.T) {
	e := echo.New()
	h := &ResearchHandler{Agent: &stubResearcher{}}

	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.run(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
