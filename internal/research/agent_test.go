package research

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/prosearch/config"
	"github.com/mohammad-safakhou/prosearch/internal/graph"
	"github.com/mohammad-safakhou/prosearch/internal/telemetry"
	"github.com/mohammad-safakhou/prosearch/models"
	"github.com/mohammad-safakhou/prosearch/provider"
	"github.com/mohammad-safakhou/prosearch/tools/web_search"
	searchmodels "github.com/mohammad-safakhou/prosearch/tools/web_search/models"
)

type stubProvider struct {
	name       string
	generate   func(req provider.Request) (*provider.Response, error)
	structured func(req provider.Request, out any) (*provider.Response, error)
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(_ context.Context, req provider.Request) (*provider.Response, error) {
	return p.generate(req)
}

func (p *stubProvider) GenerateStructured(_ context.Context, req provider.Request, out any) (*provider.Response, error) {
	return p.structured(req, out)
}

func (p *stubProvider) Models() []provider.ModelInfo { return nil }

type stubSearcher struct {
	result searchmodels.Result
	err    error
}

func (s stubSearcher) Search(context.Context, string, int, string) (searchmodels.Result, error) {
	return s.result, s.err
}

// fillJSON is how structured stubs populate the caller's target.
func fillJSON(t *testing.T, out any, raw string) {
	t.Helper()
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		t.Fatalf("fill structured output: %v", err)
	}
}

func testAgent(p provider.Provider, factory searcherFactory) *Agent {
	cfg := &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "stub",
			Routing: config.LLMRoutingConfig{
				QueryGenerator: "fast",
				Reflection:     "fast",
				Answer:         "smart",
			},
		},
		Search: config.SearchConfig{Provider: "google", ResultsLimit: 10, Language: "en-US"},
		Research: config.ResearchConfig{
			InitialSearchQueryCount: 3,
			MaxResearchLoops:        2,
			QueryTemperature:        0.7,
			QueryMaxTokens:          2000,
			ReflectionTemperature:   0.7,
			ReflectionMaxTokens:     4000,
			AnswerTemperature:       0.3,
			AnswerMaxTokens:         8000,
		},
	}
	return &Agent{
		cfg:         cfg,
		providers:   map[string]provider.Provider{"stub": p},
		telemetry:   telemetry.New(config.TelemetryConfig{}),
		logger:      log.New(io.Discard, "", 0),
		newSearcher: factory,
	}
}

func okSearcherFactory(res searchmodels.Result) searcherFactory {
	return func(web_search.Provider, config.SearchConfig) (web_search.WebSearcher, error) {
		return stubSearcher{result: res}, nil
	}
}

func TestGenerateQueryParsesStructuredOutput(t *testing.T) {
	p := &stubProvider{
		name: "stub",
		structured: func(req provider.Request, out any) (*provider.Response, error) {
			if req.Model != "fast" {
				t.Fatalf("query generation routed to model %q, want fast", req.Model)
			}
			fillJSON(t, out, `{"queries":[{"query":"go scheduler internals","rationale":"core"},{"query":"","rationale":"blank"},{"query":"go preemption history","rationale":"depth"}]}`)
			return &provider.Response{Content: "{}"}, nil
		},
	}
	a := testAgent(p, nil)

	s := graph.State{
		Messages:                []models.Message{{Role: models.RoleUser, Content: "how does the go scheduler work"}},
		InitialSearchQueryCount: 3,
	}
	d, err := a.generateQuery(context.Background(), s)
	if err != nil {
		t.Fatalf("generateQuery: %v", err)
	}
	want := []string{"go scheduler internals", "go preemption history"}
	if len(d.SearchQueries) != len(want) {
		t.Fatalf("queries = %v, want %v", d.SearchQueries, want)
	}
	for i := range want {
		if d.SearchQueries[i] != want[i] {
			t.Fatalf("queries = %v, want %v", d.SearchQueries, want)
		}
	}
}

func TestGenerateQueryFallsBackToTopic(t *testing.T) {
	p := &stubProvider{
		name: "stub",
		structured: func(provider.Request, any) (*provider.Response, error) {
			return nil, errors.New("model unavailable")
		},
	}
	a := testAgent(p, nil)

	s := graph.State{
		Messages:                []models.Message{{Role: models.RoleUser, Content: "rust async runtimes"}},
		InitialSearchQueryCount: 3,
	}
	d, err := a.generateQuery(context.Background(), s)
	if err != nil {
		t.Fatalf("generateQuery must absorb failures, got %v", err)
	}
	if len(d.SearchQueries) != 1 || d.SearchQueries[0] != "rust async runtimes" {
		t.Fatalf("fallback queries = %v, want the topic itself", d.SearchQueries)
	}
}

func TestWebResearchNormalizesSources(t *testing.T) {
	res := searchmodels.Result{
		Content: "[1] A\n\n[2] B",
		Sources: []searchmodels.Source{
			{URL: "https://a.com/1", Title: "A"},
			{URL: "https://b.com/2", Title: "B"},
		},
	}
	a := testAgent(&stubProvider{name: "stub"}, okSearcherFactory(res))

	d, err := a.webResearch(context.Background(), graph.WorkItem{Query: "q", ID: 0, SearchProvider: "serper"})
	if err != nil {
		t.Fatalf("webResearch: %v", err)
	}
	if len(d.SearchQueries) != 1 || len(d.WebResearchResults) != 1 {
		t.Fatalf("branch must emit exactly one query and one result, got %v / %v", d.SearchQueries, d.WebResearchResults)
	}
	if len(d.Sources) != 2 {
		t.Fatalf("sources = %v, want 2", d.Sources)
	}
	if d.Sources[0].Label != "[1]" || d.Sources[0].ShortURL != "[1]" || d.Sources[1].Label != "[2]" {
		t.Fatalf("branch-local labels wrong: %+v", d.Sources)
	}
	if d.Sources[0].URL != "https://a.com/1" || d.Sources[0].Title != "A" {
		t.Fatalf("source fields wrong: %+v", d.Sources[0])
	}
}

func TestWebResearchFallsBackToGrounding(t *testing.T) {
	calls := []web_search.Provider{}
	factory := func(p web_search.Provider, _ config.SearchConfig) (web_search.WebSearcher, error) {
		calls = append(calls, p)
		if p != web_search.GoogleProvider {
			return stubSearcher{err: errors.New("quota exceeded")}, nil
		}
		return stubSearcher{result: searchmodels.Result{
			Content: "grounded",
			Sources: []searchmodels.Source{{URL: "https://g.com/r", Title: "G"}},
		}}, nil
	}
	a := testAgent(&stubProvider{name: "stub"}, factory)

	d, err := a.webResearch(context.Background(), graph.WorkItem{Query: "q", ID: 3, SearchProvider: "tavily"})
	if err != nil {
		t.Fatalf("webResearch: %v", err)
	}
	if len(calls) != 2 || calls[0] != web_search.TavilyProvider || calls[1] != web_search.GoogleProvider {
		t.Fatalf("provider call order = %v", calls)
	}
	if d.WebResearchResults[0] != "grounded" || len(d.Sources) != 1 {
		t.Fatalf("fallback delta wrong: %+v", d)
	}
}

func TestWebResearchGroundingPrimaryNeverRetriesItself(t *testing.T) {
	calls := 0
	factory := func(p web_search.Provider, _ config.SearchConfig) (web_search.WebSearcher, error) {
		calls++
		if p != web_search.GoogleProvider {
			t.Fatalf("unexpected provider %q", p)
		}
		return stubSearcher{err: errors.New("quota exceeded")}, nil
	}
	a := testAgent(&stubProvider{name: "stub"}, factory)

	d, err := a.webResearch(context.Background(), graph.WorkItem{Query: "q", ID: 0, SearchProvider: "google"})
	if err != nil {
		t.Fatalf("branch failure must not escalate, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("grounding searched %d times, want 1", calls)
	}
	if len(d.SearchQueries) != 1 || len(d.WebResearchResults) != 1 {
		t.Fatalf("degraded branch must still emit one query and one result: %+v", d)
	}
}

func TestWebResearchEmitsDeltaWhenAllSearchFails(t *testing.T) {
	factory := func(web_search.Provider, config.SearchConfig) (web_search.WebSearcher, error) {
		return stubSearcher{err: errors.New("network down")}, nil
	}
	a := testAgent(&stubProvider{name: "stub"}, factory)

	d, err := a.webResearch(context.Background(), graph.WorkItem{Query: "doomed", ID: 0, SearchProvider: "brave"})
	if err != nil {
		t.Fatalf("branch failure must not escalate, got %v", err)
	}
	if len(d.SearchQueries) != 1 || len(d.WebResearchResults) != 1 {
		t.Fatalf("degraded branch must still emit one query and one result: %+v", d)
	}
	if len(d.Sources) != 0 {
		t.Fatalf("degraded branch must emit no sources: %+v", d.Sources)
	}
}

func TestReflectIncrementsLoopAndCountsQueries(t *testing.T) {
	p := &stubProvider{
		name: "stub",
		structured: func(req provider.Request, out any) (*provider.Response, error) {
			fillJSON(t, out, `{"is_sufficient":false,"knowledge_gap":"missing benchmarks","follow_up_queries":["benchmark data"]}`)
			return &provider.Response{Content: "{}"}, nil
		},
	}
	a := testAgent(p, nil)

	s := graph.State{
		Messages:           []models.Message{{Role: models.RoleUser, Content: "topic"}},
		SearchQueries:      []string{"a", "b", "c"},
		WebResearchResults: []string{"r1", "r2", "r3"},
		ResearchLoopCount:  1,
	}
	d, err := a.reflect(context.Background(), s)
	if err != nil {
		t.Fatalf("reflect: %v", err)
	}
	if *d.ResearchLoopCount != 2 {
		t.Fatalf("loop count = %d, want 2", *d.ResearchLoopCount)
	}
	if *d.NumberOfRanQueries != 3 {
		t.Fatalf("ran queries = %d, want 3", *d.NumberOfRanQueries)
	}
	if *d.IsSufficient || *d.KnowledgeGap != "missing benchmarks" {
		t.Fatalf("reflection fields wrong: %+v", d)
	}
	if !d.SetFollowUps || len(d.FollowUpQueries) != 1 {
		t.Fatalf("follow-ups wrong: %+v", d)
	}
}

func TestReflectFailureForcesTermination(t *testing.T) {
	p := &stubProvider{
		name: "stub",
		structured: func(provider.Request, any) (*provider.Response, error) {
			return nil, errors.New("rate limited")
		},
	}
	a := testAgent(p, nil)

	s := graph.State{SearchQueries: []string{"a"}, ResearchLoopCount: 0}
	d, err := a.reflect(context.Background(), s)
	if err != nil {
		t.Fatalf("reflect must absorb failures, got %v", err)
	}
	if !*d.IsSufficient {
		t.Fatal("failed reflection must report sufficient")
	}
	if !d.SetFollowUps || len(d.FollowUpQueries) != 0 {
		t.Fatalf("failed reflection must clear follow-ups: %+v", d)
	}
	if *d.ResearchLoopCount != 1 {
		t.Fatalf("loop count = %d, want 1 even on failure", *d.ResearchLoopCount)
	}
}

func TestFinalizeAnswerResolvesCitations(t *testing.T) {
	p := &stubProvider{
		name: "stub",
		generate: func(req provider.Request) (*provider.Response, error) {
			if req.Model != "smart" {
				t.Fatalf("answer routed to model %q, want smart", req.Model)
			}
			return &provider.Response{Content: "Summary backed by [1]."}, nil
		},
	}
	a := testAgent(p, nil)

	s := graph.State{
		Messages:           []models.Message{{Role: models.RoleUser, Content: "topic"}},
		WebResearchResults: []string{"block"},
		SourcesGathered:    []models.Source{{Label: "[1]", ShortURL: "[1]", URL: "https://e.com/x", Title: "Example"}},
	}
	d, err := a.finalizeAnswer(context.Background(), s)
	if err != nil {
		t.Fatalf("finalizeAnswer: %v", err)
	}
	if len(d.Messages) != 1 || d.Messages[0].Role != models.RoleAssistant {
		t.Fatalf("terminal message missing: %+v", d.Messages)
	}
	if want := "Summary backed by [Example](https://e.com/x)."; d.Messages[0].Content != want {
		t.Fatalf("answer = %q, want %q", d.Messages[0].Content, want)
	}
	if !d.ReplaceSources || len(d.Sources) != 1 {
		t.Fatalf("used sources must replace the gathered set: %+v", d)
	}
}

func TestFinalizeAnswerFailureEmitsTerminalMessage(t *testing.T) {
	p := &stubProvider{
		name: "stub",
		generate: func(provider.Request) (*provider.Response, error) {
			return nil, errors.New("model exploded")
		},
	}
	a := testAgent(p, nil)

	d, err := a.finalizeAnswer(context.Background(), graph.State{})
	if err != nil {
		t.Fatalf("finalizeAnswer must never propagate failure, got %v", err)
	}
	if len(d.Messages) != 1 {
		t.Fatal("terminal message missing")
	}
	if !strings.Contains(d.Messages[0].Content, "model exploded") {
		t.Fatalf("error message must embed the cause: %q", d.Messages[0].Content)
	}
	if !d.ReplaceSources || len(d.Sources) != 0 {
		t.Fatalf("failure must clear the source list: %+v", d)
	}
}

func TestResolveRunConfigPrecedence(t *testing.T) {
	a := testAgent(&stubProvider{name: "stub"}, nil)

	rc := a.resolveRunConfig(Overrides{})
	if rc.InitialSearchQueryCount != 3 || rc.MaxResearchLoops != 2 {
		t.Fatalf("defaults not applied: %+v", rc)
	}
	if rc.SearchProvider != "google" {
		t.Fatalf("search provider default = %q", rc.SearchProvider)
	}

	rc = a.resolveRunConfig(Overrides{Effort: "high"})
	if rc.InitialSearchQueryCount != 5 || rc.MaxResearchLoops != 10 {
		t.Fatalf("high effort mapping wrong: %+v", rc)
	}

	rc = a.resolveRunConfig(Overrides{Effort: "low", MaxResearchLoops: 4})
	if rc.InitialSearchQueryCount != 1 || rc.MaxResearchLoops != 4 {
		t.Fatalf("explicit override must beat effort: %+v", rc)
	}

	rc = a.resolveRunConfig(Overrides{LLMProvider: "openai", Model: "gpt-4o", SearchProvider: "tavily"})
	if rc.LLMProvider != "openai" || rc.ReasoningModel != "gpt-4o" || rc.SearchProvider != "tavily" {
		t.Fatalf("provider overrides lost: %+v", rc)
	}
}

func TestAskEndToEnd(t *testing.T) {
	p := &stubProvider{
		name: "stub",
		structured: func(req provider.Request, out any) (*provider.Response, error) {
			switch out.(type) {
			case *searchQueryList:
				fillJSON(t, out, `{"queries":[{"query":"q1","rationale":"r"},{"query":"q2","rationale":"r"}]}`)
			case *reflection:
				fillJSON(t, out, `{"is_sufficient":true,"knowledge_gap":"","follow_up_queries":[]}`)
			default:
				t.Fatalf("unexpected structured target %T", out)
			}
			return &provider.Response{Content: "{}"}, nil
		},
		generate: func(provider.Request) (*provider.Response, error) {
			return &provider.Response{Content: "Answer citing [1]."}, nil
		},
	}
	res := searchmodels.Result{
		Content: "found things",
		Sources: []searchmodels.Source{{URL: "https://src.example/a", Title: "Src"}},
	}
	a := testAgent(p, okSearcherFactory(res))

	result, err := a.Ask(context.Background(), "what is new in Go", Overrides{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(result.SearchQueries) != 2 {
		t.Fatalf("search queries = %v", result.SearchQueries)
	}
	if result.SearchQueries[0] != "q1" || result.SearchQueries[1] != "q2" {
		t.Fatalf("search queries = %v, want [q1 q2]", result.SearchQueries)
	}
	if result.ResearchLoops != 1 {
		t.Fatalf("loops = %d, want 1", result.ResearchLoops)
	}
	if !strings.Contains(result.Answer, "[Src](https://src.example/a)") {
		t.Fatalf("answer citations unresolved: %q", result.Answer)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("sources = %v", result.Sources)
	}
}
