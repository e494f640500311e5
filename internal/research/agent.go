// Package research implements the iterative research agent: query
// generation, scattered web research, reflection and answer finalization,
// wired together on the graph engine.
package research

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/prosearch/config"
	"github.com/mohammad-safakhou/prosearch/internal/graph"
	"github.com/mohammad-safakhou/prosearch/internal/telemetry"
	"github.com/mohammad-safakhou/prosearch/models"
	"github.com/mohammad-safakhou/prosearch/provider"
	"github.com/mohammad-safakhou/prosearch/tools/web_search"
)

// searcherFactory builds the search backend for a provider name. Swappable in
// tests.
type searcherFactory func(p web_search.Provider, cfg config.SearchConfig) (web_search.WebSearcher, error)

// Agent runs research sessions against the configured LLM and search
// providers. One Agent serves many concurrent runs; all per-run inputs travel
// through the graph state.
type Agent struct {
	cfg         *config.Config
	providers   map[string]provider.Provider
	telemetry   *telemetry.Telemetry
	logger      *log.Logger
	newSearcher searcherFactory
}

// NewAgent builds an agent from configuration. At least one LLM provider must
// resolve.
func NewAgent(cfg *config.Config, telem *telemetry.Telemetry) (*Agent, error) {
	providers, err := provider.FromConfig(cfg.LLM)
	if err != nil {
		return nil, err
	}
	return &Agent{
		cfg:         cfg,
		providers:   providers,
		telemetry:   telem,
		logger:      log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags),
		newSearcher: web_search.NewWebSearcher,
	}, nil
}

// Providers exposes the resolved LLM providers for the catalog endpoints.
func (a *Agent) Providers() map[string]provider.Provider { return a.providers }

// Overrides are the per-run knobs a caller may set on top of the configured
// defaults. Zero values mean "use the default".
type Overrides struct {
	LLMProvider             string `json:"llm_provider"`
	Model                   string `json:"model"`
	SearchProvider          string `json:"search_provider"`
	Effort                  string `json:"effort"` // low, medium, high
	InitialSearchQueryCount int    `json:"initial_search_query_count"`
	MaxResearchLoops        int    `json:"max_research_loops"`
}

// RunConfig is the fully resolved per-run configuration. Precedence, per
// knob: explicit override, then effort level, then configured default.
type RunConfig struct {
	LLMProvider             string
	ReasoningModel          string
	SearchProvider          string
	InitialSearchQueryCount int
	MaxResearchLoops        int
}

func (a *Agent) resolveRunConfig(o Overrides) RunConfig {
	rc := RunConfig{
		LLMProvider:             o.LLMProvider,
		ReasoningModel:          o.Model,
		SearchProvider:          o.SearchProvider,
		InitialSearchQueryCount: a.cfg.Research.InitialSearchQueryCount,
		MaxResearchLoops:        a.cfg.Research.MaxResearchLoops,
	}
	if rc.SearchProvider == "" {
		rc.SearchProvider = a.cfg.Search.Provider
	}
	switch o.Effort {
	case "low":
		rc.InitialSearchQueryCount, rc.MaxResearchLoops = 1, 1
	case "medium":
		rc.InitialSearchQueryCount, rc.MaxResearchLoops = 3, 3
	case "high":
		rc.InitialSearchQueryCount, rc.MaxResearchLoops = 5, 10
	}
	if o.InitialSearchQueryCount > 0 {
		rc.InitialSearchQueryCount = o.InitialSearchQueryCount
	}
	if o.MaxResearchLoops > 0 {
		rc.MaxResearchLoops = o.MaxResearchLoops
	}
	return rc
}

// Result is the outcome of one research run.
type Result struct {
	Answer        string          `json:"answer"`
	Sources       []models.Source `json:"sources"`
	SearchQueries []string        `json:"search_queries"`
	ResearchLoops int             `json:"research_loops"`
	Elapsed       time.Duration   `json:"elapsed"`
}

// Run executes the full research graph over a conversation. The last message
// is the question under research; earlier messages provide context for
// follow-ups.
func (a *Agent) Run(ctx context.Context, messages []models.Message, o Overrides) (*Result, error) {
	rc := a.resolveRunConfig(o)
	init := graph.State{
		Messages:                messages,
		LLMProvider:             rc.LLMProvider,
		ReasoningModel:          rc.ReasoningModel,
		SearchProvider:          rc.SearchProvider,
		InitialSearchQueryCount: rc.InitialSearchQueryCount,
		MaxResearchLoops:        rc.MaxResearchLoops,
	}

	g := &graph.Graph{
		GenerateQuery:     a.generateQuery,
		Dispatch:          dispatchInitial,
		WebResearch:       a.webResearch,
		Reflect:           a.reflect,
		Evaluate:          evaluateResearch,
		Finalize:          a.finalizeAnswer,
		InitialQueryCount: a.cfg.Research.InitialSearchQueryCount,
		MaxLoops:          a.cfg.Research.MaxResearchLoops,
		Logger:            a.logger,
		OnNode:            a.telemetry.RecordNode,
	}

	start := time.Now()
	final, err := g.Run(ctx, init)
	elapsed := time.Since(start)
	if err != nil {
		a.telemetry.RecordRun("error", elapsed, final.ResearchLoopCount)
		return nil, err
	}
	a.telemetry.RecordRun("ok", elapsed, final.ResearchLoopCount)

	return &Result{
		Answer:        lastAssistantContent(final.Messages),
		Sources:       final.SourcesGathered,
		SearchQueries: final.SearchQueries,
		ResearchLoops: final.ResearchLoopCount,
		Elapsed:       elapsed,
	}, nil
}

// Ask runs a single-question research session.
func (a *Agent) Ask(ctx context.Context, question string, o Overrides) (*Result, error) {
	msg := models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: question}
	return a.Run(ctx, []models.Message{msg}, o)
}

// dispatchInitial fans the generated queries out into one branch each, ids
// starting from zero.
func dispatchInitial(s graph.State, queries []string) []graph.WorkItem {
	items := make([]graph.WorkItem, len(queries))
	for i, q := range queries {
		items[i] = graph.WorkItem{Query: q, ID: i, SearchProvider: s.SearchProvider}
	}
	return items
}

// evaluateResearch decides whether another scatter round is worth running.
// Empty follow-ups force finalization even when the model declared the
// research insufficient, otherwise the loop could spin with nothing to search.
func evaluateResearch(s graph.State) graph.Route {
	if s.IsSufficient || s.ResearchLoopCount >= s.MaxResearchLoops {
		return graph.Route{Finalize: true}
	}
	if len(s.FollowUpQueries) == 0 {
		return graph.Route{Finalize: true}
	}
	items := make([]graph.WorkItem, len(s.FollowUpQueries))
	for i, q := range s.FollowUpQueries {
		items[i] = graph.WorkItem{
			Query:          q,
			ID:             s.NumberOfRanQueries + i,
			SearchProvider: s.SearchProvider,
		}
	}
	return graph.Route{Items: items}
}

// providerFor resolves the LLM provider for a run, falling back to the
// configured default when the run didn't pick one.
func (a *Agent) providerFor(name string) (provider.Provider, error) {
	if name == "" {
		name = a.cfg.LLM.DefaultProvider
	}
	if p, ok := a.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("LLM provider %q is not configured", name)
}

// modelFor returns the run's model override when set, the routed task model
// otherwise.
func modelFor(s graph.State, routed string) string {
	if s.ReasoningModel != "" {
		return s.ReasoningModel
	}
	return routed
}

func (a *Agent) recordUsage(providerName, task string, resp *provider.Response) {
	if resp == nil || resp.Usage == nil {
		return
	}
	a.telemetry.RecordLLMUsage(providerName, task, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
}

func lastAssistantContent(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleAssistant {
			return messages[i].Content
		}
	}
	return ""
}
