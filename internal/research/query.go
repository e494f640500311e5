package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/prosearch/internal/graph"
	"github.com/mohammad-safakhou/prosearch/provider"
)

type searchQuery struct {
	Query     string `json:"query"`
	Rationale string `json:"rationale"`
}

type searchQueryList struct {
	Queries []searchQuery `json:"queries"`
}

// generateQuery turns the conversation into the initial batch of search
// queries. It never fails the run: when the model call breaks, the research
// topic itself becomes the single query.
func (a *Agent) generateQuery(ctx context.Context, s graph.State) (graph.Delta, error) {
	topic := researchTopic(s.Messages)
	prompt := fmt.Sprintf(queryWriterInstructions, s.InitialSearchQueryCount, currentDate(), topic)

	queries, err := a.callQueryWriter(ctx, s, prompt)
	if err != nil {
		a.logger.Printf("query generation failed, degrading to topic search: %v", err)
		fallback := topic
		if fallback == "" {
			fallback = "general search"
		}
		return graph.Delta{SearchQueries: []string{fallback}}, nil
	}
	return graph.Delta{SearchQueries: queries}, nil
}

func (a *Agent) callQueryWriter(ctx context.Context, s graph.State, prompt string) ([]string, error) {
	prov, err := a.providerFor(s.LLMProvider)
	if err != nil {
		return nil, err
	}

	var out searchQueryList
	resp, err := prov.GenerateStructured(ctx, provider.Request{
		Prompt:      prompt,
		Model:       modelFor(s, a.cfg.LLM.Routing.QueryGenerator),
		Temperature: a.cfg.Research.QueryTemperature,
		MaxTokens:   a.cfg.Research.QueryMaxTokens,
	}, &out)
	if err != nil {
		return nil, err
	}
	a.recordUsage(prov.Name(), "query_generation", resp)

	queries := make([]string, 0, len(out.Queries))
	for _, q := range out.Queries {
		if strings.TrimSpace(q.Query) != "" {
			queries = append(queries, q.Query)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("model returned no usable queries")
	}
	return queries, nil
}
