package research

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/prosearch/internal/graph"
	"github.com/mohammad-safakhou/prosearch/models"
	"github.com/mohammad-safakhou/prosearch/tools/web_search"
	searchmodels "github.com/mohammad-safakhou/prosearch/tools/web_search/models"
)

// webResearch executes one scattered branch: search the query, normalize the
// hits into labeled sources. On any failure the branch retries through the
// grounding backend, unless grounding was the primary already, and if that
// fails too it still emits a degraded delta so the gather barrier sees one
// result per dispatched query.
func (a *Agent) webResearch(ctx context.Context, item graph.WorkItem) (graph.Delta, error) {
	primary := web_search.Provider(item.SearchProvider)
	result, err := a.searchOnce(ctx, primary, item.Query)
	if err != nil && primary != web_search.GoogleProvider {
		a.logger.Printf("branch %d: %s search failed, falling back to grounding: %v", item.ID, item.SearchProvider, err)
		a.telemetry.RecordSearchFallback(item.SearchProvider)
		result, err = a.searchOnce(ctx, web_search.GoogleProvider, item.Query)
	}
	if err != nil {
		a.logger.Printf("branch %d: grounding search failed: %v", item.ID, err)
		return graph.Delta{
			SearchQueries:      []string{item.Query},
			WebResearchResults: []string{fmt.Sprintf("Web research for %q failed: %v", item.Query, err)},
			Sources:            []models.Source{},
		}, nil
	}

	return graph.Delta{
		SearchQueries:      []string{item.Query},
		WebResearchResults: []string{result.Content},
		Sources:            labelSources(result.Sources),
	}, nil
}

func (a *Agent) searchOnce(ctx context.Context, p web_search.Provider, query string) (searchmodels.Result, error) {
	searcher, err := a.newSearcher(p, a.cfg.Search)
	if err != nil {
		return searchmodels.Result{}, err
	}
	return searcher.Search(ctx, query, a.cfg.Search.ResultsLimit, a.cfg.Search.Language)
}

// labelSources assigns branch-local 1-based citation labels. Global
// renumbering never happens: finalization resolves markers by position in the
// accumulated sequence.
func labelSources(raw []searchmodels.Source) []models.Source {
	sources := make([]models.Source, 0, len(raw))
	for i, src := range raw {
		label := fmt.Sprintf("[%d]", i+1)
		sources = append(sources, models.Source{
			Label:    label,
			ShortURL: label,
			URL:      src.URL,
			Title:    src.Title,
		})
	}
	return sources
}
