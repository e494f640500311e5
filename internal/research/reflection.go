package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/prosearch/internal/graph"
	"github.com/mohammad-safakhou/prosearch/provider"
)

type reflection struct {
	IsSufficient    bool     `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

// reflect analyzes the gathered summaries for knowledge gaps. The loop count
// increments unconditionally on entry, before the model is consulted, so even
// a failing call moves the run toward its loop bound. Failure reports the
// research as sufficient with no follow-ups, which forces termination.
func (a *Agent) reflect(ctx context.Context, s graph.State) (graph.Delta, error) {
	loopCount := s.ResearchLoopCount + 1
	ranQueries := len(s.SearchQueries)

	out, err := a.callReflection(ctx, s)
	if err != nil {
		a.logger.Printf("reflection failed, forcing termination: %v", err)
		return graph.Delta{
			IsSufficient:       graph.Ptr(true),
			KnowledgeGap:       graph.Ptr(""),
			FollowUpQueries:    []string{},
			SetFollowUps:       true,
			ResearchLoopCount:  graph.Ptr(loopCount),
			NumberOfRanQueries: graph.Ptr(ranQueries),
		}, nil
	}

	return graph.Delta{
		IsSufficient:       graph.Ptr(out.IsSufficient),
		KnowledgeGap:       graph.Ptr(out.KnowledgeGap),
		FollowUpQueries:    out.FollowUpQueries,
		SetFollowUps:       true,
		ResearchLoopCount:  graph.Ptr(loopCount),
		NumberOfRanQueries: graph.Ptr(ranQueries),
	}, nil
}

func (a *Agent) callReflection(ctx context.Context, s graph.State) (reflection, error) {
	prov, err := a.providerFor(s.LLMProvider)
	if err != nil {
		return reflection{}, err
	}

	prompt := fmt.Sprintf(reflectionInstructions,
		researchTopic(s.Messages),
		currentDate(),
		strings.Join(s.WebResearchResults, "\n\n---\n\n"))

	var out reflection
	resp, err := prov.GenerateStructured(ctx, provider.Request{
		Prompt:      prompt,
		Model:       modelFor(s, a.cfg.LLM.Routing.Reflection),
		Temperature: a.cfg.Research.ReflectionTemperature,
		MaxTokens:   a.cfg.Research.ReflectionMaxTokens,
	}, &out)
	if err != nil {
		return reflection{}, err
	}
	a.recordUsage(prov.Name(), "reflection", resp)
	return out, nil
}
