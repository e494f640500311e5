package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/prosearch/internal/graph"
	"github.com/mohammad-safakhou/prosearch/models"
	"github.com/mohammad-safakhou/prosearch/provider"
)

// How many accumulated sources get attached to each research result block in
// the answer prompt.
const sourcesPerSummary = 5

// finalizeAnswer synthesizes the final answer from everything gathered and
// resolves citation markers into real links. It always emits a terminal
// assistant message: generation failure produces an error message with no
// sources rather than aborting the run.
func (a *Agent) finalizeAnswer(ctx context.Context, s graph.State) (graph.Delta, error) {
	content, err := a.generateAnswer(ctx, s)
	if err != nil {
		a.logger.Printf("answer generation failed: %v", err)
		return terminalDelta(
			fmt.Sprintf("Sorry, an error occurred while generating the final answer: %v", err),
			[]models.Source{})
	}

	resolved, used := resolveCitations(content, s.SourcesGathered, a.logger)
	if resolved == "" {
		resolved = "Sorry, I was unable to generate a response."
	}
	return terminalDelta(resolved, used)
}

func terminalDelta(content string, sources []models.Source) (graph.Delta, error) {
	msg := models.Message{
		ID:      "ai-" + uuid.NewString(),
		Role:    models.RoleAssistant,
		Content: content,
	}
	return graph.Delta{
		Messages:       []models.Message{msg},
		Sources:        sources,
		ReplaceSources: true,
	}, nil
}

func (a *Agent) generateAnswer(ctx context.Context, s graph.State) (string, error) {
	prov, err := a.providerFor(s.LLMProvider)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(answerInstructions,
		currentDate(),
		researchTopic(s.Messages),
		enhancedSummaries(s.WebResearchResults, s.SourcesGathered))

	resp, err := prov.Generate(ctx, provider.Request{
		Prompt:      prompt,
		Model:       modelFor(s, a.cfg.LLM.Routing.Answer),
		Temperature: a.cfg.Research.AnswerTemperature,
		MaxTokens:   a.cfg.Research.AnswerMaxTokens,
	})
	if err != nil {
		return "", err
	}
	a.recordUsage(prov.Name(), "answer_generation", resp)
	return resp.Content, nil
}

// enhancedSummaries interleaves each research result with the window of
// sources positionally associated with it, so the answer prompt carries the
// numbering the citation markers will refer to.
func enhancedSummaries(results []string, sources []models.Source) string {
	var blocks []string
	for i, result := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "## Research Result %d\n\n%s", i+1, result)

		start := i * sourcesPerSummary
		end := min(start+sourcesPerSummary, len(sources))
		if start < end {
			b.WriteString("\n\n**Available sources for this section:**\n")
			lines := make([]string, 0, end-start)
			for j := start; j < end; j++ {
				lines = append(lines, fmt.Sprintf("[%d] %s - %s", j+1, sources[j].Title, sources[j].URL))
			}
			b.WriteString(strings.Join(lines, "\n"))
		}
		blocks = append(blocks, b.String())
	}

	if len(blocks) == 0 && len(sources) > 0 {
		var b strings.Builder
		b.WriteString("## Available Research Sources\n\n")
		for i, src := range sources {
			fmt.Fprintf(&b, "[%d] %s - %s\n", i+1, src.Title, src.URL)
		}
		blocks = append(blocks, b.String())
	}
	if len(blocks) == 0 {
		return "No research results available."
	}
	return strings.Join(blocks, "\n---\n\n")
}
