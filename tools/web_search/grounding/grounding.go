// Package grounding implements web search through Gemini's google_search
// tool. It is both the "google" search backend and the hard-wired fallback the
// web research node uses when a configured provider fails: the model answers
// from live search and the grounding metadata carries the real source links.
package grounding

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mohammad-safakhou/prosearch/tools/web_search/models"
)

const searchInstructions = `Conduct targeted web searches to gather the most recent, credible information on "%s" and synthesize it into a verifiable text artifact.

Instructions:
- The current date is %s.
- Conduct multiple, diverse searches to gather comprehensive information.
- Consolidate key findings while meticulously tracking the source(s) for each specific piece of information.
- The output should be a well-written summary or report based on your search findings.
- Only include the information found in the search results, don't make up any information.`

type Search struct {
	client *genai.Client
	model  string
}

func New(apiKey, model string) (*Search, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("grounding: GEMINI_API_KEY not configured")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("grounding: %w", err)
	}
	return &Search{client: client, model: model}, nil
}

func (s *Search) Search(ctx context.Context, q string, k int, lang string) (models.Result, error) {
	prompt := fmt.Sprintf(searchInstructions, q, time.Now().Format("January 2, 2006"))

	cfg := &genai.GenerateContentConfig{
		Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		Temperature: genai.Ptr(float32(0)),
	}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), cfg)
	if err != nil {
		return models.Result{}, fmt.Errorf("grounding search: %w", err)
	}

	var sources []models.Source
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for i, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			title := chunk.Web.Title
			if title == "" {
				title = fmt.Sprintf("Search result %d", i+1)
			}
			sources = append(sources, models.Source{URL: chunk.Web.URI, Title: title})
			if k > 0 && len(sources) >= k {
				break
			}
		}
	}

	return models.Result{Content: scrubRedirectLinks(resp.Text()), Sources: sources}, nil
}

var (
	// Gemini embeds its own redirect links into the generated prose. They
	// point at an internal domain and are useless to readers, so the bracketed
	// form collapses to its label and bare instances are removed outright.
	redirectMarkdownRe = regexp.MustCompile(`\[([^\]]+)\]\(https://vertexaisearch\.cloud\.google\.com/[^)]+\)`)
	redirectBareRe     = regexp.MustCompile(`https://vertexaisearch\.cloud\.google\.com/[^\s\])]+`)
)

func scrubRedirectLinks(text string) string {
	text = redirectMarkdownRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(redirectBareRe.ReplaceAllString(text, ""))
}
