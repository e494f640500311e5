package web_search

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/prosearch/config"
	"github.com/mohammad-safakhou/prosearch/tools/web_search/brave"
	"github.com/mohammad-safakhou/prosearch/tools/web_search/grounding"
	"github.com/mohammad-safakhou/prosearch/tools/web_search/models"
	"github.com/mohammad-safakhou/prosearch/tools/web_search/serper"
	"github.com/mohammad-safakhou/prosearch/tools/web_search/tavily"
)

// WebSearcher is the search capability consumed by the web research node.
type WebSearcher interface {
	Search(ctx context.Context, q string, k int, lang string) (models.Result, error)
}

type Provider string

const (
	GoogleProvider Provider = "google"
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
	TavilyProvider Provider = "tavily"
)

// NewWebSearcher builds the backend for a provider name. "google" routes to
// the Gemini grounding searcher, the same backend the research node uses as a
// fallback when a configured provider fails mid-run.
func NewWebSearcher(provider Provider, cfg config.SearchConfig) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		if cfg.SerperAPIKey == "" {
			return nil, &Error{Provider: provider, Config: true, Message: "serper API key not configured"}
		}
		return serper.Search{APIKey: cfg.SerperAPIKey, Timeout: cfg.Timeout}, nil
	case BraveProvider:
		if cfg.BraveAPIKey == "" {
			return nil, &Error{Provider: provider, Config: true, Message: "brave API key not configured"}
		}
		return brave.Search{APIKey: cfg.BraveAPIKey, Timeout: cfg.Timeout}, nil
	case TavilyProvider:
		if cfg.TavilyAPIKey == "" {
			return nil, &Error{Provider: provider, Config: true, Message: "tavily API key not configured"}
		}
		return tavily.Search{APIKey: cfg.TavilyAPIKey, Timeout: cfg.Timeout}, nil
	case GoogleProvider:
		return grounding.New(cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, &Error{Provider: provider, Config: true, Message: "unsupported provider"}
	}
}

// Error is the typed search-capability failure.
type Error struct {
	Provider Provider
	Config   bool // configuration error, fatal at startup
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("web_search %s: %s", e.Provider, e.Message)
}
