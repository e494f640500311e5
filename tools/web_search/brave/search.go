package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mohammad-safakhou/prosearch/tools/web_search/models"
)

type Search struct {
	APIKey  string
	Timeout time.Duration
}

func (s Search) Search(ctx context.Context, q string, k int, lang string) (models.Result, error) {
	// https://api.search.brave.com/app/documentation/web-search
	endpoint := fmt.Sprintf("https://api.search.brave.com/res/v1/web/search?q=%s&count=%d", url.QueryEscape(q), k)
	if lang != "" {
		endpoint += "&search_lang=" + strings.SplitN(lang, "-", 2)[0]
	}
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.APIKey)

	client := &http.Client{Timeout: s.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return models.Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Result{}, fmt.Errorf("brave status %d", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Result{}, err
	}

	var out models.Result
	var blocks []string
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out.Sources = append(out.Sources, models.Source{URL: r.URL, Title: r.Title})
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s", i+1, r.Title, r.Description))
	}
	out.Content = strings.Join(blocks, "\n\n")
	return out, nil
}
