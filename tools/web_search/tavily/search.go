package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/prosearch/tools/web_search/models"
)

type Search struct {
	APIKey  string
	Timeout time.Duration
}

func (s Search) Search(ctx context.Context, q string, k int, lang string) (models.Result, error) {
	// https://docs.tavily.com/ search API
	payload := map[string]any{
		"query":          q,
		"max_results":    k,
		"include_answer": true,
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.tavily.com/search", bytes.NewReader(body))
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := &http.Client{Timeout: s.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return models.Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Result{}, fmt.Errorf("tavily status %d", resp.StatusCode)
	}

	var raw struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Result{}, err
	}

	var out models.Result
	var blocks []string
	if raw.Answer != "" {
		blocks = append(blocks, raw.Answer)
	}
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out.Sources = append(out.Sources, models.Source{URL: r.URL, Title: r.Title})
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s", i+1, r.Title, r.Content))
	}
	out.Content = strings.Join(blocks, "\n\n")
	return out, nil
}
