package serper

import (
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
	// https://serper.dev/ docs
	payload := map[string]any{"q": q, "num": k}
	if lang != "" {
		payload["hl"] = strings.SplitN(lang, "-", 2)[0]
	}
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", "https://google.serper.dev/search", strings.NewReader(string(body)))
	if err != nil {
		return models.Result{}, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: s.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return models.Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Result{}, fmt.Errorf("serper status %d", resp.StatusCode)
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.Result{}, err
	}

	var out models.Result
	var blocks []string
	for i, r := range raw.Organic {
		if i >= k {
			break
		}
		out.Sources = append(out.Sources, models.Source{URL: r.Link, Title: r.Title})
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s", i+1, r.Title, r.Snippet))
	}
	out.Content = strings.Join(blocks, "\n\n")
	return out, nil
}
