package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/queryagent/tools/web_search/models"
	"github.com/mohammad-safakhou/queryagent/utils"
)

// Search queries the DuckDuckGo instant-answer API. No credentials
// required; coverage is thinner than the paid SERP backends, so it
// sits last in the chain.
type Search struct{}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://duckduckgo.com/api
	url := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1&skip_disambig=1", utils.UrlQuery(q))
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw struct {
		Heading       string `json:"Heading"`
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	now := time.Now()
	var out []models.Result
	if raw.AbstractText != "" {
		out = append(out, models.Result{
			Rank: 1, Source: "duckduckgo", Timestamp: now,
			Title: raw.Heading, URL: raw.AbstractURL, Snippet: raw.AbstractText,
		})
	}
	for _, rt := range raw.RelatedTopics {
		if len(out) >= k {
			break
		}
		if rt.Text == "" {
			continue
		}
		out = append(out, models.Result{
			Rank: len(out) + 1, Source: "duckduckgo", Timestamp: now,
			Title: rt.Text, URL: rt.FirstURL, Snippet: rt.Text,
		})
	}
	return out, nil
}
