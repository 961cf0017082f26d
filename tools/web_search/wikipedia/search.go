package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mohammad-safakhou/queryagent/tools/web_search/models"
	"github.com/mohammad-safakhou/queryagent/utils"
)

// Search queries the MediaWiki search API. No credentials required.
type Search struct{}

var tagRE = regexp.MustCompile(`<[^>]+>`)

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://www.mediawiki.org/wiki/API:Search
	url := fmt.Sprintf(
		"https://en.wikipedia.org/w/api.php?action=query&list=search&srsearch=%s&srlimit=%d&format=json",
		utils.UrlQuery(q), k)
	req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var raw struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	now := time.Now()
	var out []models.Result
	for i, r := range raw.Query.Search {
		if i >= k {
			break
		}
		out = append(out, models.Result{
			Rank: i + 1, Source: "wikipedia", Timestamp: now,
			Title:   r.Title,
			URL:     "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(r.Title, " ", "_"),
			Snippet: tagRE.ReplaceAllString(r.Snippet, ""),
		})
	}
	return out, nil
}
