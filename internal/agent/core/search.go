package core

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/queryagent/config"
	"github.com/mohammad-safakhou/queryagent/tools/web_fetch"
	"github.com/mohammad-safakhou/queryagent/tools/web_search"
	"github.com/mohammad-safakhou/queryagent/tools/web_search/models"
)

// Backend is one search provider in the priority chain.
type Backend struct {
	Name     string
	Searcher web_search.WebSearcher
}

// SearchAgent walks the backend chain in priority order, retrying each
// backend with exponential backoff before falling through to the next.
// It never returns an error: total exhaustion yields a single
// synthetic entry flagged Error=true.
type SearchAgent struct {
	backends []Backend
	cfg      config.SearchConfig
	fetcher  *web_fetch.Fetch
	logger   *log.Logger
}

func NewSearchAgent(backends []Backend, cfg config.SearchConfig, logger *log.Logger) *SearchAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	a := &SearchAgent{backends: backends, cfg: cfg, logger: logger}
	if cfg.EnrichTopResult {
		a.fetcher = web_fetch.NewFetch(cfg.Timeout, web_fetch.MaxCharsDefault)
	}
	return a
}

// NewBackends builds the chain from configuration, in priority order:
// paid SERP APIs first, free community search last. Backends whose
// credentials are not configured are not constructed at all, so they
// consume no retry budget.
func NewBackends(cfg config.SearchConfig) []Backend {
	var out []Backend
	add := func(p web_search.Provider, key string) {
		if p.NeedsKey() && key == "" {
			return
		}
		s, err := web_search.NewWebSearcher(p, key)
		if err != nil {
			return
		}
		out = append(out, Backend{Name: string(p), Searcher: s})
	}
	add(web_search.SerperProvider, cfg.SerperAPIKey)
	add(web_search.BraveProvider, cfg.BraveAPIKey)
	add(web_search.WikipediaProvider, "")
	add(web_search.DuckDuckGoProvider, "")
	return out
}

// Search accumulates results across the chain until the configured
// maximum is met, deduplicates by URL and re-ranks the merged list.
func (a *SearchAgent) Search(ctx context.Context, query string) []models.Result {
	var all []models.Result

	for _, backend := range a.backends {
		results, ok := a.tryBackend(ctx, backend, query)
		if ok {
			all = append(all, results...)
		}
		if len(dedupeByURL(all)) >= a.cfg.MaxResults {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	all = dedupeByURL(all)
	if len(all) > a.cfg.MaxResults {
		all = all[:a.cfg.MaxResults]
	}

	if len(all) == 0 {
		return []models.Result{{
			Rank:      1,
			Title:     "Search error",
			Snippet:   fmt.Sprintf("All search backends failed for query %q", query),
			Source:    "none",
			Timestamp: time.Now(),
			Error:     true,
		}}
	}

	a.enrichTop(ctx, all)

	for i := range all {
		all[i].Rank = i + 1
	}
	return all
}

// tryBackend runs one backend with retries and exponential backoff.
// A result set whose combined snippet text is below the quality
// threshold counts as a failure.
func (a *SearchAgent) tryBackend(ctx context.Context, backend Backend, query string) ([]models.Result, bool) {
	for attempt := 0; attempt < a.cfg.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		results, err := backend.Searcher.Search(callCtx, query, a.cfg.MaxResults)
		cancel()

		switch {
		case err != nil:
			a.logger.Printf("%s attempt %d failed: %v", backend.Name, attempt+1, err)
		case contentLength(results) < a.cfg.MinContentLength:
			a.logger.Printf("%s attempt %d returned thin results (%d chars)", backend.Name, attempt+1, contentLength(results))
		default:
			return results, true
		}

		if attempt < a.cfg.MaxRetries-1 {
			if !a.backoff(ctx, attempt) {
				return nil, false
			}
		}
	}
	return nil, false
}

// backoff sleeps base*2^attempt plus jitter, honoring cancellation.
func (a *SearchAgent) backoff(ctx context.Context, attempt int) bool {
	base := a.cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	wait := base*(1<<attempt) + time.Duration(rand.Int63n(int64(base)))
	select {
	case <-time.After(wait):
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *SearchAgent) enrichTop(ctx context.Context, results []models.Result) {
	if a.fetcher == nil || len(results) == 0 || results[0].URL == "" {
		return
	}
	page, err := a.fetcher.Exec(ctx, results[0].URL)
	if err != nil || page.Text == "" {
		return
	}
	extra := page.Text
	if len(extra) > 500 {
		extra = extra[:500]
	}
	results[0].Snippet = strings.TrimSpace(results[0].Snippet + " " + extra)
}

func contentLength(results []models.Result) int {
	total := 0
	for _, r := range results {
		total += len(strings.TrimSpace(r.Snippet))
	}
	return total
}

// dedupeByURL keeps the first occurrence of each non-empty URL and
// every entry without a URL.
func dedupeByURL(results []models.Result) []models.Result {
	seen := make(map[string]bool, len(results))
	var out []models.Result
	for _, r := range results {
		if r.URL == "" {
			out = append(out, r)
			continue
		}
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}

// ExtractKeyInfo condenses the results into a summary, up to three
// keyword-ranked key facts and a source list with confidence
// min(1, sources/3).
func ExtractKeyInfo(results []models.Result, query string) ExtractedInfo {
	if len(results) == 0 {
		return ExtractedInfo{Summary: "No search results found"}
	}

	var sources []SourceRef
	var snippets []string
	for _, r := range results {
		if r.Error {
			continue
		}
		sources = append(sources, SourceRef{Title: r.Title, URL: r.URL, Rank: r.Rank})
		snippets = append(snippets, r.Snippet)
	}

	queryWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(query)) {
		queryWords[w] = struct{}{}
	}

	type scored struct {
		snippet string
		score   float64
	}
	var relevant []scored
	for _, snippet := range snippets {
		lower := strings.ToLower(snippet)
		matches := 0
		for w := range queryWords {
			if strings.Contains(lower, w) {
				matches++
			}
		}
		if matches > 0 && len(queryWords) > 0 {
			relevant = append(relevant, scored{snippet: snippet, score: float64(matches) / float64(len(queryWords))})
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool { return relevant[i].score > relevant[j].score })

	var keyFacts []string
	for i, s := range relevant {
		if i >= 3 {
			break
		}
		fact := s.snippet
		if len(fact) > 200 {
			fact = fact[:200] + "..."
		}
		keyFacts = append(keyFacts, fact)
	}

	confidence := 0.0
	if len(sources) > 0 {
		confidence = float64(len(sources)) / 3.0
		if confidence > 1 {
			confidence = 1
		}
	}

	return ExtractedInfo{
		Summary:      fmt.Sprintf("Found %d relevant sources for %q", len(sources), query),
		KeyFacts:     keyFacts,
		Sources:      sources,
		Confidence:   confidence,
		TotalResults: len(results),
	}
}
