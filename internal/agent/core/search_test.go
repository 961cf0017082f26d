package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/queryagent/config"
	"github.com/mohammad-safakhou/queryagent/tools/web_search/models"
)

type fakeSearcher struct {
	results  []models.Result
	err      error
	failures int // fail this many calls before succeeding
	calls    int
}

func (f *fakeSearcher) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	return f.results, nil
}

func searchCfg() config.SearchConfig {
	return config.SearchConfig{
		MaxResults:       5,
		MaxRetries:       3,
		BackoffBase:      time.Millisecond,
		MinContentLength: 10,
		Timeout:          time.Second,
	}
}

func result(title, url, snippet string) models.Result {
	return models.Result{Title: title, URL: url, Snippet: snippet, Source: "fake", Timestamp: time.Now()}
}

func TestSearchFallsThroughToNextBackend(t *testing.T) {
	dead := &fakeSearcher{err: errors.New("down")}
	alive := &fakeSearcher{results: []models.Result{
		result("Paris", "https://example.com/paris", "Paris is the capital of France."),
	}}
	a := NewSearchAgent([]Backend{
		{Name: "dead", Searcher: dead},
		{Name: "alive", Searcher: alive},
	}, searchCfg(), nil)

	got := a.Search(context.Background(), "capital of France")
	if len(got) != 1 || got[0].Error {
		t.Fatalf("expected one real result, got %+v", got)
	}
	if dead.calls != 3 {
		t.Fatalf("dead backend should be retried 3 times, got %d", dead.calls)
	}
	if got[0].Rank != 1 {
		t.Fatalf("merged results must be re-ranked, got rank %d", got[0].Rank)
	}
}

func TestSearchRetriesThenSucceeds(t *testing.T) {
	flaky := &fakeSearcher{
		failures: 2,
		results:  []models.Result{result("A", "https://a.test", "a long enough snippet here")},
	}
	a := NewSearchAgent([]Backend{{Name: "flaky", Searcher: flaky}}, searchCfg(), nil)

	got := a.Search(context.Background(), "anything")
	if len(got) != 1 || got[0].Error {
		t.Fatalf("expected success on third attempt, got %+v", got)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", flaky.calls)
	}
}

func TestSearchThinResultsCountAsFailure(t *testing.T) {
	thin := &fakeSearcher{results: []models.Result{result("T", "https://t.test", "short")}}
	a := NewSearchAgent([]Backend{{Name: "thin", Searcher: thin}}, searchCfg(), nil)

	got := a.Search(context.Background(), "anything")
	if len(got) != 1 || !got[0].Error {
		t.Fatalf("thin backend should exhaust the chain, got %+v", got)
	}
	if thin.calls != 3 {
		t.Fatalf("thin results must still consume retries, got %d calls", thin.calls)
	}
}

func TestSearchExhaustionYieldsSingleErrorEntry(t *testing.T) {
	a := NewSearchAgent([]Backend{
		{Name: "d1", Searcher: &fakeSearcher{err: errors.New("down")}},
		{Name: "d2", Searcher: &fakeSearcher{err: errors.New("down")}},
	}, searchCfg(), nil)

	got := a.Search(context.Background(), "unanswerable")
	if len(got) != 1 {
		t.Fatalf("expected exactly one synthetic entry, got %d", len(got))
	}
	if !got[0].Error {
		t.Fatal("synthetic entry must be flagged Error")
	}
	if !strings.Contains(got[0].Snippet, "unanswerable") {
		t.Fatalf("synthetic entry should name the query: %q", got[0].Snippet)
	}
}

func TestSearchDedupesByURLKeepsEmptyURLs(t *testing.T) {
	dup := "https://example.com/shared"
	b1 := &fakeSearcher{results: []models.Result{
		result("First", dup, "first snippet about the topic"),
		result("NoURL", "", "an instant answer with no url attached"),
	}}
	b2 := &fakeSearcher{results: []models.Result{
		result("Second copy", dup, "duplicate snippet about the topic"),
		result("NoURL2", "", "another instant answer with no url"),
	}}
	cfg := searchCfg()
	cfg.MaxResults = 10
	a := NewSearchAgent([]Backend{
		{Name: "b1", Searcher: b1},
		{Name: "b2", Searcher: b2},
	}, cfg, nil)

	got := a.Search(context.Background(), "topic")
	urls := 0
	empty := 0
	for _, r := range got {
		if r.URL == dup {
			urls++
		}
		if r.URL == "" {
			empty++
		}
	}
	if urls != 1 {
		t.Fatalf("duplicate URL kept %d times, want 1", urls)
	}
	if empty != 2 {
		t.Fatalf("empty-URL entries must all survive, got %d", empty)
	}
	if got[0].Title != "First" {
		t.Fatalf("first occurrence must win, got %q", got[0].Title)
	}
}

func TestSearchCapsAtMaxResults(t *testing.T) {
	var many []models.Result
	for i := 0; i < 10; i++ {
		many = append(many, result("R", "https://r.test/"+string(rune('a'+i)), "a reasonably sized snippet"))
	}
	cfg := searchCfg()
	cfg.MaxResults = 3
	a := NewSearchAgent([]Backend{{Name: "many", Searcher: &fakeSearcher{results: many}}}, cfg, nil)

	got := a.Search(context.Background(), "r")
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	for i, r := range got {
		if r.Rank != i+1 {
			t.Fatalf("rank %d at position %d", r.Rank, i)
		}
	}
}

func TestNewBackendsSkipsKeylessProviders(t *testing.T) {
	got := NewBackends(config.SearchConfig{})
	if len(got) != 2 {
		t.Fatalf("without keys only the free backends should exist, got %d", len(got))
	}
	for _, b := range got {
		if b.Name == "serper" || b.Name == "brave" {
			t.Fatalf("keyless %s must not be constructed", b.Name)
		}
	}

	got = NewBackends(config.SearchConfig{SerperAPIKey: "k"})
	if len(got) != 3 || got[0].Name != "serper" {
		t.Fatalf("serper must lead the chain when configured, got %+v", got)
	}
}

func TestExtractKeyInfo(t *testing.T) {
	results := []models.Result{
		{Rank: 1, Title: "Paris", URL: "https://a.test", Snippet: "Paris is the capital of France"},
		{Rank: 2, Title: "France", URL: "https://b.test", Snippet: "France is in Europe"},
		{Rank: 3, Title: "Err", Error: true, Snippet: "backend failure"},
	}
	info := ExtractKeyInfo(results, "capital of France")

	if len(info.Sources) != 2 {
		t.Fatalf("error entries must not become sources, got %d", len(info.Sources))
	}
	want := 2.0 / 3.0
	if diff := info.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("confidence = %f, want %f", info.Confidence, want)
	}
	if len(info.KeyFacts) == 0 || !strings.Contains(info.KeyFacts[0], "capital") {
		t.Fatalf("best-matching snippet should be the first key fact: %+v", info.KeyFacts)
	}
	if info.TotalResults != 3 {
		t.Fatalf("total results = %d, want 3", info.TotalResults)
	}
}

func TestExtractKeyInfoConfidenceCapped(t *testing.T) {
	var results []models.Result
	for i := 0; i < 6; i++ {
		results = append(results, result("T", "https://t.test/"+string(rune('a'+i)), "text"))
	}
	info := ExtractKeyInfo(results, "text")
	if info.Confidence != 1 {
		t.Fatalf("confidence = %f, want capped at 1", info.Confidence)
	}
	if len(info.KeyFacts) > 3 {
		t.Fatalf("key facts capped at 3, got %d", len(info.KeyFacts))
	}
}

func TestExtractKeyInfoTruncatesLongFacts(t *testing.T) {
	long := strings.Repeat("capital ", 60)
	info := ExtractKeyInfo([]models.Result{result("L", "https://l.test", long)}, "capital")
	if len(info.KeyFacts) != 1 {
		t.Fatalf("want one fact, got %d", len(info.KeyFacts))
	}
	if len(info.KeyFacts[0]) != 203 {
		t.Fatalf("fact length = %d, want 200 plus ellipsis", len(info.KeyFacts[0]))
	}
}

func TestExtractKeyInfoEmpty(t *testing.T) {
	info := ExtractKeyInfo(nil, "anything")
	if info.Confidence != 0 || len(info.KeyFacts) != 0 {
		t.Fatalf("empty input must yield zero confidence, got %+v", info)
	}
}
