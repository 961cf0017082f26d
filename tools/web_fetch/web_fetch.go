package web_fetch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	DefaultTimeout  = 10 * time.Second
	MaxCharsDefault = 20000
)

// Result is the readable content of a fetched page.
type Result struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Status int    `json:"status"`
}

// Fetch retrieves a page over plain HTTP and extracts its readable
// text. Used to enrich thin search-result snippets; every failure is
// reported to the caller, which treats it as ignorable.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int
	client   *http.Client
}

func NewFetch(timeout time.Duration, maxChars int) *Fetch {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}
	return &Fetch{
		Timeout:  timeout,
		MaxChars: maxChars,
		client:   &http.Client{Timeout: timeout},
	}
}

func (f *Fetch) Exec(ctx context.Context, pageURL string) (Result, error) {
	if strings.TrimSpace(pageURL) == "" {
		return Result{}, errors.New("invalid url")
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", "queryagent/1.0 (+contact@example.com)")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{URL: pageURL, Status: resp.StatusCode}, errors.New(resp.Status)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return Result{URL: pageURL, Status: resp.StatusCode}, err
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	return Result{
		URL:    pageURL,
		Title:  strings.TrimSpace(article.Title),
		Text:   text,
		Status: resp.StatusCode,
	}, nil
}
