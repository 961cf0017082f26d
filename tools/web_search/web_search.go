package web_search

import (
	"context"

	"github.com/mohammad-safakhou/queryagent/tools/web_search/brave"
	"github.com/mohammad-safakhou/queryagent/tools/web_search/duckduckgo"
	"github.com/mohammad-safakhou/queryagent/tools/web_search/models"
	"github.com/mohammad-safakhou/queryagent/tools/web_search/serper"
	"github.com/mohammad-safakhou/queryagent/tools/web_search/wikipedia"
)

type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider     Provider = "serper"
	BraveProvider      Provider = "brave"
	WikipediaProvider  Provider = "wikipedia"
	DuckDuckGoProvider Provider = "duckduckgo"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

// NeedsKey reports whether a provider is unusable without credentials.
func (p Provider) NeedsKey() bool {
	return p == SerperProvider || p == BraveProvider
}

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	case WikipediaProvider:
		return wikipedia.Search{}, nil
	case DuckDuckGoProvider:
		return duckduckgo.Search{}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
