package web_search

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/voicesearch/internal/httpclient"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search/brave"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search/models"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search/serper"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search/templates"
)

// WebSearcher turns a query into at most k candidate pages.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	TemplatesProvider Provider = "templates"
	SerperProvider    Provider = "serper"
	BraveProvider     Provider = "brave"
)

type Error struct{ msg string }

func (e *Error) Error() string { return "web_search: " + e.msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

// Options configures the selected provider.
type Options struct {
	APIKey    string
	Templates []string
	Timeout   time.Duration
}

func NewWebSearcher(provider Provider, opts Options) (WebSearcher, error) {
	switch provider {
	case TemplatesProvider, "":
		if len(opts.Templates) == 0 {
			return templates.Search{Templates: templates.Default}, nil
		}
		return templates.Search{Templates: opts.Templates}, nil
	case SerperProvider:
		if opts.APIKey == "" {
			return nil, &Error{"serper api key is required"}
		}
		return serper.Search{ApiKey: opts.APIKey, HTTP: httpclient.New(opts.Timeout, 1, 0)}, nil
	case BraveProvider:
		if opts.APIKey == "" {
			return nil, &Error{"brave api key is required"}
		}
		return brave.Search{ApiKey: opts.APIKey, HTTP: httpclient.New(opts.Timeout, 1, 0)}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
