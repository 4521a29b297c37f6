package web_fetch

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/voicesearch/internal/httpclient"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch/firecrawl"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

// DefaultFormats is what retrieval asks every backend for.
var DefaultFormats = []models.Format{models.FormatMarkdown, models.FormatHTML}

type WebFetcher interface {
	Scrape(ctx context.Context, url string, formats []models.Format) (models.Document, error)
}

type FetcherType string

const (
	FirecrawlFetcherType FetcherType = "firecrawl"
	ChromedpFetcherType  FetcherType = "chromedp"
)

// Options carries the settings of every backend; each one reads its own.
type Options struct {
	APIKey   string
	APIURL   string
	Timeout  time.Duration
	Retries  int
	MaxChars int
}

type Error struct{ msg string }

func (e *Error) Error() string { return "web_fetch: " + e.msg }

var ErrUnsupportedFetcher = &Error{"unsupported fetcher type"}

func NewWebFetcher(fetcherType FetcherType, opts Options) (WebFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = MaxCharsDefault
	}

	switch fetcherType {
	case FirecrawlFetcherType:
		if opts.APIKey == "" {
			return nil, &Error{"firecrawl api key is required"}
		}
		return firecrawl.New(opts.APIURL, opts.APIKey, httpclient.New(opts.Timeout, opts.Retries, 0)), nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: opts.Timeout, MaxChars: opts.MaxChars}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}
