package chromedp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch/models"
)

// Fetch renders pages in a local headless browser and extracts the article
// with readability. Readability text stands in for markdown.
type Fetch struct {
	Timeout  time.Duration
	MaxChars int // Maximum characters to return from the article text
}

func (f Fetch) Scrape(ctx context.Context, rawURL string, formats []models.Format) (models.Document, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Document{}, errors.New("invalid url")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return models.Document{}, fmt.Errorf("invalid url %q", rawURL)
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	t0 := time.Now()

	html, err := fetchHTML(ctx, rawURL)
	if err != nil {
		return models.Document{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	return extract(rawURL, u, html, formats, f.MaxChars, time.Since(t0))
}

func extract(rawURL string, u *url.URL, html string, formats []models.Format, maxChars int, took time.Duration) (models.Document, error) {
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return models.Document{}, fmt.Errorf("readability %s: %w", rawURL, err)
	}

	doc := models.Document{
		URL:      rawURL,
		Title:    strings.TrimSpace(article.Title),
		Status:   200,
		RenderMS: int(took / time.Millisecond),
	}
	for _, format := range formats {
		switch format {
		case models.FormatMarkdown:
			text := strings.TrimSpace(article.TextContent)
			if maxChars > 0 && len([]rune(text)) > maxChars {
				text = string([]rune(text)[:maxChars])
			}
			doc.Markdown = text
		case models.FormatHTML:
			doc.HTML = html
		}
	}
	return doc, nil
}

func fetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("VoiceSearch/1.0 (+https://github.com/mohammad-safakhou/voicesearch)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
