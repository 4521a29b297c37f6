package firecrawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/voicesearch/internal/httpclient"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch/models"
)

// Scraper converts pages to readable text through the Firecrawl scrape API.
type Scraper struct {
	apiURL string
	apiKey string
	http   *httpclient.Client
}

func New(apiURL, apiKey string, client *httpclient.Client) *Scraper {
	if apiURL == "" {
		apiURL = "https://api.firecrawl.dev"
	}
	return &Scraper{apiURL: strings.TrimRight(apiURL, "/"), apiKey: apiKey, http: client}
}

type scrapeRequest struct {
	URL     string          `json:"url"`
	Formats []models.Format `json:"formats"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    *struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
		Metadata *struct {
			Title      string `json:"title"`
			SourceURL  string `json:"sourceURL"`
			StatusCode int    `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

var ErrMalformedResponse = errors.New("firecrawl: malformed response")

func (s *Scraper) Scrape(ctx context.Context, url string, formats []models.Format) (models.Document, error) {
	// https://docs.firecrawl.dev/api-reference/endpoint/scrape
	if strings.TrimSpace(url) == "" {
		return models.Document{}, errors.New("firecrawl: invalid url")
	}
	headers := map[string]string{
		"Authorization": "Bearer " + s.apiKey,
		"Accept":        "application/json",
	}
	var raw scrapeResponse
	if err := s.http.DoJSON(ctx, http.MethodPost, s.apiURL+"/v1/scrape", headers, scrapeRequest{URL: url, Formats: formats}, &raw); err != nil {
		return models.Document{}, fmt.Errorf("firecrawl scrape %s: %w", url, err)
	}
	if !raw.Success {
		if raw.Error != "" {
			return models.Document{}, fmt.Errorf("firecrawl scrape %s: %s", url, raw.Error)
		}
		return models.Document{}, fmt.Errorf("%w: success=false for %s", ErrMalformedResponse, url)
	}
	if raw.Data == nil {
		return models.Document{}, fmt.Errorf("%w: missing data for %s", ErrMalformedResponse, url)
	}

	doc := models.Document{URL: url, Markdown: raw.Data.Markdown, HTML: raw.Data.HTML, Status: http.StatusOK}
	if md := raw.Data.Metadata; md != nil {
		doc.Title = md.Title
		if md.StatusCode != 0 {
			doc.Status = md.StatusCode
		}
	}
	return doc, nil
}
