package brave

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mohammad-safakhou/voicesearch/internal/httpclient"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search/models"
)

const endpoint = "https://api.search.brave.com/res/v1/web/search"

type Search struct {
	ApiKey  string
	HTTP    *httpclient.Client
	BaseURL string // overrides endpoint in tests
}

func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	// https://api.search.brave.com/app/documentation/web-search
	base := endpoint
	if s.BaseURL != "" {
		base = s.BaseURL
	}
	u := fmt.Sprintf("%s?q=%s&count=%d", base, url.QueryEscape(q), k)
	headers := map[string]string{"Accept": "application/json", "X-Subscription-Token": s.ApiKey}
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := s.HTTP.DoJSON(ctx, http.MethodGet, u, headers, nil, &raw); err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	var out []models.Result
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
