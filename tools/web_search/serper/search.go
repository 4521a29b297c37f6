package serper

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/voicesearch/internal/httpclient"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search/models"
)

const endpoint = "https://google.serper.dev/search"

type Search struct {
	ApiKey  string
	HTTP    *httpclient.Client
	BaseURL string // overrides endpoint in tests
}

func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	// https://serper.dev/ docs
	u := endpoint
	if s.BaseURL != "" {
		u = s.BaseURL
	}
	payload := map[string]any{"q": q, "num": k}
	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := s.HTTP.DoJSON(ctx, http.MethodPost, u, map[string]string{"X-API-KEY": s.ApiKey}, payload, &raw); err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	var out []models.Result
	for i, it := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, models.Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return out, nil
}
