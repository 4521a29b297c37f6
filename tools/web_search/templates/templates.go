package templates

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/voicesearch/internal/helpers"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search/models"
)

// Default reference-site templates. Each holds one %s for the query slug.
var Default = []string{
	"https://www.wikipedia.org/wiki/%s",
	"https://en.wikipedia.org/wiki/%s",
}

// Search builds candidates from fixed URL templates without calling out.
// It yields min(k, len(Templates)) results in template order.
type Search struct {
	Templates []string
}

func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	slug := helpers.PathSlug(q)
	var out []models.Result
	for i, tpl := range s.Templates {
		if i >= k {
			break
		}
		out = append(out, models.Result{URL: fmt.Sprintf(tpl, slug)})
	}
	return out, nil
}
