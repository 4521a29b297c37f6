package voicesearch

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/voicesearch/internal/helpers"
)

// ComposeResponse renders the sentence read back to the user. It depends only
// on its arguments and always speaks the service's default language.
func ComposeResponse(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("I couldn't find any results for '%s'. Please try a different search term.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d results for '%s'. ", len(results), query)
	for i, r := range results {
		spoken, _ := helpers.Truncate(r.Summary, SpokenSummaryLength)
		fmt.Fprintf(&b, "Result %d: %s. %s%s ", i+1, r.Title, spoken, helpers.Ellipsis)
	}
	return b.String()
}
