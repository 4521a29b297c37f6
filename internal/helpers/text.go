package helpers

import (
	"html"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Ellipsis marks text that was cut short.
const Ellipsis = "..."

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// StrictHTMLPolicy returns a singleton bluemonday policy that strips every HTML
// element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// PlainText removes every HTML tag from s and trims surrounding whitespace.
// Provider metadata such as page titles occasionally carries markup. The
// result is plain text: entities escaped by the sanitizer are decoded again.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(StrictHTMLPolicy().Sanitize(s)))
}

// Truncate returns the first n runes of s and whether anything was dropped.
func Truncate(s string, n int) (string, bool) {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

// Summarize cuts s to n runes and appends Ellipsis only when it was cut.
func Summarize(s string, n int) string {
	out, cut := Truncate(s, n)
	if cut {
		return out + Ellipsis
	}
	return out
}

// PathSlug turns free text into a single path segment the way wiki URLs
// expect: spaces become underscores, nothing else is touched.
func PathSlug(q string) string {
	return strings.ReplaceAll(q, " ", "_")
}
