package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch/models"
	"github.com/redis/go-redis/v9"
)

// Fetcher is the subset of web_fetch.WebFetcher the cache wraps.
type Fetcher interface {
	Scrape(ctx context.Context, url string, formats []models.Format) (models.Document, error)
}

// Scraper serves repeat scrapes of the same URL from Redis. Only documents
// with text are stored; errors are never cached. A failing Redis degrades to
// calling the wrapped fetcher directly.
type Scraper struct {
	next   Fetcher
	client redis.Cmdable
	ttl    time.Duration
	logger *log.Logger
}

func New(next Fetcher, client redis.Cmdable, ttl time.Duration, logger *log.Logger) *Scraper {
	if logger == nil {
		logger = log.Default()
	}
	return &Scraper{next: next, client: client, ttl: ttl, logger: logger}
}

// Key derives the cache key from the URL and the requested formats.
func Key(url string, formats []models.Format) string {
	parts := make([]string, 0, len(formats)+1)
	parts = append(parts, strings.TrimSpace(url))
	for _, f := range formats {
		parts = append(parts, string(f))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "voicesearch:scrape:" + hex.EncodeToString(sum[:])
}

func (s *Scraper) Scrape(ctx context.Context, url string, formats []models.Format) (models.Document, error) {
	key := Key(url, formats)
	raw, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var doc models.Document
		if jerr := json.Unmarshal(raw, &doc); jerr == nil {
			return doc, nil
		}
		s.logger.Printf("scrape cache: dropping undecodable entry for %s", url)
	case !errors.Is(err, redis.Nil):
		s.logger.Printf("scrape cache: get %s: %v", url, err)
	}

	doc, err := s.next.Scrape(ctx, url, formats)
	if err != nil {
		return doc, err
	}
	if !doc.HasText() {
		return doc, nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return doc, nil
	}
	if err := s.client.Set(ctx, key, b, s.ttl).Err(); err != nil {
		s.logger.Printf("scrape cache: set %s: %v", url, err)
	}
	return doc, nil
}
