package voicesearch

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	"github.com/mohammad-safakhou/voicesearch/config"
	"github.com/mohammad-safakhou/voicesearch/internal/helpers"
	"github.com/mohammad-safakhou/voicesearch/internal/runtime"
	"github.com/mohammad-safakhou/voicesearch/internal/store"
	"github.com/mohammad-safakhou/voicesearch/tools/tts"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch/models"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search/templates"
)

// HistoryStore is the durable append-only record of searches.
type HistoryStore interface {
	InsertSearch(ctx context.Context, rec store.SearchRecord) (store.SearchRecord, error)
	RecentSearches(ctx context.Context, limit int) ([]store.SearchRecord, error)
}

// Options are the fixed parameters of the orchestrator.
type Options struct {
	ModelID          string
	OutputFormat     string
	DefaultVoiceID   string
	VoiceSearchLimit int
	HistoryLimit     int
	CrawlPolicy      config.CrawlPolicyConfig
}

// Deps are the collaborators, created once at startup. Scraper, Synthesizer
// and History may be nil when their initialization failed; the operations
// that need them then fail individually.
type Deps struct {
	Searcher    web_search.WebSearcher
	Scraper     web_fetch.WebFetcher
	Synthesizer tts.Synthesizer
	History     HistoryStore
	Metrics     *runtime.Metrics
	Logger      *log.Logger
}

type Service struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Searcher == nil {
		deps.Searcher = templates.Search{Templates: templates.Default}
	}
	if opts.ModelID == "" {
		opts.ModelID = DefaultModelID
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = DefaultFormat
	}
	if opts.DefaultVoiceID == "" {
		opts.DefaultVoiceID = DefaultVoiceID
	}
	if opts.VoiceSearchLimit <= 0 {
		opts.VoiceSearchLimit = 3
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = store.DefaultHistoryLimit
	}
	return &Service{deps: deps, opts: opts, now: time.Now}
}

// DefaultVoiceID is the voice used when a request names none.
func (s *Service) DefaultVoiceID() string { return s.opts.DefaultVoiceID }

// Search retrieves up to maxResults pages for query. Candidates are scraped
// one after another; a failing candidate is logged and skipped.
func (s *Service) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	started := time.Now()
	results, err := s.search(ctx, query, maxResults)
	s.deps.Metrics.ObserveStage(runtime.StageRetrieval, time.Since(started), err)
	return results, stepErr(StepSearch, err)
}

func (s *Service) search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if s.deps.Scraper == nil {
		return nil, ErrScraperUnavailable
	}
	results := []SearchResult{}
	if maxResults <= 0 {
		return results, nil
	}
	candidates, err := s.deps.Searcher.Discover(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("discover candidates: %w", err)
	}

	for _, c := range candidates {
		if len(results) >= maxResults {
			break
		}
		if !s.opts.CrawlPolicy.Permits(c.URL) {
			s.deps.Logger.Printf("skip %s: blocked by crawl policy", c.URL)
			continue
		}
		doc, err := s.deps.Scraper.Scrape(ctx, c.URL, web_fetch.DefaultFormats)
		if err != nil {
			s.deps.Metrics.ScrapeFailed()
			s.deps.Logger.Printf("warning: failed to scrape %s: %v", c.URL, err)
			continue
		}
		if r, ok := toResult(c.URL, doc); ok {
			results = append(results, r)
		}
	}
	return results, nil
}

func toResult(url string, doc models.Document) (SearchResult, bool) {
	if !doc.HasText() {
		return SearchResult{}, false
	}
	title := helpers.PlainText(doc.Title)
	if title == "" {
		title = FallbackTitle
	}
	return SearchResult{
		Title:   title,
		URL:     url,
		Content: doc.Markdown,
		Summary: helpers.Summarize(doc.Markdown, SummaryLength),
	}, true
}

// Synthesize turns text into a data URI carrying MP3 audio. language is
// accepted but not passed to the provider.
func (s *Service) Synthesize(ctx context.Context, text, language, voiceID string) (string, error) {
	started := time.Now()
	uri, err := s.synthesize(ctx, text, language, voiceID)
	s.deps.Metrics.ObserveStage(runtime.StageSynthesis, time.Since(started), err)
	return uri, stepErr(StepSpeech, err)
}

func (s *Service) synthesize(ctx context.Context, text, language, voiceID string) (string, error) {
	if s.deps.Synthesizer == nil {
		return "", ErrSynthesizerUnavailable
	}
	if voiceID == "" {
		voiceID = s.opts.DefaultVoiceID
	}
	if language != "" && language != DefaultLanguage {
		s.deps.Logger.Printf("language %q requested; synthesis uses model %s without a language hint", language, s.opts.ModelID)
	}
	stream, err := s.deps.Synthesizer.Convert(ctx, tts.ConvertRequest{
		Text:         text,
		VoiceID:      voiceID,
		ModelID:      s.opts.ModelID,
		OutputFormat: s.opts.OutputFormat,
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var audio bytes.Buffer
	if _, err := io.Copy(&audio, stream); err != nil {
		return "", fmt.Errorf("read audio stream: %w", err)
	}
	return AudioDataURIPrefix + base64.StdEncoding.EncodeToString(audio.Bytes()), nil
}

// VoiceSearch runs the full pipeline and records the search once audio exists.
func (s *Service) VoiceSearch(ctx context.Context, req VoiceSearchRequest) (VoiceSearchResponse, error) {
	started := s.now()
	if req.Language == "" {
		req.Language = DefaultLanguage
	}

	results, err := s.Search(ctx, req.Query, s.opts.VoiceSearchLimit)
	if err != nil {
		return VoiceSearchResponse{}, err
	}
	audio, err := s.Synthesize(ctx, ComposeResponse(req.Query, results), req.Language, req.VoiceID)
	if err != nil {
		return VoiceSearchResponse{}, err
	}
	finished := s.now()
	processing := finished.Sub(started).Seconds()

	if err := s.persist(ctx, store.SearchRecord{
		Query:          req.Query,
		ResultsCount:   len(results),
		ProcessingTime: processing,
		Timestamp:      finished.UTC(),
		Language:       req.Language,
	}); err != nil {
		return VoiceSearchResponse{}, err
	}

	return VoiceSearchResponse{
		Query:          req.Query,
		Results:        results,
		AudioResponse:  audio,
		ProcessingTime: processing,
		Timestamp:      finished.UTC(),
	}, nil
}

func (s *Service) persist(ctx context.Context, rec store.SearchRecord) error {
	if s.deps.History == nil {
		return stepErr(StepPersist, ErrHistoryUnavailable)
	}
	started := time.Now()
	_, err := s.deps.History.InsertSearch(ctx, rec)
	s.deps.Metrics.ObserveStage(runtime.StagePersist, time.Since(started), err)
	return stepErr(StepPersist, err)
}

// History returns the most recent searches, newest first.
func (s *Service) History(ctx context.Context) ([]store.SearchRecord, error) {
	if s.deps.History == nil {
		return nil, stepErr(StepHistory, ErrHistoryUnavailable)
	}
	recs, err := s.deps.History.RecentSearches(ctx, s.opts.HistoryLimit)
	if err != nil {
		return nil, stepErr(StepHistory, err)
	}
	slices.SortStableFunc(recs, func(a, b store.SearchRecord) int { return b.Timestamp.Compare(a.Timestamp) })
	if len(recs) > s.opts.HistoryLimit {
		recs = recs[:s.opts.HistoryLimit]
	}
	return recs, nil
}

// Voices lists provider voices. It never fails: any provider error yields
// the single fallback voice and ok=false.
func (s *Service) Voices(ctx context.Context) (voices []Voice, ok bool) {
	started := time.Now()
	var err error
	defer func() { s.deps.Metrics.ObserveStage(runtime.StageVoices, time.Since(started), err) }()

	if s.deps.Synthesizer == nil {
		err = ErrSynthesizerUnavailable
	} else {
		voices, err = s.deps.Synthesizer.ListVoices(ctx)
	}
	if err != nil {
		s.deps.Logger.Printf("failed to get voices: %v", err)
		return []Voice{FallbackVoice}, false
	}
	if voices == nil {
		voices = []Voice{}
	}
	return voices, true
}
