package voicesearch

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"testing/iotest"
	"time"
	"unicode/utf8"

	"github.com/mohammad-safakhou/voicesearch/config"
	"github.com/mohammad-safakhou/voicesearch/internal/runtime"
	"github.com/mohammad-safakhou/voicesearch/internal/store"
	"github.com/mohammad-safakhou/voicesearch/tools/tts"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch/models"
	wsmodels "github.com/mohammad-safakhou/voicesearch/tools/web_search/models"
)

type fakeScraper struct {
	calls []string
	docs  map[string]models.Document
	errs  map[string]error
}

func (f *fakeScraper) Scrape(ctx context.Context, url string, formats []models.Format) (models.Document, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return models.Document{}, err
	}
	if doc, ok := f.docs[url]; ok {
		return doc, nil
	}
	return models.Document{}, errors.New("not found")
}

type fakeSynth struct {
	audio    []byte
	err      error
	voices   []tts.Voice
	listErr  error
	requests []tts.ConvertRequest
}

func (f *fakeSynth) Convert(ctx context.Context, req tts.ConvertRequest) (io.ReadCloser, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	// deliver the payload one byte at a time, the way a chunked stream would
	return io.NopCloser(iotest.OneByteReader(bytes.NewReader(f.audio))), nil
}

func (f *fakeSynth) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return f.voices, f.listErr
}

type fakeHistory struct {
	inserted []store.SearchRecord
	recent   []store.SearchRecord
	err      error
}

func (f *fakeHistory) InsertSearch(ctx context.Context, rec store.SearchRecord) (store.SearchRecord, error) {
	if f.err != nil {
		return store.SearchRecord{}, f.err
	}
	f.inserted = append(f.inserted, rec)
	return rec, nil
}

func (f *fakeHistory) RecentSearches(ctx context.Context, limit int) ([]store.SearchRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.recent, nil
}

type failingSearcher struct{}

func (failingSearcher) Discover(ctx context.Context, q string, k int) ([]wsmodels.Result, error) {
	return nil, errors.New("search provider down")
}

const (
	wwwParis = "https://www.wikipedia.org/wiki/Paris"
	enParis  = "https://en.wikipedia.org/wiki/Paris"
)

func scrapeFailures(t *testing.T, svc *Service) float64 {
	t.Helper()
	mfs, err := svc.deps.Metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "voicesearch_scrape_failures_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestService(sc *fakeScraper, sy *fakeSynth, h *fakeHistory) *Service {
	deps := Deps{Logger: quietLogger(), Metrics: runtime.NewMetrics()}
	if sc != nil {
		deps.Scraper = sc
	}
	if sy != nil {
		deps.Synthesizer = sy
	}
	if h != nil {
		deps.History = h
	}
	return NewService(deps, Options{})
}

func TestSearchSingleCandidate(t *testing.T) {
	sc := &fakeScraper{docs: map[string]models.Document{
		wwwParis: {Markdown: "Paris is the capital of France.", Title: "Paris - Wikipedia"},
	}}
	svc := newTestService(sc, nil, nil)

	results, err := svc.Search(context.Background(), "Paris", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(sc.calls) != 1 || sc.calls[0] != wwwParis {
		t.Fatalf("expected exactly the first template url, got %v", sc.calls)
	}
	if len(results) != 1 || results[0].Title != "Paris - Wikipedia" || results[0].URL != wwwParis {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Summary != results[0].Content {
		t.Fatalf("short content should not be truncated: %q", results[0].Summary)
	}
}

func TestSearchFallbackTitleAndSummaryBound(t *testing.T) {
	long := strings.Repeat("é", 450)
	sc := &fakeScraper{docs: map[string]models.Document{
		wwwParis: {Markdown: long},
		enParis:  {Markdown: "short", Title: "<b>Paris</b>"},
	}}
	svc := newTestService(sc, nil, nil)

	results, err := svc.Search(context.Background(), "Paris", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected at most two results, got %d", len(results))
	}
	if results[0].Title != FallbackTitle {
		t.Fatalf("expected fallback title, got %q", results[0].Title)
	}
	if n := utf8.RuneCountInString(results[0].Summary); n != 203 || !strings.HasSuffix(results[0].Summary, "...") {
		t.Fatalf("unexpected summary of %d runes", n)
	}
	if results[0].Content != long {
		t.Fatalf("content must be the untouched scrape text")
	}
	if results[1].Title != "Paris" || strings.HasSuffix(results[1].Summary, "...") {
		t.Fatalf("unexpected second result %+v", results[1])
	}
}

func TestSearchSkipsFailedAndEmptyCandidates(t *testing.T) {
	sc := &fakeScraper{
		docs: map[string]models.Document{enParis: {Title: "empty"}},
		errs: map[string]error{wwwParis: context.DeadlineExceeded},
	}
	svc := newTestService(sc, nil, nil)

	results, err := svc.Search(context.Background(), "Paris", 2)
	if err != nil {
		t.Fatalf("per-url failures must not fail the search: %v", err)
	}
	if len(results) != 0 || len(sc.calls) != 2 {
		t.Fatalf("expected both candidates tried and none kept, results=%v calls=%v", results, sc.calls)
	}
	if results == nil {
		t.Fatalf("expected an empty, non-nil slice")
	}
	if got := scrapeFailures(t, svc); got != 1 {
		t.Fatalf("expected one recorded scrape failure, got %v", got)
	}
}

func TestSearchWithoutScraper(t *testing.T) {
	svc := newTestService(nil, nil, nil)
	_, err := svc.Search(context.Background(), "Paris", 2)
	var se *StepError
	if !errors.As(err, &se) || se.Step != StepSearch || !errors.Is(err, ErrScraperUnavailable) {
		t.Fatalf("expected search step error, got %v", err)
	}
}

func TestSearchDiscoveryFailureIsServiceLevel(t *testing.T) {
	svc := NewService(Deps{Scraper: &fakeScraper{}, Searcher: failingSearcher{}, Logger: quietLogger()}, Options{})
	if _, err := svc.Search(context.Background(), "Paris", 2); err == nil {
		t.Fatalf("expected discovery failure to propagate")
	}
}

func TestSearchHonoursCrawlPolicy(t *testing.T) {
	sc := &fakeScraper{docs: map[string]models.Document{
		wwwParis: {Markdown: "a"},
		enParis:  {Markdown: "b"},
	}}
	policy := config.CrawlPolicyConfig{Disallow: []string{"en.wikipedia.org"}}.Normalize()
	svc := NewService(Deps{Scraper: sc, Logger: quietLogger()}, Options{CrawlPolicy: policy})

	results, err := svc.Search(context.Background(), "Paris", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || len(sc.calls) != 1 || sc.calls[0] != wwwParis {
		t.Fatalf("expected disallowed host to be skipped, calls=%v", sc.calls)
	}
}

func TestSearchNonPositiveLimit(t *testing.T) {
	for _, limit := range []int{0, -1} {
		sc := &fakeScraper{}
		results, err := newTestService(sc, nil, nil).Search(context.Background(), "Paris", limit)
		if err != nil || len(results) != 0 || len(sc.calls) != 0 {
			t.Fatalf("expected no work for limit %d, results=%v calls=%v err=%v", limit, results, sc.calls, err)
		}
	}
}

func TestSearchTitlesKeepPunctuation(t *testing.T) {
	sc := &fakeScraper{docs: map[string]models.Document{
		"https://www.wikipedia.org/wiki/AT&T": {Markdown: "AT&T is a telecom company.", Title: "AT&T - Wikipedia"},
		"https://en.wikipedia.org/wiki/AT&T":  {Markdown: "It's big.", Title: `Rock 'n' "roll" <3`},
	}}
	results, err := newTestService(sc, nil, nil).Search(context.Background(), "AT&T", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	if results[0].Title != "AT&T - Wikipedia" || results[1].Title != `Rock 'n' "roll" <3` {
		t.Fatalf("titles were altered: %q, %q", results[0].Title, results[1].Title)
	}
	spoken := ComposeResponse("AT&T", results)
	if !strings.Contains(spoken, "Result 1: AT&T - Wikipedia.") || strings.Contains(spoken, "&amp;") || strings.Contains(spoken, "&#39;") {
		t.Fatalf("unexpected spoken text %q", spoken)
	}
}

func TestComposeResponse(t *testing.T) {
	if got := ComposeResponse("Atlantis", nil); got != "I couldn't find any results for 'Atlantis'. Please try a different search term." {
		t.Fatalf("unexpected apology %q", got)
	}

	results := []SearchResult{
		{Title: "Paris", Summary: strings.Repeat("a", 150)},
		{Title: "Search Result", Summary: "tiny"},
	}
	want := "I found 2 results for 'Paris'. " +
		"Result 1: Paris. " + strings.Repeat("a", 100) + "... " +
		"Result 2: Search Result. tiny... "
	got := ComposeResponse("Paris", results)
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
	if ComposeResponse("Paris", results) != got {
		t.Fatalf("ComposeResponse must be deterministic")
	}
}

func TestSynthesizeConcatenatesChunks(t *testing.T) {
	audio := []byte("ID3\x04\x00fake-mp3-payload")
	sy := &fakeSynth{audio: audio}
	svc := newTestService(nil, sy, nil)

	uri, err := svc.Synthesize(context.Background(), "hello", "fr", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !strings.HasPrefix(uri, AudioDataURIPrefix) {
		t.Fatalf("missing data uri prefix: %q", uri)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, AudioDataURIPrefix))
	if err != nil || !bytes.Equal(decoded, audio) {
		t.Fatalf("payload mismatch: %q (%v)", decoded, err)
	}
	req := sy.requests[0]
	if req.VoiceID != DefaultVoiceID || req.ModelID != DefaultModelID || req.OutputFormat != DefaultFormat || req.Text != "hello" {
		t.Fatalf("unexpected convert request %+v", req)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	sy := &fakeSynth{err: errors.New("401 invalid api key")}
	_, err := newTestService(nil, sy, nil).Synthesize(context.Background(), "hello", "en", "v")
	if err == nil || !strings.Contains(err.Error(), "Speech generation failed") {
		t.Fatalf("expected speech generation failure, got %v", err)
	}
	if len(sy.requests) != 1 {
		t.Fatalf("synthesis must not be retried, got %d calls", len(sy.requests))
	}

	_, err = newTestService(nil, nil, nil).Synthesize(context.Background(), "hello", "en", "v")
	if !errors.Is(err, ErrSynthesizerUnavailable) {
		t.Fatalf("expected ErrSynthesizerUnavailable, got %v", err)
	}
}

func TestVoiceSearchPersistsRecord(t *testing.T) {
	sc := &fakeScraper{docs: map[string]models.Document{
		wwwParis: {Markdown: "Paris one"},
		enParis:  {Markdown: "Paris two", Title: "Paris"},
	}}
	sy := &fakeSynth{audio: []byte("mp3")}
	h := &fakeHistory{}
	svc := newTestService(sc, sy, h)
	clock := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(250 * time.Millisecond)
		return clock
	}

	resp, err := svc.VoiceSearch(context.Background(), VoiceSearchRequest{Query: "Paris", Language: "fr", VoiceID: "voice-x"})
	if err != nil {
		t.Fatalf("VoiceSearch: %v", err)
	}
	if len(resp.Results) != 2 || resp.Query != "Paris" || resp.AudioResponse == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.ProcessingTime != 0.25 {
		t.Fatalf("unexpected processing time %v", resp.ProcessingTime)
	}
	if len(h.inserted) != 1 {
		t.Fatalf("expected one history record, got %d", len(h.inserted))
	}
	rec := h.inserted[0]
	if rec.ResultsCount != len(resp.Results) || rec.Language != "fr" || rec.Query != "Paris" || rec.ProcessingTime != resp.ProcessingTime {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.Timestamp.Equal(resp.Timestamp) {
		t.Fatalf("record timestamp %v differs from response timestamp %v", rec.Timestamp, resp.Timestamp)
	}
	if !strings.HasPrefix(sy.requests[0].Text, "I found 2 results for 'Paris'.") || sy.requests[0].VoiceID != "voice-x" {
		t.Fatalf("unexpected synthesis request %+v", sy.requests[0])
	}
}

func TestVoiceSearchApologisesWhenNothingScraped(t *testing.T) {
	sc := &fakeScraper{errs: map[string]error{wwwParis: errors.New("503"), enParis: errors.New("timeout")}}
	sy := &fakeSynth{audio: []byte("mp3")}
	h := &fakeHistory{}
	svc := newTestService(sc, sy, h)

	resp, err := svc.VoiceSearch(context.Background(), VoiceSearchRequest{Query: "Paris"})
	if err != nil {
		t.Fatalf("VoiceSearch: %v", err)
	}
	if len(resp.Results) != 0 || resp.Results == nil {
		t.Fatalf("expected empty results, got %#v", resp.Results)
	}
	if !strings.HasPrefix(sy.requests[0].Text, "I couldn't find any results for 'Paris'.") {
		t.Fatalf("expected apology text, got %q", sy.requests[0].Text)
	}
	if h.inserted[0].ResultsCount != 0 || h.inserted[0].Language != DefaultLanguage {
		t.Fatalf("unexpected record %+v", h.inserted[0])
	}
}

func TestVoiceSearchDoesNotPersistOnFailure(t *testing.T) {
	sc := &fakeScraper{docs: map[string]models.Document{wwwParis: {Markdown: "x"}}}
	h := &fakeHistory{}
	svc := newTestService(sc, &fakeSynth{err: errors.New("quota exceeded")}, h)
	if _, err := svc.VoiceSearch(context.Background(), VoiceSearchRequest{Query: "Paris"}); err == nil {
		t.Fatalf("expected synthesis failure")
	}
	if len(h.inserted) != 0 {
		t.Fatalf("failed searches must not be recorded")
	}

	svc = newTestService(sc, &fakeSynth{audio: []byte("a")}, &fakeHistory{err: errors.New("db down")})
	_, err := svc.VoiceSearch(context.Background(), VoiceSearchRequest{Query: "Paris"})
	var se *StepError
	if !errors.As(err, &se) || se.Step != StepPersist {
		t.Fatalf("expected persist step error, got %v", err)
	}
}

func TestHistoryNewestFirstAndBounded(t *testing.T) {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	var recs []store.SearchRecord
	for i := 0; i < 12; i++ {
		recs = append(recs, store.SearchRecord{ID: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}
	svc := newTestService(nil, nil, &fakeHistory{recent: recs})

	got, err := svc.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 records, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatalf("history not newest-first at %d", i)
		}
	}
	if got[0].ID != "l" {
		t.Fatalf("expected newest record first, got %q", got[0].ID)
	}
}

func TestHistoryErrors(t *testing.T) {
	if _, err := newTestService(nil, nil, nil).History(context.Background()); !errors.Is(err, ErrHistoryUnavailable) {
		t.Fatalf("expected ErrHistoryUnavailable, got %v", err)
	}
	if _, err := newTestService(nil, nil, &fakeHistory{err: errors.New("x")}).History(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVoices(t *testing.T) {
	sy := &fakeSynth{voices: []tts.Voice{{VoiceID: "a", Name: "Adam", Category: "premade"}}}
	voices, ok := newTestService(nil, sy, nil).Voices(context.Background())
	if !ok || len(voices) != 1 || voices[0].Name != "Adam" {
		t.Fatalf("unexpected voices %+v ok=%v", voices, ok)
	}
}

func TestVoicesFallback(t *testing.T) {
	for name, svc := range map[string]*Service{
		"provider error": newTestService(nil, &fakeSynth{listErr: errors.New("unauthorized")}, nil),
		"no provider":    newTestService(nil, nil, nil),
	} {
		voices, ok := svc.Voices(context.Background())
		if ok {
			t.Fatalf("%s: expected ok=false", name)
		}
		if len(voices) != 1 || voices[0] != FallbackVoice {
			t.Fatalf("%s: expected exactly the fallback voice, got %+v", name, voices)
		}
	}
}
