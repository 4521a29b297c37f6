// Package voicesearch orchestrates a voice search: candidate retrieval,
// response text assembly, speech synthesis and history persistence. Every
// collaborator is injected through Deps; nothing here holds global state.
package voicesearch

import (
	"time"

	"github.com/mohammad-safakhou/voicesearch/tools/tts"
)

const (
	DefaultLanguage = "en"
	DefaultVoiceID  = "21m00Tcm4TlvDq8ikWAM"
	DefaultModelID  = "eleven_multilingual_v2"
	DefaultFormat   = "mp3_44100_128"

	// SummaryLength bounds SearchResult.Summary before the ellipsis.
	SummaryLength = 200
	// SpokenSummaryLength bounds each result's fragment in the spoken text.
	SpokenSummaryLength = 100
	// FallbackTitle is used when the scraper reports no page title.
	FallbackTitle = "Search Result"
	// AudioDataURIPrefix marks the base64 payload as playable audio.
	AudioDataURIPrefix = "data:audio/mpeg;base64,"
)

// SearchResult is one scraped page.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Summary string `json:"summary"`
}

// VoiceSearchRequest is the input of a full voice search.
type VoiceSearchRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
	VoiceID  string `json:"voice_id"`
}

// VoiceSearchResponse is built once per request and never mutated.
type VoiceSearchResponse struct {
	Query          string         `json:"query"`
	Results        []SearchResult `json:"results"`
	AudioResponse  string         `json:"audio_response"`
	ProcessingTime float64        `json:"processing_time"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Voice is a selectable synthesis voice.
type Voice = tts.Voice

// FallbackVoice is returned when the provider cannot list voices.
var FallbackVoice = Voice{
	VoiceID:     "21m00Tcm4TlmVhkVyaZB",
	Name:        "Rachel",
	Category:    "premade",
	Description: "Default English voice",
}
