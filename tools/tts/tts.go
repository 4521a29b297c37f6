package tts

import (
	"context"
	"io"
)

// ConvertRequest is one synthesis call. Language is deliberately absent: the
// provider call does not take it today.
type ConvertRequest struct {
	Text         string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

// Voice is a provider voice as listed by the synthesis service.
type Voice struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Synthesizer converts text to audio through an external provider.
type Synthesizer interface {
	// Convert returns the audio as a stream of chunks; the caller closes it.
	Convert(ctx context.Context, req ConvertRequest) (io.ReadCloser, error)
	ListVoices(ctx context.Context) ([]Voice, error)
}
