package elevenlabs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/voicesearch/internal/httpclient"
	"github.com/mohammad-safakhou/voicesearch/tools/tts"
)

// Client implements tts.Synthesizer on the ElevenLabs REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

func New(baseURL, apiKey string, client *httpclient.Client) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: client}, nil
}

func (c *Client) headers(accept string) map[string]string {
	return map[string]string{"xi-api-key": c.apiKey, "Accept": accept}
}

type convertBody struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

func (c *Client) Convert(ctx context.Context, req tts.ConvertRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.VoiceID) == "" {
		return nil, errors.New("elevenlabs: voice id is required")
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", c.baseURL, url.PathEscape(req.VoiceID))
	if req.OutputFormat != "" {
		endpoint += "?output_format=" + url.QueryEscape(req.OutputFormat)
	}
	body, err := c.http.Stream(ctx, http.MethodPost, endpoint, c.headers("audio/mpeg"), convertBody{Text: req.Text, ModelID: req.ModelID})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs convert: %w", err)
	}
	return body, nil
}

func (c *Client) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	var raw struct {
		Voices []struct {
			VoiceID     string  `json:"voice_id"`
			Name        string  `json:"name"`
			Category    string  `json:"category"`
			Description *string `json:"description"`
		} `json:"voices"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/v1/voices", c.headers("application/json"), nil, &raw); err != nil {
		return nil, fmt.Errorf("elevenlabs voices: %w", err)
	}
	out := make([]tts.Voice, 0, len(raw.Voices))
	for _, v := range raw.Voices {
		voice := tts.Voice{VoiceID: v.VoiceID, Name: v.Name, Category: v.Category}
		if v.Description != nil {
			voice.Description = *v.Description
		}
		out = append(out, voice)
	}
	return out, nil
}
