package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/voicesearch/internal/voicesearch"
)

// VoiceHandler serves the /api routes on top of the orchestrator.
type VoiceHandler struct {
	Service           *voicesearch.Service
	DefaultMaxResults int
}

func (h *VoiceHandler) Register(g *echo.Group) {
	g.GET("/", h.root)
	g.POST("/voice-search", h.voiceSearch)
	g.POST("/generate-speech", h.generateSpeech)
	g.POST("/scrape", h.scrape)
	g.GET("/search-history", h.searchHistory)
	g.GET("/voices", h.voices)
}

func (h *VoiceHandler) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "HAUS Voice Search API is running"})
}

func (h *VoiceHandler) voiceSearch(c echo.Context) error {
	var req voicesearch.VoiceSearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	resp, err := h.Service.VoiceSearch(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Voice search failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

type speechRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	VoiceID  string `json:"voice_id"`
}

func (h *VoiceHandler) generateSpeech(c echo.Context) error {
	var req speechRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text required")
	}
	if req.Language == "" {
		req.Language = voicesearch.DefaultLanguage
	}
	if req.VoiceID == "" {
		req.VoiceID = h.Service.DefaultVoiceID()
	}
	audio, err := h.Service.Synthesize(c.Request().Context(), req.Text, req.Language, req.VoiceID)
	if err != nil {
		// the step error already reads "Speech generation failed: ..."
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":  true,
		"audio":    audio,
		"text":     req.Text,
		"voice_id": req.VoiceID,
	})
}

type scrapeRequest struct {
	Query      string `json:"query"`
	MaxResults *int   `json:"max_results"`
}

func (h *VoiceHandler) scrape(c echo.Context) error {
	var req scrapeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	max := h.DefaultMaxResults
	if req.MaxResults != nil {
		max = *req.MaxResults
	}
	results, err := h.Service.Search(c.Request().Context(), req.Query, max)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Scraping failed: "+err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"query":   req.Query,
		"results": results,
		"count":   len(results),
	})
}

func (h *VoiceHandler) searchHistory(c echo.Context) error {
	history, err := h.Service.History(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get search history: "+err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"history": history,
	})
}

func (h *VoiceHandler) voices(c echo.Context) error {
	voices, ok := h.Service.Voices(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": ok,
		"voices":  voices,
	})
}
