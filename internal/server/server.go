package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/voicesearch/config"
	"github.com/mohammad-safakhou/voicesearch/internal/httpclient"
	"github.com/mohammad-safakhou/voicesearch/internal/runtime"
	"github.com/mohammad-safakhou/voicesearch/internal/store"
	"github.com/mohammad-safakhou/voicesearch/internal/voicesearch"
	"github.com/mohammad-safakhou/voicesearch/tools/tts/elevenlabs"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch"
	"github.com/mohammad-safakhou/voicesearch/tools/web_fetch/cache"
	"github.com/mohammad-safakhou/voicesearch/tools/web_search"
	"github.com/redis/go-redis/v9"
)

// app owns the process-wide collaborators so they can be closed on shutdown.
type app struct {
	service *voicesearch.Service
	metrics *runtime.Metrics
	store   *store.Store
	redis   *redis.Client
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.store.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
}

// build creates every collaborator once. A collaborator that fails to
// initialize is logged and left nil; only the operations that need it fail.
func build(ctx context.Context, cfg *config.Config) *app {
	voiceLogger := log.New(log.Writer(), "[VOICE] ", log.LstdFlags)
	storeLogger := log.New(log.Writer(), "[STORE] ", log.LstdFlags)
	a := &app{}
	if cfg.Telemetry.Enabled {
		a.metrics = runtime.NewMetrics()
	}

	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Retrieval.Provider), web_search.Options{
		APIKey:    cfg.Retrieval.ProviderAPIKey,
		Templates: cfg.Retrieval.URLTemplates,
		Timeout:   cfg.Scraper.Timeout,
	})
	if err != nil {
		voiceLogger.Printf("search provider %q unavailable, using url templates: %v", cfg.Retrieval.Provider, err)
		searcher, _ = web_search.NewWebSearcher(web_search.TemplatesProvider, web_search.Options{Templates: cfg.Retrieval.URLTemplates})
	}

	var scraper web_fetch.WebFetcher
	fc := cfg.Providers.Firecrawl
	timeout := fc.Timeout
	if cfg.Scraper.Type == string(web_fetch.ChromedpFetcherType) {
		timeout = cfg.Scraper.Timeout
	}
	scraper, err = web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Scraper.Type), web_fetch.Options{
		APIKey:   fc.APIKey,
		APIURL:   fc.APIURL,
		Timeout:  timeout,
		Retries:  fc.Retries,
		MaxChars: cfg.Scraper.MaxChars,
	})
	if err != nil {
		voiceLogger.Printf("scraper unavailable: %v", err)
		scraper = nil
	}

	if cfg.Storage.Redis.Enabled() {
		rctx, cancel := context.WithTimeout(ctx, cfg.Storage.Redis.Timeout+time.Second)
		rdb, err := runtime.ConnectRedis(rctx, cfg.Storage.Redis)
		cancel()
		if err != nil {
			voiceLogger.Printf("scrape cache disabled: %v", err)
		} else {
			a.redis = rdb
			if scraper != nil {
				scraper = cache.New(scraper, rdb, cfg.Storage.Redis.ScrapeTTL, voiceLogger)
			}
		}
	}

	var synth *elevenlabs.Client
	el := cfg.Providers.ElevenLabs
	synth, err = elevenlabs.New(el.BaseURL, el.APIKey, httpclient.New(el.Timeout, 0, 0))
	if err != nil {
		voiceLogger.Printf("speech synthesizer unavailable: %v", err)
	}

	dsn, err := runtime.BuildPostgresDSN(cfg)
	if err != nil {
		storeLogger.Printf("history store unavailable: %v", err)
	} else {
		if cfg.Storage.Postgres.AutoMigrate {
			if err := Migrate(cfg.Storage.Postgres.Migrations, dsn, "up", 0); err != nil {
				storeLogger.Printf("migrate: %v", err)
			}
		}
		sctx, cancel := context.WithTimeout(ctx, cfg.Storage.Postgres.Timeout)
		a.store, err = store.NewWithDSN(sctx, dsn)
		cancel()
		if err != nil {
			storeLogger.Printf("history store unavailable: %v", err)
			a.store = nil
		}
	}

	deps := voicesearch.Deps{
		Searcher: searcher,
		Scraper:  scraper,
		Metrics:  a.metrics,
		Logger:   voiceLogger,
	}
	// keep the interfaces nil when init failed
	if synth != nil {
		deps.Synthesizer = synth
	}
	if a.store != nil {
		deps.History = a.store
	}
	a.service = voicesearch.NewService(deps, voicesearch.Options{
		ModelID:          el.ModelID,
		OutputFormat:     el.OutputFormat,
		DefaultVoiceID:   el.DefaultVoiceID,
		VoiceSearchLimit: cfg.Retrieval.VoiceSearchLimit,
		HistoryLimit:     store.DefaultHistoryLimit,
		CrawlPolicy:      cfg.Retrieval.CrawlPolicy,
	})
	return a
}

// NewRouter mounts the API and operational routes on a fresh echo instance.
func NewRouter(h *VoiceHandler, metrics *runtime.Metrics, origins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(requestMetrics(metrics))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	h.Register(e.Group("/api"))
	return e
}

func requestMetrics(m *runtime.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			code := c.Response().Status
			if err != nil {
				code = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					code = he.Code
				}
			}
			m.Request(c.Path(), code)
			return err
		}
	}
}

// Run serves the API until SIGINT/SIGTERM. addr overrides server.address.
func Run(cfg *config.Config, addr string) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := build(ctx, cfg)
	defer a.Close()

	h := &VoiceHandler{Service: a.service, DefaultMaxResults: cfg.Retrieval.DefaultMaxResults}
	e := NewRouter(h, a.metrics, cfg.Server.CORSOrigins)

	if addr == "" {
		addr = cfg.Server.Address
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Printf("shutting down")
	return e.Shutdown(shutdownCtx)
}
