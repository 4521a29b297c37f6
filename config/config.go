package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the voice search service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Normalize trims origins and falls back to a wildcard.
func (s ServerConfig) Normalize() ServerConfig {
	var origins []string
	for _, o := range s.CORSOrigins {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.CORSOrigins = origins
	if strings.TrimSpace(s.Address) == "" {
		s.Address = ":8001"
	}
	return s
}

// ProvidersConfig groups the external collaborators
type ProvidersConfig struct {
	Firecrawl  FirecrawlConfig  `mapstructure:"firecrawl"`
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
}

// FirecrawlConfig contains scraping provider settings
type FirecrawlConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	APIURL  string        `mapstructure:"api_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// ElevenLabsConfig contains speech synthesis provider settings
type ElevenLabsConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ModelID        string        `mapstructure:"model_id"`
	OutputFormat   string        `mapstructure:"output_format"`
	DefaultVoiceID string        `mapstructure:"default_voice_id"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ScraperConfig selects the web fetcher backend.
type ScraperConfig struct {
	Type     string        `mapstructure:"type"` // firecrawl, chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

func (s ScraperConfig) Validate() error {
	switch s.Type {
	case "firecrawl", "chromedp":
		return nil
	default:
		return fmt.Errorf("scraper.type must be one of firecrawl, chromedp (got %q)", s.Type)
	}
}

// RetrievalConfig controls candidate URL generation.
type RetrievalConfig struct {
	Provider          string            `mapstructure:"provider"` // templates, brave, serper
	ProviderAPIKey    string            `mapstructure:"provider_api_key"`
	URLTemplates      []string          `mapstructure:"url_templates"`
	VoiceSearchLimit  int               `mapstructure:"voice_search_limit"`
	DefaultMaxResults int               `mapstructure:"default_max_results"`
	CrawlPolicy       CrawlPolicyConfig `mapstructure:"crawl_policy"`
}

func (r RetrievalConfig) Validate() error {
	switch r.Provider {
	case "templates":
	case "brave", "serper":
		if strings.TrimSpace(r.ProviderAPIKey) == "" {
			return fmt.Errorf("retrieval.provider_api_key required for provider %q", r.Provider)
		}
	default:
		return fmt.Errorf("retrieval.provider must be one of templates, brave, serper (got %q)", r.Provider)
	}
	if len(r.URLTemplates) == 0 {
		return fmt.Errorf("retrieval.url_templates must not be empty")
	}
	for _, tpl := range r.URLTemplates {
		if strings.Count(tpl, "%s") != 1 {
			return fmt.Errorf("retrieval.url_templates entry %q must contain exactly one %%s", tpl)
		}
	}
	if r.VoiceSearchLimit <= 0 {
		return fmt.Errorf("retrieval.voice_search_limit must be > 0")
	}
	if r.DefaultMaxResults <= 0 {
		return fmt.Errorf("retrieval.default_max_results must be > 0")
	}
	return r.CrawlPolicy.Validate()
}

// CrawlPolicyConfig configures which hosts candidate URLs may point at.
type CrawlPolicyConfig struct {
	Allow    []string `mapstructure:"allow" json:"allow"`
	Disallow []string `mapstructure:"disallow" json:"disallow"`
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings. Redis is optional and only
// backs the scrape cache.
type RedisConfig struct {
	Host      string        `mapstructure:"host"`
	Port      string        `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ScrapeTTL time.Duration `mapstructure:"scrape_ttl"`
}

// Enabled reports whether a Redis host was configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Validate() error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	if r.ScrapeTTL <= 0 {
		return fmt.Errorf("storage.redis.scrape_ttl must be > 0")
	}
	return nil
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL         string        `mapstructure:"url"`
	Host        string        `mapstructure:"host"`
	Port        string        `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	DBName      string        `mapstructure:"dbname"`
	SSLMode     string        `mapstructure:"sslmode"`
	Timeout     time.Duration `mapstructure:"timeout"`
	AutoMigrate bool          `mapstructure:"auto_migrate"`
	Migrations  string        `mapstructure:"migrations"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// Keys without a meaningful default are still registered so AutomaticEnv can
// override them during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("providers.firecrawl.api_key", "")
	v.SetDefault("providers.elevenlabs.api_key", "")
	v.SetDefault("retrieval.crawl_policy.allow", []string{})
	v.SetDefault("retrieval.crawl_policy.disallow", []string{})
	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("storage.postgres.user", "")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.redis.host", "")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("server.address", ":8001")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("providers.firecrawl.api_url", "https://api.firecrawl.dev")
	v.SetDefault("providers.firecrawl.timeout", 30*time.Second)
	v.SetDefault("providers.firecrawl.retries", 0)
	v.SetDefault("providers.elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("providers.elevenlabs.model_id", "eleven_multilingual_v2")
	v.SetDefault("providers.elevenlabs.output_format", "mp3_44100_128")
	v.SetDefault("providers.elevenlabs.default_voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("providers.elevenlabs.timeout", 60*time.Second)
	v.SetDefault("scraper.type", "firecrawl")
	v.SetDefault("scraper.timeout", 15*time.Second)
	v.SetDefault("scraper.max_chars", 20000)
	v.SetDefault("retrieval.provider", "templates")
	v.SetDefault("retrieval.provider_api_key", "")
	v.SetDefault("retrieval.url_templates", []string{
		"https://www.wikipedia.org/wiki/%s",
		"https://en.wikipedia.org/wiki/%s",
	})
	v.SetDefault("retrieval.voice_search_limit", 3)
	v.SetDefault("retrieval.default_max_results", 5)
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.dbname", "voicesearch")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", 5*time.Second)
	v.SetDefault("storage.postgres.auto_migrate", false)
	v.SetDefault("storage.postgres.migrations", "file://migrations")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 2*time.Second)
	v.SetDefault("storage.redis.scrape_ttl", 15*time.Minute)
	v.SetDefault("telemetry.enabled", true)
}

// deploymentEnv maps the unprefixed variables of existing deployments onto
// config keys. VOICESEARCH_* variables win over these.
var deploymentEnv = map[string]string{
	"providers.firecrawl.api_key":  "FIRECRAWL_API_KEY",
	"providers.firecrawl.api_url":  "FIRECRAWL_API_URL",
	"providers.elevenlabs.api_key": "ELEVENLABS_API_KEY",
	"server.cors_origins":          "CORS_ORIGINS",
	"storage.postgres.url":         "DATABASE_URL",
}

// LoadConfig loads config from file, a .env file in the working directory and
// VOICESEARCH_* environment variables. A missing config file is not an error
// when path is empty.
func LoadConfig(path string) (*Config, error) {
	// .env is optional and never overrides variables already set
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config") // path to look for the config file in
		v.AddConfigPath(".")        // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)                      // bin/
		v.AddConfigPath(filepath.Join(exeDir, "..")) // repo root
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("VOICESEARCH")
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)

	v.AutomaticEnv() // read in environment variables that match (VOICESEARCH_*)
	for key, env := range deploymentEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	config.Server = config.Server.Normalize()
	config.Retrieval.CrawlPolicy = config.Retrieval.CrawlPolicy.Normalize()

	if err := config.Scraper.Validate(); err != nil {
		return nil, err
	}
	if err := config.Retrieval.Validate(); err != nil {
		return nil, err
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		return nil, err
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
