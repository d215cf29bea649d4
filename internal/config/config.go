package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Catalog sources.
const (
	SourceJSON     = "json"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Catalog   CatalogConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Recommend RecommendConfig
}

type ServerConfig struct {
	Port int
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int
	// MCPStdio also serves MCP over stdin/stdout.
	MCPStdio bool
}

type LogConfig struct {
	Level string
}

type CatalogConfig struct {
	Source       string
	ProductsFile string
	PostgresDSN  string
	CacheTTL     string
	// SyncInterval re-imports ProductsFile into SQLite when it changes.
	// Empty or zero disables the sync worker.
	SyncInterval string
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	Provider      string
	BaseURL       string
	APIKey        string
	Model         string
	FallbackModel string
	Timeout       string
	Temperature   float64
	MaxTokens     int
}

type RecommendConfig struct {
	ShortlistSize int
	MaxCandidates int
	DefaultLimit  int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:      4000,
			RateLimit: 120,
		},
		Log: LogConfig{
			Level: "info",
		},
		Catalog: CatalogConfig{
			Source:       SourceJSON,
			ProductsFile: "data/products.json",
			CacheTTL:     "1m",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			Provider:      "ollama",
			Model:         "llama3.2",
			FallbackModel: "",
			Timeout:       "15s",
			Temperature:   0.2,
			MaxTokens:     512,
		},
		Recommend: RecommendConfig{
			ShortlistSize: 30,
			MaxCandidates: 1000,
			DefaultLimit:  5,
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/recoagent/config.json and applies RECO_* environment
// overrides. Secrets are only read from the environment.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Catalog.Source {
	case SourceJSON, SourceSQLite:
	case SourcePostgres:
		if c.Catalog.PostgresDSN == "" {
			return fmt.Errorf("missing required config: catalog.postgres_dsn (or RECO_CATALOG_POSTGRES_DSN) for catalog.source=postgres")
		}
	default:
		return fmt.Errorf("invalid catalog.source %q: want json, sqlite or postgres", c.Catalog.Source)
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Catalog.CacheTTL); err != nil {
		return fmt.Errorf("invalid catalog.cache_ttl %q: %w", c.Catalog.CacheTTL, err)
	}
	if c.Catalog.SyncInterval != "" {
		if _, err := time.ParseDuration(c.Catalog.SyncInterval); err != nil {
			return fmt.Errorf("invalid catalog.sync_interval %q: %w", c.Catalog.SyncInterval, err)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// LLMTimeout returns the per-attempt re-rank timeout.
func (c Config) LLMTimeout() time.Duration {
	d, _ := time.ParseDuration(c.LLM.Timeout)
	return d
}

// CacheTTL returns the catalog snapshot lifetime. Zero disables the cache.
func (c Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Catalog.CacheTTL)
	return d
}

// SyncInterval returns the products file poll interval. Sync only runs for
// the SQLite source.
func (c Config) SyncInterval() time.Duration {
	if c.Catalog.Source != SourceSQLite {
		return 0
	}
	d, _ := time.ParseDuration(c.Catalog.SyncInterval)
	return d
}

// LLMEnabled reports whether a provider and model are configured.
func (c Config) LLMEnabled() bool {
	p := strings.ToLower(c.LLM.Provider)
	return p != "" && p != "none" && c.LLM.Model != ""
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "recoagent-data"
		}
	}
	return filepath.Join(dir, "recoagent")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "recoagent", "config.json")
}
