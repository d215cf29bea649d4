package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "RECO_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.rate_limit", typ: kInt, env: "RECO_SERVER_RATE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Server.RateLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.RateLimit },
	},
	{
		key: "server.mcp_stdio", typ: kBool, env: "RECO_SERVER_MCP_STDIO",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPStdio = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.MCPStdio },
	},
	{
		key: "log.level", typ: kString, env: "RECO_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "catalog.source", typ: kString, env: "RECO_CATALOG_SOURCE",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Source = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Source },
	},
	{
		key: "catalog.products_file", typ: kString, env: "RECO_CATALOG_PRODUCTS_FILE",
		apply:   func(cfg *Config, v any) { cfg.Catalog.ProductsFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.ProductsFile },
	},
	{
		key: "catalog.postgres_dsn", typ: kString, env: "RECO_CATALOG_POSTGRES_DSN",
		apply:   func(cfg *Config, v any) { cfg.Catalog.PostgresDSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.PostgresDSN },
	},
	{
		key: "catalog.cache_ttl", typ: kString, env: "RECO_CATALOG_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Catalog.CacheTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.CacheTTL },
	},
	{
		key: "catalog.sync_interval", typ: kString, env: "RECO_CATALOG_SYNC_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Catalog.SyncInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.SyncInterval },
	},
	{
		key: "storage.data_dir", typ: kString, env: "RECO_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "llm.provider", typ: kString, env: "RECO_LLM_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.base_url", typ: kString, env: "RECO_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "RECO_LLM_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.model", typ: kString, env: "RECO_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.fallback_model", typ: kString, env: "RECO_LLM_FALLBACK_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.FallbackModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.FallbackModel },
	},
	{
		key: "llm.timeout", typ: kString, env: "RECO_LLM_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.LLM.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Timeout },
	},
	{
		key: "llm.temperature", typ: kFloat, env: "RECO_LLM_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.LLM.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.LLM.Temperature },
	},
	{
		key: "llm.max_tokens", typ: kInt, env: "RECO_LLM_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.LLM.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.MaxTokens },
	},
	{
		key: "recommend.shortlist_size", typ: kInt, env: "RECO_RECOMMEND_SHORTLIST_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Recommend.ShortlistSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.ShortlistSize },
	},
	{
		key: "recommend.max_candidates", typ: kInt, env: "RECO_RECOMMEND_MAX_CANDIDATES",
		apply:   func(cfg *Config, v any) { cfg.Recommend.MaxCandidates = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.MaxCandidates },
	},
	{
		key: "recommend.default_limit", typ: kInt, env: "RECO_RECOMMEND_DEFAULT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Recommend.DefaultLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Recommend.DefaultLimit },
	},
}

// parse converts a raw value from the file backend (JSON types), the
// environment or the CLI (strings) into the key's Go type.
func (t keyType) parse(raw any) (any, error) {
	switch t {
	case kString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", raw), nil
	case kInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case float64:
			if v != math.Trunc(v) || v < math.MinInt || v > math.MaxInt {
				return nil, fmt.Errorf("%v is not an integer", v)
			}
			return int(v), nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", v)
			}
			return i, nil
		}
	case kBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", v)
			}
			return b, nil
		}
	case kFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", v)
			}
			return f, nil
		}
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", raw, raw)
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// applyBackend copies file values onto cfg. Secrets are never read from the
// file, and a malformed value fails the load.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		raw, ok := b.Lookup(s.key)
		if !ok {
			continue
		}
		v, err := s.typ.parse(raw)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

// applyEnvOverrides applies RECO_* variables. Malformed values are logged
// and the previous value is kept.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if s.env == "" || raw == "" {
			continue
		}
		v, err := s.typ.parse(raw)
		if err != nil {
			slog.Warn("config: ignoring environment override", "env", s.env, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
