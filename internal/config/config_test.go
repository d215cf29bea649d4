package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaults verifies all default values are applied when no file exists.
func TestDefaults(t *testing.T) {
	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Catalog.Source != SourceJSON {
		t.Errorf("Catalog.Source = %q, want json", cfg.Catalog.Source)
	}
	if cfg.LLM.Temperature != 0.2 || cfg.LLM.MaxTokens != 512 {
		t.Errorf("LLM sampling = %v/%d, want 0.2/512", cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	}
	if cfg.LLMTimeout() != 15*time.Second {
		t.Errorf("LLMTimeout = %v, want 15s", cfg.LLMTimeout())
	}
	if cfg.Recommend.ShortlistSize != 30 || cfg.Recommend.MaxCandidates != 1000 || cfg.Recommend.DefaultLimit != 5 {
		t.Errorf("Recommend = %+v", cfg.Recommend)
	}
	if cfg.CacheTTL() != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL())
	}
}

func TestFileValues(t *testing.T) {
	path := writeTempConfig(t, `{
  "server.port": 5000,
  "server.mcp_stdio": "true",
  "catalog.source": "sqlite",
  "llm.provider": "openai",
  "llm.model": "gpt-4o-mini",
  "llm.fallback_model": "gpt-4o",
  "llm.temperature": 0.5,
  "recommend.shortlist_size": "12"
}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if !cfg.Server.MCPStdio {
		t.Error("Server.MCPStdio = false, want true")
	}
	if cfg.Catalog.Source != SourceSQLite {
		t.Errorf("Catalog.Source = %q", cfg.Catalog.Source)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.FallbackModel != "gpt-4o" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.LLM.Temperature != 0.5 {
		t.Errorf("LLM.Temperature = %v, want 0.5", cfg.LLM.Temperature)
	}
	if cfg.Recommend.ShortlistSize != 12 {
		t.Errorf("Recommend.ShortlistSize = %d, want 12", cfg.Recommend.ShortlistSize)
	}
}

// TestEnvOverride verifies that environment variables override file values.
func TestEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `{"server.port": 5000, "llm.model": "file-model"}`)

	t.Setenv("RECO_SERVER_PORT", "6000")
	t.Setenv("RECO_LLM_MODEL", "env-model")
	t.Setenv("RECO_LLM_API_KEY", "sk-env")
	t.Setenv("RECO_LLM_TEMPERATURE", "0.7")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("LLM.Model = %q, want env-model", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "sk-env" {
		t.Errorf("LLM.APIKey = %q, want sk-env", cfg.LLM.APIKey)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("LLM.Temperature = %v, want 0.7", cfg.LLM.Temperature)
	}
}

// TestSecretIgnoredInFile verifies the API key is never read from the file.
func TestSecretIgnoredInFile(t *testing.T) {
	path := writeTempConfig(t, `{"llm.api_key": "from-file"}`)
	t.Setenv("RECO_LLM_API_KEY", "")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "" {
		t.Errorf("LLM.APIKey = %q, want empty", cfg.LLM.APIKey)
	}
}

func TestInvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("RECO_SERVER_PORT", "not-a-number")
	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "none.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want default 4000", cfg.Server.Port)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown source", `{"catalog.source": "mongo"}`, "invalid catalog.source"},
		{"postgres without dsn", `{"catalog.source": "postgres"}`, "catalog.postgres_dsn"},
		{"bad timeout", `{"llm.timeout": "soon"}`, "invalid llm.timeout"},
		{"bad ttl", `{"catalog.cache_ttl": "1 minute"}`, "invalid catalog.cache_ttl"},
		{"bad port", `{"server.port": 70000}`, "invalid server.port"},
		{"bad sync interval", `{"catalog.sync_interval": "often"}`, "invalid catalog.sync_interval"},
		{"non-integer port in file", `{"server.port": 40.5}`, "reading server.port"},
		{"non-boolean flag in file", `{"server.mcp_stdio": "maybe"}`, "reading server.mcp_stdio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadWith(newFileBackend(writeTempConfig(t, tt.content)))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.want)
			}
		})
	}

	path := writeTempConfig(t, `{"catalog.source": "postgres", "catalog.postgres_dsn": "postgres://localhost/reco"}`)
	if _, err := loadWith(newFileBackend(path)); err != nil {
		t.Errorf("postgres with dsn: unexpected error %v", err)
	}
}

func TestLLMEnabled(t *testing.T) {
	cfg := defaults()
	if !cfg.LLMEnabled() {
		t.Error("default config should enable the LLM")
	}
	cfg.LLM.Provider = "none"
	if cfg.LLMEnabled() {
		t.Error("provider none should disable the LLM")
	}
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = ""
	if cfg.LLMEnabled() {
		t.Error("empty model should disable the LLM")
	}
}

func TestSyncInterval(t *testing.T) {
	cfg := defaults()
	if cfg.SyncInterval() != 0 {
		t.Error("sync should be disabled by default")
	}
	cfg.Catalog.SyncInterval = "30s"
	if cfg.SyncInterval() != 0 {
		t.Error("sync should only run for the sqlite source")
	}
	cfg.Catalog.Source = SourceSQLite
	if got := cfg.SyncInterval(); got != 30*time.Second {
		t.Errorf("SyncInterval() = %v, want 30s", got)
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	b := newFileBackend(path)

	for key, value := range map[string]string{
		"server.port":      "4100",
		"llm.model":        "qwen2.5",
		"llm.temperature":  "0.1",
		"server.mcp_stdio": "true",
	} {
		if err := setKeyWith(b, key, value); err != nil {
			t.Fatalf("setKeyWith(%s): %v", key, err)
		}
	}

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Port != 4100 || cfg.LLM.Model != "qwen2.5" || cfg.LLM.Temperature != 0.1 || !cfg.Server.MCPStdio {
		t.Errorf("round trip lost values: %+v", cfg)
	}
}

func TestSetKeyErrors(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.json"))

	if err := setKeyWith(b, "llm.api_key", "sk"); err == nil || !strings.Contains(err.Error(), "RECO_LLM_API_KEY") {
		t.Errorf("secret: err = %v", err)
	}
	if err := setKeyWith(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, "llm.temperature", "warm"); err == nil {
		t.Error("expected error for non-float temperature")
	}
	if err := setKeyWith(b, "nope", "x"); err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("unknown key: err = %v", err)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.LLM.APIKey = "sk-secret"
	for _, ki := range ShowAll(cfg) {
		if ki.Key == "llm.api_key" || ki.Value == "sk-secret" {
			t.Errorf("secret leaked: %+v", ki)
		}
		if !strings.HasPrefix(ki.EnvVar, "RECO_") {
			t.Errorf("env var %q lacks RECO_ prefix", ki.EnvVar)
		}
	}
	if len(ValidKeys()) != len(ShowAll(cfg)) {
		t.Errorf("ValidKeys and ShowAll disagree: %d vs %d", len(ValidKeys()), len(ShowAll(cfg)))
	}
}
