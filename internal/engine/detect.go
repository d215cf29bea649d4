package engine

import "fmt"

// Supported provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	// Breaker wraps the backend in a circuit breaker when non-nil.
	Breaker *BreakerSettings
}

// Detect returns the Engine for cfg.Provider. The "none" provider (or an
// empty one) returns a nil Engine, which disables LLM re-ranking.
func Detect(cfg DetectConfig) (Engine, error) {
	var e Engine
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOllama:
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		e = NewOllamaEngine(base)
	case ProviderOpenAI:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider %q needs an API key or a base URL", cfg.Provider)
		}
		e = NewOpenAIEngine(cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}

	if cfg.Breaker != nil {
		e = NewBreakerEngine(e, *cfg.Breaker)
	}
	return e, nil
}
