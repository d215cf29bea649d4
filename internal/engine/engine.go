package engine

import "context"

// Engine abstracts an LLM backend (Ollama, or any OpenAI-compatible
// server). The re-ranker depends on this interface instead of a concrete
// client.
type Engine interface {
	// Generate sends prompt to model and returns the raw response text.
	// Any transport or API failure is returned as an error.
	Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool

	// Name identifies the backend in logs and status output.
	Name() string
}

// ModelManager is implemented by backends that host models locally and can
// fetch missing ones.
type ModelManager interface {
	ListModels(ctx context.Context) ([]string, error)
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
