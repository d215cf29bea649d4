package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/config"
	"github.com/kalambet/recoagent/internal/engine"
	"github.com/kalambet/recoagent/internal/metrics"
	"github.com/kalambet/recoagent/internal/pgstore"
	"github.com/kalambet/recoagent/internal/pipeline"
	"github.com/kalambet/recoagent/internal/reranking"
	"github.com/kalambet/recoagent/internal/retrieval"
	"github.com/kalambet/recoagent/internal/rules"
	"github.com/kalambet/recoagent/internal/scoring"
	"github.com/kalambet/recoagent/internal/storage"
	"github.com/kalambet/recoagent/internal/validation"
)

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

// openCatalog builds the configured catalog backend. SQLite and Postgres
// fall back to the JSON products file when they fail or are empty, and an
// unreachable Postgres serves the file outright. The returned close func
// releases backend resources.
func openCatalog(ctx context.Context, cfg config.Config, store *storage.Store) (catalog.Catalog, func(), error) {
	file := catalog.NewFileStore(cfg.Catalog.ProductsFile)
	noop := func() {}

	var cat catalog.Catalog
	closer := noop
	switch cfg.Catalog.Source {
	case config.SourceJSON:
		cat = file
	case config.SourceSQLite:
		cat = withFallback(config.SourceSQLite, store, file)
	case config.SourcePostgres:
		pool, err := pgstore.Connect(ctx, cfg.Catalog.PostgresDSN)
		if err != nil {
			slog.Warn("postgres unavailable, serving the products file", "error", err)
			metrics.CatalogLoadErrors.WithLabelValues(config.SourcePostgres).Inc()
			cat = file
			break
		}
		cat = withFallback(config.SourcePostgres, pgstore.New(pool), file)
		closer = pool.Close
	default:
		return nil, noop, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}

	if ttl := cfg.CacheTTL(); ttl > 0 {
		cat = catalog.NewCached(cat, ttl)
	}
	return cat, closer, nil
}

func withFallback(name string, primary, secondary catalog.Catalog) catalog.Catalog {
	f := catalog.NewFallback(name, primary, secondary)
	f.OnError = func(name string) {
		metrics.CatalogLoadErrors.WithLabelValues(name).Inc()
	}
	return f
}

// buildReranker detects the LLM backend and prepares its models. Any
// problem disables re-ranking instead of failing startup.
func buildReranker(ctx context.Context, cfg config.Config, w io.Writer) reranking.Reranker {
	if !cfg.LLMEnabled() {
		slog.Info("LLM re-ranking disabled", "provider", cfg.LLM.Provider)
		return &reranking.NoOpReranker{}
	}

	breaker := engine.DefaultBreakerSettings
	eng, err := engine.Detect(engine.DetectConfig{
		Provider: strings.ToLower(cfg.LLM.Provider),
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Breaker:  &breaker,
	})
	if err != nil {
		slog.Warn("LLM backend unavailable, re-ranking disabled", "error", err)
		return &reranking.NoOpReranker{}
	}
	if eng == nil {
		return &reranking.NoOpReranker{}
	}

	models := []string{cfg.LLM.Model, cfg.LLM.FallbackModel}
	if err := engine.EnsureReady(ctx, eng, models, w); err != nil {
		slog.Warn("LLM backend not ready, re-ranking disabled", "engine", eng.Name(), "error", err)
		return &reranking.NoOpReranker{}
	}

	return reranking.NewReranker(eng, cfg.LLM.Model, cfg.LLM.FallbackModel, cfg.LLMTimeout(), rules.Default(),
		reranking.WithTemperature(cfg.LLM.Temperature),
		reranking.WithMaxTokens(cfg.LLM.MaxTokens),
	)
}

func buildRecommender(cfg config.Config, cat catalog.Catalog, rr reranking.Reranker) *pipeline.Recommender {
	table := rules.Default()
	return pipeline.NewRecommender(
		retrieval.NewRetriever(cat, table),
		retrieval.NewBuilder(table),
		scoring.NewScorer(table),
		rr,
		validation.New(table),
		pipeline.Options{
			ShortlistSize: cfg.Recommend.ShortlistSize,
			MaxCandidates: cfg.Recommend.MaxCandidates,
			DefaultLimit:  cfg.Recommend.DefaultLimit,
		},
	)
}
