package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/metrics"
	"github.com/kalambet/recoagent/internal/pipeline"
	"github.com/kalambet/recoagent/internal/storage"
)

// pathNotFound marks logged requests whose item name matched no product.
const pathNotFound = "not_found"

// RecommendationLog persists served requests. storage.Store implements it.
type RecommendationLog interface {
	LogRecommendation(ctx context.Context, r storage.RecommendationLog) (string, error)
	RecentRecommendations(ctx context.Context, limit int) ([]storage.RecommendationLog, error)
}

// RecommendationResponse is the body of POST /recommendations. Reasons are
// keyed by product id in decimal form.
type RecommendationResponse struct {
	PrimaryItem     *catalog.PublicProduct  `json:"primary_item"`
	Recommendations []catalog.PublicProduct `json:"recommendations"`
	Reasons         map[string]string       `json:"reasons,omitempty"`
}

// Service resolves item names against the catalog and runs the pipeline.
// It is shared by the HTTP and MCP surfaces.
type Service struct {
	catalog     catalog.Catalog
	recommender *pipeline.Recommender
	log         RecommendationLog
	source      string
}

// NewService returns a Service. log may be nil to disable the request log.
func NewService(cat catalog.Catalog, rec *pipeline.Recommender, log RecommendationLog, source string) *Service {
	return &Service{catalog: cat, recommender: rec, log: log, source: source}
}

// Recommend finds the primary product for itemName and returns up to limit
// recommendations. An unknown item yields a nil primary and an empty list.
func (s *Service) Recommend(ctx context.Context, itemName string, limit int) (RecommendationResponse, error) {
	resp := RecommendationResponse{Recommendations: []catalog.PublicProduct{}}

	primary, err := s.catalog.FindByName(ctx, itemName)
	if errors.Is(err, catalog.ErrNotFound) {
		slog.Info("recommend: primary not found", "item_name", itemName)
		s.record(ctx, storage.RecommendationLog{Query: itemName, Path: pathNotFound})
		return resp, nil
	}
	if err != nil {
		metrics.CatalogLoadErrors.WithLabelValues(s.source).Inc()
		return resp, fmt.Errorf("looking up %q: %w", itemName, err)
	}

	entries, out := s.recommender.RecommendWithOutcome(ctx, primary, limit)

	pub := primary.Public()
	resp.PrimaryItem = &pub
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		resp.Recommendations = append(resp.Recommendations, e.Product)
		ids = append(ids, e.Product.ID)
		if e.Reason != "" {
			if resp.Reasons == nil {
				resp.Reasons = make(map[string]string)
			}
			resp.Reasons[fmt.Sprintf("%d", e.Product.ID)] = e.Reason
		}
	}

	primaryID := primary.ID
	s.record(ctx, storage.RecommendationLog{
		Query:      itemName,
		PrimaryID:  &primaryID,
		ProductIDs: ids,
		Path:       string(out.Path),
		Model:      out.Model,
		DurationMs: out.DurationMs,
	})
	return resp, nil
}

// FindProduct resolves a product by name with the catalog's name search.
func (s *Service) FindProduct(ctx context.Context, name string) (catalog.Product, error) {
	return s.catalog.FindByName(ctx, strings.TrimSpace(name))
}

// Recent returns the latest logged requests, or nil when no log is wired.
func (s *Service) Recent(ctx context.Context, limit int) ([]storage.RecommendationLog, error) {
	if s.log == nil {
		return nil, nil
	}
	return s.log.RecentRecommendations(ctx, limit)
}

func (s *Service) record(ctx context.Context, entry storage.RecommendationLog) {
	if s.log == nil {
		return
	}
	if _, err := s.log.LogRecommendation(ctx, entry); err != nil {
		slog.Warn("recommend: failed to log request", "error", err)
	}
}
