package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/kalambet/recoagent/internal/catalog"
)

// RecommendationRequest is the body of POST /recommendations.
type RecommendationRequest struct {
	ItemName string `json:"item_name" validate:"required,max=256"`
	Limit    *int   `json:"limit" validate:"omitempty,min=1,max=50"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	DataSource  string `json:"data_source"`
	LLMProvider string `json:"llm_provider"`
	LLMModel    string `json:"llm_model"`
	LLMEnabled  bool   `json:"llm_enabled"`
}

// RecentEntry is one item of GET /recommendations/recent.
type RecentEntry struct {
	ID         string  `json:"id"`
	CreatedAt  string  `json:"created_at"`
	Query      string  `json:"query"`
	PrimaryID  *int64  `json:"primary_id"`
	ProductIDs []int64 `json:"product_ids"`
	Path       string  `json:"path"`
	Model      string  `json:"model,omitempty"`
	DurationMs int64   `json:"duration_ms"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:      "healthy",
			DataSource:  deps.DataSource,
			LLMProvider: deps.LLMProvider,
			LLMModel:    deps.LLMModel,
			LLMEnabled:  deps.LLMEnabled,
		})
	}
}

func handleRecommend(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req RecommendationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.ItemName = strings.TrimSpace(req.ItemName)
		if err := validate.Struct(req); err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%s", validationMessage(err))
			return
		}

		// 0 lets the recommender apply the configured default.
		var limit int
		if req.Limit != nil {
			limit = *req.Limit
		}

		resp, err := deps.Service.Recommend(r.Context(), req.ItemName, limit)
		if err != nil {
			slog.Error("recommend failed", "item_name", req.ItemName, "error", err)
			httpError(w, http.StatusBadGateway, "catalog_error", "catalog unavailable")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleRecent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)

		logs, err := deps.Service.Recent(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list recommendations: %v", err)
			return
		}

		out := make([]RecentEntry, len(logs))
		for i, l := range logs {
			out[i] = RecentEntry{
				ID:         l.ID,
				CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
				Query:      l.Query,
				PrimaryID:  l.PrimaryID,
				ProductIDs: l.ProductIDs,
				Path:       l.Path,
				Model:      l.Model,
				DurationMs: l.DurationMs,
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetProduct(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "product id must be an integer")
			return
		}

		p, err := deps.Catalog.FindByID(r.Context(), id)
		if errors.Is(err, catalog.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "catalog_error", "failed to get product: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, p.Public())
	}
}

// handleListProducts filters by exactly one of tag, category or brand.
func handleListProducts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var (
			products []catalog.Product
			err      error
			filters  int
		)
		for _, k := range []string{"tag", "category", "brand"} {
			if q.Get(k) != "" {
				filters++
			}
		}
		if filters != 1 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "exactly one of tag, category or brand is required")
			return
		}

		switch {
		case q.Get("tag") != "":
			products, err = deps.Catalog.FindByTag(r.Context(), q.Get("tag"))
		case q.Get("category") != "":
			products, err = deps.Catalog.FindByCategory(r.Context(), q.Get("category"))
		default:
			products, err = deps.Catalog.FindByBrand(r.Context(), q.Get("brand"))
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "catalog_error", "failed to list products: %v", err)
			return
		}

		out := make([]catalog.PublicProduct, len(products))
		for i, p := range products {
			out[i] = p.Public()
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs[i] = fmt.Sprintf("%s is required", fe.Field())
		case "min", "max":
			msgs[i] = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		default:
			msgs[i] = fmt.Sprintf("%s is invalid", fe.Field())
		}
	}
	return strings.Join(msgs, "; ")
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
