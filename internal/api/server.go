package api

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/metrics"
)

const maxRequestBodySize = 1 << 20 // 1MB

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Service *Service
	Catalog catalog.Catalog

	DataSource  string
	LLMProvider string
	LLMModel    string
	LLMEnabled  bool

	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit int
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
}

// NewHandler returns the service's HTTP handler.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(recordMetrics)

	r.Get("/health", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if deps.RateLimit > 0 {
			r.Use(httprate.Limit(deps.RateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpError(w, http.StatusTooManyRequests, "rate_limit_error", "too many requests")
				}),
			))
		}
		r.Post("/recommendations", handleRecommend(deps))
		r.Get("/recommendations/recent", handleRecent(deps))
		r.Get("/products", handleListProducts(deps))
		r.Get("/products/{id}", handleGetProduct(deps))
	})

	return r
}

// recordMetrics counts requests by route pattern so path parameters do not
// explode label cardinality.
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}
