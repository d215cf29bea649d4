package storage

import (
	"time"

	"github.com/kalambet/recoagent/internal/catalog"
)

// ErrNotFound is returned when a requested record does not exist. It is the
// catalog sentinel so callers can match either.
var ErrNotFound = catalog.ErrNotFound

// RecommendationLog is one served recommendation request.
type RecommendationLog struct {
	ID         string
	CreatedAt  time.Time
	Query      string
	PrimaryID  *int64 // nil when the query matched no product
	ProductIDs []int64
	Path       string
	Model      string
	DurationMs int64
}
