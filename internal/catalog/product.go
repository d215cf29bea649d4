package catalog

import (
	"fmt"
	"strings"
)

// Product is a catalog entry. Products are owned by the catalog backend and
// must be treated as read-only by the recommendation pipeline.
type Product struct {
	ID          int64          `json:"id" validate:"required"`
	Name        string         `json:"name" validate:"required"`
	Category    string         `json:"category" validate:"required"`
	Brand       string         `json:"brand,omitempty"`
	Model       string         `json:"model,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Description string         `json:"description,omitempty"`
	Price       *float64       `json:"price,omitempty"`
}

// PublicProduct is the caller-facing projection of a Product. It never
// carries attributes or tags.
type PublicProduct struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Brand       string   `json:"brand,omitempty"`
	Model       string   `json:"model,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// Public returns the public projection of p.
func (p Product) Public() PublicProduct {
	return PublicProduct{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Brand:       p.Brand,
		Model:       p.Model,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		Price:       p.Price,
	}
}

// Attr returns the attribute value for key and whether it is set. Values
// that are nil, empty strings, false or zero numbers count as unset.
func (p Product) Attr(key string) (any, bool) {
	v, ok := p.Attributes[key]
	if !ok || !truthy(v) {
		return nil, false
	}
	return v, true
}

// HasAttr reports whether key holds a set value.
func (p Product) HasAttr(key string) bool {
	_, ok := p.Attr(key)
	return ok
}

// AttrString renders the attribute for key as a string, or "" when unset.
// Numbers decoded from JSON render without a trailing ".0".
func (p Product) AttrString(key string) string {
	v, ok := p.Attr(key)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// HasTag reports whether p carries tag (exact match).
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case bool:
		return val
	case float64:
		return val != 0
	case float32:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
