package catalog

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("not found")

// Catalog is the read contract the recommendation pipeline needs from a
// product backend. Implementations may be backed by a JSON file, SQLite or
// Postgres; all return the same Product shape.
type Catalog interface {
	GetAllProducts(ctx context.Context) ([]Product, error)
	// FindByName prefers an exact case-insensitive match and otherwise
	// returns the first product whose name contains every query word.
	FindByName(ctx context.Context, name string) (Product, error)
	FindByID(ctx context.Context, id int64) (Product, error)
	FindByTag(ctx context.Context, tag string) ([]Product, error)
	FindByCategory(ctx context.Context, category string) ([]Product, error)
	FindByBrand(ctx context.Context, brand string) ([]Product, error)
}

// MatchName applies the name search rule to an in-memory product list.
func MatchName(products []Product, name string) (Product, bool) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if lowered == "" {
		return Product{}, false
	}
	for _, p := range products {
		if strings.ToLower(p.Name) == lowered {
			return p, true
		}
	}
	words := strings.Fields(lowered)
	for _, p := range products {
		pname := strings.ToLower(p.Name)
		all := true
		for _, w := range words {
			if !strings.Contains(pname, w) {
				all = false
				break
			}
		}
		if all {
			return p, true
		}
	}
	return Product{}, false
}

// FilterByTag returns products carrying tag, compared case-insensitively.
func FilterByTag(products []Product, tag string) []Product {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil
	}
	var out []Product
	for _, p := range products {
		for _, t := range p.Tags {
			if strings.ToLower(t) == tag {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// FilterByCategory returns products in category.
func FilterByCategory(products []Product, category string) []Product {
	var out []Product
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// FilterByBrand returns products whose brand equals brand, case-insensitively.
func FilterByBrand(products []Product, brand string) []Product {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil
	}
	var out []Product
	for _, p := range products {
		if strings.EqualFold(p.Brand, brand) {
			out = append(out, p)
		}
	}
	return out
}

// FindID returns the product with id from products.
func FindID(products []Product, id int64) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
