package catalog

import (
	"context"
	"errors"
	"log/slog"
)

// Fallback reads from a primary backend and switches to a secondary one when
// the primary fails or holds no products. Lookups that return ErrNotFound
// from the primary are retried on the secondary.
type Fallback struct {
	primary   Catalog
	secondary Catalog
	name      string
	// OnError, when set, is called with the primary's name for every primary
	// failure.
	OnError func(name string)
}

// NewFallback returns a Fallback. name labels the primary in logs.
func NewFallback(name string, primary, secondary Catalog) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, name: name}
}

func (f *Fallback) failed(op string, err error) {
	slog.Warn("catalog: primary backend failed, using fallback", "backend", f.name, "op", op, "error", err)
	if f.OnError != nil {
		f.OnError(f.name)
	}
}

func (f *Fallback) GetAllProducts(ctx context.Context) ([]Product, error) {
	products, err := f.primary.GetAllProducts(ctx)
	if err != nil {
		f.failed("get_all", err)
		return f.secondary.GetAllProducts(ctx)
	}
	if len(products) == 0 {
		slog.Info("catalog: primary backend is empty, using fallback", "backend", f.name)
		return f.secondary.GetAllProducts(ctx)
	}
	return products, nil
}

func (f *Fallback) FindByID(ctx context.Context, id int64) (Product, error) {
	return fallbackOne(f, "find_by_id", func(c Catalog) (Product, error) { return c.FindByID(ctx, id) })
}

func (f *Fallback) FindByName(ctx context.Context, name string) (Product, error) {
	return fallbackOne(f, "find_by_name", func(c Catalog) (Product, error) { return c.FindByName(ctx, name) })
}

func (f *Fallback) FindByTag(ctx context.Context, tag string) ([]Product, error) {
	return fallbackMany(f, "find_by_tag", func(c Catalog) ([]Product, error) { return c.FindByTag(ctx, tag) })
}

func (f *Fallback) FindByCategory(ctx context.Context, category string) ([]Product, error) {
	return fallbackMany(f, "find_by_category", func(c Catalog) ([]Product, error) { return c.FindByCategory(ctx, category) })
}

func (f *Fallback) FindByBrand(ctx context.Context, brand string) ([]Product, error) {
	return fallbackMany(f, "find_by_brand", func(c Catalog) ([]Product, error) { return c.FindByBrand(ctx, brand) })
}

func fallbackOne(f *Fallback, op string, fn func(Catalog) (Product, error)) (Product, error) {
	p, err := fn(f.primary)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		f.failed(op, err)
	}
	return fn(f.secondary)
}

func fallbackMany(f *Fallback, op string, fn func(Catalog) ([]Product, error)) ([]Product, error) {
	products, err := fn(f.primary)
	if err == nil {
		return products, nil
	}
	f.failed(op, err)
	return fn(f.secondary)
}
