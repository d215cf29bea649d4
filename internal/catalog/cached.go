package catalog

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const snapshotKey = "products:all"

// Cached keeps a time-bounded snapshot of the full product list in front of
// another Catalog. Only whole-catalog reads and id lookups are served from
// the snapshot; filtered queries go to the backend, which may index them.
type Cached struct {
	inner Catalog
	cache *cache.Cache
}

// NewCached wraps inner with a snapshot cache expiring after ttl.
func NewCached(inner Catalog, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Invalidate drops the snapshot so the next read hits the backend.
func (c *Cached) Invalidate() {
	c.cache.Delete(snapshotKey)
}

func (c *Cached) GetAllProducts(ctx context.Context) ([]Product, error) {
	if x, found := c.cache.Get(snapshotKey); found {
		return x.([]Product), nil
	}
	products, err := c.inner.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(snapshotKey, products, cache.DefaultExpiration)
	return products, nil
}

func (c *Cached) FindByID(ctx context.Context, id int64) (Product, error) {
	if x, found := c.cache.Get(snapshotKey); found {
		if p, ok := FindID(x.([]Product), id); ok {
			return p, nil
		}
	}
	return c.inner.FindByID(ctx, id)
}

func (c *Cached) FindByName(ctx context.Context, name string) (Product, error) {
	return c.inner.FindByName(ctx, name)
}

func (c *Cached) FindByTag(ctx context.Context, tag string) ([]Product, error) {
	return c.inner.FindByTag(ctx, tag)
}

func (c *Cached) FindByCategory(ctx context.Context, category string) ([]Product, error) {
	return c.inner.FindByCategory(ctx, category)
}

func (c *Cached) FindByBrand(ctx context.Context, brand string) ([]Product, error) {
	return c.inner.FindByBrand(ctx, brand)
}
