// Package pgstore serves the product catalog from Postgres through a pgx
// connection pool. The pool is injected so callers own its lifecycle.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalambet/recoagent/internal/catalog"
)

// Pool bounds used by Connect.
const (
	MinConns = 1
	MaxConns = 10
)

const selectProducts = `
SELECT id, name, category,
       COALESCE(brand, ''), COALESCE(model, ''),
       COALESCE(attributes, '{}'::jsonb), COALESCE(tags, '{}'::text[]),
       COALESCE(image_url, ''), COALESCE(description, ''),
       price::float8
FROM products`

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements catalog.Catalog over a products table with tags as
// text[] and attributes as jsonb.
type Store struct {
	db Querier
}

// New returns a Store using db, usually a *pgxpool.Pool.
func New(db Querier) *Store {
	return &Store{db: db}
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	cfg.MinConns = MinConns
	cfg.MaxConns = MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

func (s *Store) GetAllProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.query(ctx, selectProducts+` ORDER BY id`)
}

func (s *Store) FindByID(ctx context.Context, id int64) (catalog.Product, error) {
	return s.queryOne(ctx, selectProducts+` WHERE id = $1`, id)
}

// FindByName tries an exact case-insensitive match, then the first product
// whose name contains every query word.
func (s *Store) FindByName(ctx context.Context, name string) (catalog.Product, error) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if lowered == "" {
		return catalog.Product{}, catalog.ErrNotFound
	}
	p, err := s.queryOne(ctx, selectProducts+` WHERE lower(name) = $1 ORDER BY id LIMIT 1`, lowered)
	if !errors.Is(err, catalog.ErrNotFound) {
		return p, err
	}
	q, args := wordsQuery(strings.Fields(lowered))
	return s.queryOne(ctx, q, args...)
}

func (s *Store) FindByTag(ctx context.Context, tag string) ([]catalog.Product, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, nil
	}
	return s.query(ctx, selectProducts+`
WHERE EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE lower(t) = $1)
ORDER BY id`, tag)
}

func (s *Store) FindByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	return s.query(ctx, selectProducts+` WHERE category = $1 ORDER BY id`, category)
}

func (s *Store) FindByBrand(ctx context.Context, brand string) ([]catalog.Product, error) {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil, nil
	}
	return s.query(ctx, selectProducts+` WHERE lower(brand) = lower($1) ORDER BY id`, brand)
}

// wordsQuery builds the partial-name query: every word must appear in the
// lowercased name.
func wordsQuery(words []string) (string, []any) {
	clauses := make([]string, len(words))
	args := make([]any, len(words))
	for i, w := range words {
		clauses[i] = fmt.Sprintf("strpos(lower(name), $%d) > 0", i+1)
		args[i] = w
	}
	return selectProducts + ` WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY id LIMIT 1`, args
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]catalog.Product, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("reading products: %w", err)
	}
	return products, nil
}

func (s *Store) queryOne(ctx context.Context, sql string, args ...any) (catalog.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("querying product: %w", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Brand, &p.Model,
		&p.Attributes, &p.Tags, &p.ImageURL, &p.Description, &p.Price)
	if err != nil {
		return catalog.Product{}, err
	}
	if len(p.Attributes) == 0 {
		p.Attributes = nil
	}
	if len(p.Tags) == 0 {
		p.Tags = nil
	}
	return p, nil
}
