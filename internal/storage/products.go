package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kalambet/recoagent/internal/catalog"
)

const productColumns = `id, name, category, brand, model, attributes, tags, image_url, description, price`

// UpsertProducts inserts or replaces products by id. New products are
// appended to the catalog order; existing ones keep their position.
func (s *Store) UpsertProducts(ctx context.Context, products []catalog.Product) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning upsert: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), 0) FROM products").Scan(&next); err != nil {
		return 0, fmt.Errorf("reading catalog position: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range products {
		attrs, err := json.Marshal(nonNilAttrs(p.Attributes))
		if err != nil {
			return 0, fmt.Errorf("encoding attributes for product %d: %w", p.ID, err)
		}
		tags, err := json.Marshal(nonNilTags(p.Tags))
		if err != nil {
			return 0, fmt.Errorf("encoding tags for product %d: %w", p.ID, err)
		}
		foldedTags, err := foldTags(p.Tags)
		if err != nil {
			return 0, fmt.Errorf("encoding tags for product %d: %w", p.ID, err)
		}
		next++
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, position, name, category, brand, model, attributes, tags, image_url, description, price, updated_at,
				name_folded, brand_folded, tags_folded)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				category = excluded.category,
				brand = excluded.brand,
				model = excluded.model,
				attributes = excluded.attributes,
				tags = excluded.tags,
				image_url = excluded.image_url,
				description = excluded.description,
				price = excluded.price,
				updated_at = excluded.updated_at,
				name_folded = excluded.name_folded,
				brand_folded = excluded.brand_folded,
				tags_folded = excluded.tags_folded`,
			p.ID, next, p.Name, p.Category, p.Brand, p.Model, string(attrs), string(tags),
			p.ImageURL, p.Description, p.Price, now,
			fold(p.Name), fold(p.Brand), foldedTags,
		)
		if err != nil {
			return 0, fmt.Errorf("upserting product %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}
	return len(products), nil
}

// CountProducts returns the number of stored products.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	return n, err
}

func (s *Store) GetAllProducts(ctx context.Context) ([]catalog.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY position`)
}

func (s *Store) FindByID(ctx context.Context, id int64) (catalog.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return catalog.Product{}, ErrNotFound
	}
	return p, err
}

// FindByName tries an exact case-insensitive match first, then the first
// product (in catalog order) whose name contains every query word. Matching
// runs on the Unicode-folded name, the same folding catalog.MatchName uses.
func (s *Store) FindByName(ctx context.Context, name string) (catalog.Product, error) {
	lowered := fold(strings.TrimSpace(name))
	if lowered == "" {
		return catalog.Product{}, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE name_folded = ? ORDER BY position LIMIT 1`, lowered)
	p, err := scanProduct(row)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return catalog.Product{}, err
	}

	words := strings.Fields(lowered)
	clauses := make([]string, len(words))
	args := make([]any, len(words))
	for i, w := range words {
		clauses[i] = `instr(name_folded, ?) > 0`
		args[i] = w
	}
	row = s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE `+strings.Join(clauses, " AND ")+` ORDER BY position LIMIT 1`,
		args...)
	p, err = scanProduct(row)
	if err == sql.ErrNoRows {
		return catalog.Product{}, ErrNotFound
	}
	return p, err
}

func (s *Store) FindByTag(ctx context.Context, tag string) ([]catalog.Product, error) {
	tag = fold(strings.TrimSpace(tag))
	if tag == "" {
		return nil, nil
	}
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE EXISTS (SELECT 1 FROM json_each(products.tags_folded) WHERE json_each.value = ?)
		ORDER BY position`, tag)
}

func (s *Store) FindByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE category = ? ORDER BY position`, category)
}

func (s *Store) FindByBrand(ctx context.Context, brand string) ([]catalog.Product, error) {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		return nil, nil
	}
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE brand_folded = ? ORDER BY position`, fold(brand))
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]catalog.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (catalog.Product, error) {
	var (
		p           catalog.Product
		attrs, tags string
		price       sql.NullFloat64
	)
	if err := r.Scan(&p.ID, &p.Name, &p.Category, &p.Brand, &p.Model, &attrs, &tags,
		&p.ImageURL, &p.Description, &price); err != nil {
		return catalog.Product{}, err
	}
	if err := json.Unmarshal([]byte(attrs), &p.Attributes); err != nil {
		return catalog.Product{}, fmt.Errorf("decoding attributes for product %d: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return catalog.Product{}, fmt.Errorf("decoding tags for product %d: %w", p.ID, err)
	}
	if len(p.Attributes) == 0 {
		p.Attributes = nil
	}
	if len(p.Tags) == 0 {
		p.Tags = nil
	}
	if price.Valid {
		v := price.Float64
		p.Price = &v
	}
	return p, nil
}

func nonNilAttrs(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilTags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}

// fold lowercases with Go's Unicode tables. SQLite's lower() only handles
// ASCII.
func fold(s string) string {
	return strings.ToLower(s)
}

func foldTags(tags []string) (string, error) {
	folded := make([]string, len(tags))
	for i, t := range tags {
		folded[i] = fold(t)
	}
	b, err := json.Marshal(folded)
	return string(b), err
}

// foldPending fills the folded columns of rows stored before they existed.
func (s *Store) foldPending(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, brand, tags FROM products WHERE name_folded IS NULL`)
	if err != nil {
		return fmt.Errorf("listing unfolded products: %w", err)
	}
	type pending struct {
		id                int64
		name, brand, tags string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.name, &p.brand, &p.tags); err != nil {
			rows.Close()
			return err
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range todo {
		var tags []string
		if err := json.Unmarshal([]byte(p.tags), &tags); err != nil {
			return fmt.Errorf("decoding tags for product %d: %w", p.id, err)
		}
		foldedTags, err := foldTags(tags)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE products SET name_folded = ?, brand_folded = ?, tags_folded = ? WHERE id = ?`,
			fold(p.name), fold(p.brand), foldedTags, p.id); err != nil {
			return fmt.Errorf("folding product %d: %w", p.id, err)
		}
	}
	return nil
}
