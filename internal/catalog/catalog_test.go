package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStore_SkipsInvalidRecords(t *testing.T) {
	s := NewFileStore(filepath.Join("testdata", "products.json"))
	products, err := s.GetAllProducts(context.Background())
	if err != nil {
		t.Fatalf("GetAllProducts: %v", err)
	}
	// Record 3 has an empty name and must be dropped.
	if len(products) != 3 {
		t.Fatalf("got %d products, want 3", len(products))
	}
	for _, p := range products {
		if p.ID == 3 {
			t.Errorf("invalid product 3 was not skipped")
		}
	}
}

func TestFileStore_CommaSeparatedTags(t *testing.T) {
	s := NewFileStore(filepath.Join("testdata", "products.json"))
	p, err := s.FindByID(context.Background(), 2)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	want := []string{"case", "pouch", "samsung"}
	if len(p.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", p.Tags, want)
	}
	for i := range want {
		if p.Tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, p.Tags[i], want[i])
		}
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))
	products, err := s.GetAllProducts(context.Background())
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if len(products) != 0 {
		t.Errorf("got %d products, want 0", len(products))
	}
}

func TestFileStore_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"not": "a list"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).GetAllProducts(context.Background()); err == nil {
		t.Fatal("expected error for non-array root")
	}
}

func TestFindByName_ExactThenPartial(t *testing.T) {
	s := NewFileStore(filepath.Join("testdata", "products.json"))
	ctx := context.Background()

	p, err := s.FindByName(ctx, "  samsung galaxy a57 ")
	if err != nil || p.ID != 1 {
		t.Fatalf("exact match: got %+v, %v", p, err)
	}

	p, err = s.FindByName(ctx, "pouch a57")
	if err != nil || p.ID != 2 {
		t.Fatalf("partial match: got %+v, %v", p, err)
	}

	if _, err := s.FindByName(ctx, "iphone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFilters(t *testing.T) {
	s := NewFileStore(filepath.Join("testdata", "products.json"))
	ctx := context.Background()

	byTag, _ := s.FindByTag(ctx, "AUDIO")
	if len(byTag) != 1 || byTag[0].ID != 4 {
		t.Errorf("FindByTag(AUDIO) = %v", byTag)
	}
	byBrand, _ := s.FindByBrand(ctx, "Samsung")
	if len(byBrand) != 3 {
		t.Errorf("FindByBrand(Samsung) returned %d products, want 3", len(byBrand))
	}
	byCat, _ := s.FindByCategory(ctx, "phone_case")
	if len(byCat) != 1 || byCat[0].ID != 2 {
		t.Errorf("FindByCategory(phone_case) = %v", byCat)
	}
}

func TestDecodeRecord_KeepsRawOnFailure(t *testing.T) {
	r := DecodeRecord([]byte(`{"id": 9, "category": "phone", "tags": 12}`))
	if r.Valid() {
		t.Fatal("expected invalid record")
	}
	if r.Raw["category"] != "phone" {
		t.Errorf("raw fields not preserved: %v", r.Raw)
	}
}

func TestProductAttr(t *testing.T) {
	p := Product{Attributes: map[string]any{
		"size_mm":        float64(20),
		"empty":          "",
		"flag":           false,
		"cross":          true,
		"output_voltage": "5V",
	}}
	if got := p.AttrString("size_mm"); got != "20" {
		t.Errorf("AttrString(size_mm) = %q, want %q", got, "20")
	}
	if p.HasAttr("empty") || p.HasAttr("flag") || p.HasAttr("missing") {
		t.Error("empty, false and missing attributes must count as unset")
	}
	if !p.HasAttr("cross") {
		t.Error("true attribute must count as set")
	}
	if p.AttrString("output_voltage") != "5V" {
		t.Errorf("AttrString(output_voltage) = %q", p.AttrString("output_voltage"))
	}
}

func TestPublicProjection(t *testing.T) {
	p := Product{ID: 1, Name: "n", Category: "c", Tags: []string{"t"}, Attributes: map[string]any{"k": "v"}}
	pub := p.Public()
	if pub.ID != 1 || pub.Name != "n" || pub.Category != "c" {
		t.Errorf("projection lost fields: %+v", pub)
	}
}

type countingCatalog struct {
	Catalog
	calls int
}

func (c *countingCatalog) GetAllProducts(ctx context.Context) ([]Product, error) {
	c.calls++
	return c.Catalog.GetAllProducts(ctx)
}

func TestCached_ServesSnapshot(t *testing.T) {
	inner := &countingCatalog{Catalog: NewFileStore(filepath.Join("testdata", "products.json"))}
	c := NewCached(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.GetAllProducts(ctx); err != nil {
			t.Fatalf("GetAllProducts: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("backend called %d times, want 1", inner.calls)
	}

	if p, err := c.FindByID(ctx, 4); err != nil || p.Name != "Galaxy Buds" {
		t.Errorf("FindByID(4) = %+v, %v", p, err)
	}

	c.Invalidate()
	if _, err := c.GetAllProducts(ctx); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("backend called %d times after invalidate, want 2", inner.calls)
	}
}

type brokenCatalog struct{ Catalog }

func (brokenCatalog) GetAllProducts(context.Context) ([]Product, error) {
	return nil, errors.New("connection refused")
}
func (brokenCatalog) FindByID(context.Context, int64) (Product, error) {
	return Product{}, errors.New("connection refused")
}
func (brokenCatalog) FindByTag(context.Context, string) ([]Product, error) {
	return nil, errors.New("connection refused")
}

func TestFallback_PrimaryFailure(t *testing.T) {
	file := NewFileStore(filepath.Join("testdata", "products.json"))
	var failures []string
	f := NewFallback("postgres", brokenCatalog{}, file)
	f.OnError = func(name string) { failures = append(failures, name) }
	ctx := context.Background()

	all, err := f.GetAllProducts(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("GetAllProducts = %d, %v; want 3 from fallback", len(all), err)
	}
	if p, err := f.FindByID(ctx, 4); err != nil || p.ID != 4 {
		t.Errorf("FindByID = %+v, %v", p, err)
	}
	if _, err := f.FindByTag(ctx, "case"); err != nil {
		t.Errorf("FindByTag: %v", err)
	}
	if len(failures) != 3 || failures[0] != "postgres" {
		t.Errorf("failures = %v", failures)
	}
}

func TestFallback_EmptyPrimaryAndNotFound(t *testing.T) {
	empty := NewFileStore(filepath.Join(t.TempDir(), "none.json"))
	file := NewFileStore(filepath.Join("testdata", "products.json"))
	f := NewFallback("sqlite", empty, file)
	ctx := context.Background()

	all, err := f.GetAllProducts(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("GetAllProducts = %d, %v; want 3 from fallback", len(all), err)
	}
	// Not found in the primary is not a failure but still consults the fallback.
	if p, err := f.FindByID(ctx, 4); err != nil || p.ID != 4 {
		t.Errorf("FindByID = %+v, %v", p, err)
	}
	if _, err := f.FindByID(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByID(404): err = %v, want ErrNotFound", err)
	}
}
