package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
)

// FileStore serves the catalog from a JSON file holding an array of product
// objects. The file is re-read on every call so edits show up without a
// restart; wrap it in Cached to avoid the repeated reads.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore reading from path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// GetAllProducts loads and decodes every product in the file. A missing file
// is treated as an empty catalog.
func (s *FileStore) GetAllProducts(_ context.Context) ([]Product, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		slog.Warn("catalog: products file not found", "path", s.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading products file: %w", err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing products file %s: %w", s.path, err)
	}
	return Products(DecodeRecords(rows)), nil
}

func (s *FileStore) FindByName(ctx context.Context, name string) (Product, error) {
	all, err := s.GetAllProducts(ctx)
	if err != nil {
		return Product{}, err
	}
	p, ok := MatchName(all, name)
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *FileStore) FindByID(ctx context.Context, id int64) (Product, error) {
	all, err := s.GetAllProducts(ctx)
	if err != nil {
		return Product{}, err
	}
	p, ok := FindID(all, id)
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *FileStore) FindByTag(ctx context.Context, tag string) ([]Product, error) {
	all, err := s.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByTag(all, tag), nil
}

func (s *FileStore) FindByCategory(ctx context.Context, category string) ([]Product, error) {
	all, err := s.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByCategory(all, category), nil
}

func (s *FileStore) FindByBrand(ctx context.Context, brand string) ([]Product, error) {
	all, err := s.GetAllProducts(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByBrand(all, brand), nil
}

// LoadFile decodes a products JSON file into records without dropping the
// invalid ones. Used by catalog import to report rejected rows.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return DecodeRecords(rows), nil
}
