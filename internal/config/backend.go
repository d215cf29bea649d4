package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// ConfigBackend is a flat key/value store for non-secret settings. Values
// are JSON types: string, float64, bool.
type ConfigBackend interface {
	Lookup(key string) (any, bool)
	Store(key string, val any) error
}

// fileBackend keeps settings as one JSON object, written with 0600
// permissions under the XDG config directory.
type fileBackend struct {
	path string
	data map[string]any
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: map[string]any{}}
	if err := b.read(); err != nil {
		slog.Warn("config: using defaults", "path", path, "error", err)
	}
	return b
}

func (b *fileBackend) read() error {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing %s: %w", b.path, err)
	}
	b.data = data
	return nil
}

func (b *fileBackend) Lookup(key string) (any, bool) {
	v, ok := b.data[key]
	if v == nil {
		return nil, false
	}
	return v, ok
}

func (b *fileBackend) Store(key string, val any) error {
	b.data[key] = val

	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, out, 0o600)
}
