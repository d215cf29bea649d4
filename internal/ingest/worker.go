// Package ingest keeps the SQLite catalog in step with the products JSON
// file by re-importing it whenever it changes.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/metrics"
)

// ProductWriter stores imported products.
type ProductWriter interface {
	UpsertProducts(ctx context.Context, products []catalog.Product) (int, error)
}

// Worker polls a products file and upserts it into a ProductWriter.
type Worker struct {
	store  ProductWriter
	path   string
	poll   time.Duration
	onSync func(imported int)
	logger *slog.Logger

	lastMod  time.Time
	lastSize int64
}

// NewWorker creates a Worker for the file at path.
// If pollInterval is <= 0, it defaults to 30s.
func NewWorker(store ProductWriter, path string, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Worker{
		store:  store,
		path:   path,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// OnSync registers fn to run after each successful import.
func (w *Worker) OnSync(fn func(imported int)) {
	w.onSync = fn
}

// Run polls the file until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := w.RunOnce(ctx); err != nil {
			metrics.CatalogLoadErrors.WithLabelValues("sync").Inc()
			w.logger.Error("catalog sync failed", "path", w.path, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce imports the file if it changed since the last successful import.
// Returns true if an import ran.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", w.path, err)
	}
	if info.ModTime().Equal(w.lastMod) && info.Size() == w.lastSize {
		return false, nil
	}

	records, err := catalog.LoadFile(w.path)
	if err != nil {
		return false, err
	}
	products := catalog.Products(records)
	if len(products) == 0 {
		return false, fmt.Errorf("no valid products in %s", w.path)
	}

	n, err := w.store.UpsertProducts(ctx, products)
	if err != nil {
		return false, fmt.Errorf("upserting products: %w", err)
	}

	w.lastMod, w.lastSize = info.ModTime(), info.Size()
	w.logger.Info("catalog synced", "path", w.path, "imported", n, "skipped", len(records)-len(products))
	if w.onSync != nil {
		w.onSync(n)
	}
	return true, nil
}
