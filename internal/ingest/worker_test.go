package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeProducts(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

type failingWriter struct{}

func (failingWriter) UpsertProducts(context.Context, []catalog.Product) (int, error) {
	return 0, errors.New("disk full")
}

func TestRunOnce_ImportsAndSkipsUnchanged(t *testing.T) {
	store := openTestStore(t)
	path := filepath.Join(t.TempDir(), "products.json")
	writeProducts(t, path, `[
		{"id": 1, "name": "Galaxy A57", "category": "phone"},
		{"id": 2, "category": "phone_case"},
		{"id": 3, "name": "A57 Case", "category": "phone_case"}
	]`)

	var synced int
	w := NewWorker(store, path, time.Millisecond)
	w.OnSync(func(n int) { synced = n })

	ran, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !ran {
		t.Fatal("expected first run to import")
	}
	if synced != 2 {
		t.Errorf("OnSync got %d, want 2", synced)
	}

	count, err := store.CountProducts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("stored %d products, want 2", count)
	}

	ran, err = w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if ran {
		t.Error("unchanged file should not be re-imported")
	}
}

func TestRunOnce_ReimportsOnChange(t *testing.T) {
	store := openTestStore(t)
	path := filepath.Join(t.TempDir(), "products.json")
	writeProducts(t, path, `[{"id": 1, "name": "Lamp", "category": "lamp"}]`)

	w := NewWorker(store, path, time.Millisecond)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	writeProducts(t, path, `[{"id": 1, "name": "Desk Lamp", "category": "lamp"}, {"id": 2, "name": "Bulb", "category": "bulb"}]`)
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	ran, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce after change: %v", err)
	}
	if !ran {
		t.Fatal("changed file should be re-imported")
	}
	p, err := store.FindByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if p.Name != "Desk Lamp" {
		t.Errorf("Name = %q, want updated name", p.Name)
	}
}

func TestRunOnce_Errors(t *testing.T) {
	dir := t.TempDir()

	w := NewWorker(openTestStore(t), filepath.Join(dir, "missing.json"), 0)
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.json")
	writeProducts(t, empty, `[{"name": "no id"}]`)
	w = NewWorker(openTestStore(t), empty, 0)
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Error("expected error when no row is valid")
	}

	good := filepath.Join(dir, "good.json")
	writeProducts(t, good, `[{"id": 1, "name": "Lamp", "category": "lamp"}]`)
	w = NewWorker(failingWriter{}, good, 0)
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Error("expected error from writer")
	}
	// A failed import is retried on the next poll.
	if _, err := w.RunOnce(context.Background()); err == nil {
		t.Error("expected failed import to be retried")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := openTestStore(t)
	path := filepath.Join(t.TempDir(), "products.json")
	writeProducts(t, path, `[{"id": 1, "name": "Lamp", "category": "lamp"}]`)

	var syncs atomic.Int32
	w := NewWorker(store, path, 5*time.Millisecond)
	w.OnSync(func(int) { syncs.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for syncs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never synced")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if syncs.Load() != 1 {
		t.Errorf("synced %d times, want 1 for an unchanged file", syncs.Load())
	}
}
