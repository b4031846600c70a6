package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestJSONStore(t *testing.T) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func TestJSONStore_CreateAndGet(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 123)

	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := store.Get(ctx, "a.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Filename != "a.mp4" || saved.FileSize != 123 {
		t.Errorf("round-trip mismatch: %+v", saved)
	}
	if saved.Status != StatusProcessing {
		t.Errorf("expected processing, got %s", saved.Status)
	}
}

func TestJSONStore_Create_Duplicate(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 123)

	_ = store.Create(ctx, rec)
	if err := store.Create(ctx, rec); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestJSONStore_Update_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewJSONStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	_ = store.Create(ctx, New("a.mp4", "a.mp4", "/data/a.mp4", 123))

	done := StatusCompleted
	animals := []string{"elephant", "zebra"}
	if _, err := store.Update(ctx, "a.mp4", Patch{Status: &done, Animals: &animals}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A fresh store over the same directory sees the committed state.
	reopened, err := NewJSONStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	saved, err := reopened.Get(ctx, "a.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", saved.Status)
	}
	if len(saved.Animals) != 2 {
		t.Errorf("expected 2 animals, got %v", saved.Animals)
	}
}

func TestJSONStore_Update_NotFound(t *testing.T) {
	store := newTestJSONStore(t)
	if _, err := store.Update(context.Background(), "nope", Patch{}); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJSONStore_List_SkipsMalformedDocuments(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	ctx := context.Background()
	_ = store.Create(ctx, New("a.mp4", "a.mp4", "/data/a.mp4", 1))

	// Drop a corrupt document next to the valid one.
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestJSONStore_Delete(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()
	_ = store.Create(ctx, New("a.mp4", "a.mp4", "/data/a.mp4", 1))

	if err := store.Delete(ctx, "a.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(ctx, "a.mp4"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJSONStore_Stats(t *testing.T) {
	store := newTestJSONStore(t)
	ctx := context.Background()
	_ = store.Create(ctx, New("a.mp4", "a.mp4", "/data/a.mp4", 100))
	_ = store.Create(ctx, New("b.mp4", "b.mp4", "/data/b.mp4", 50))

	done := StatusCompleted
	_, _ = store.Update(ctx, "b.mp4", Patch{Status: &done})

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Total != 2 || st.Completed != 1 || st.TotalBytes != 150 {
		t.Errorf("unexpected stats: %+v", st)
	}
}
