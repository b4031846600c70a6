package job

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_Create(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 100)

	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != rec.ID {
		t.Errorf("expected ID %s, got %s", rec.ID, saved.ID)
	}
}

func TestMemoryStore_Create_Duplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 100)

	_ = store.Create(ctx, rec)
	err := store.Create(ctx, rec)
	if !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 100)
	_ = store.Create(ctx, rec)

	lang := "English"
	code := "en"
	updated, err := store.Update(ctx, rec.ID, Patch{Language: &lang, LanguageCode: &code})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Language != "English" || updated.LanguageCode != "en" {
		t.Errorf("patch not applied: %+v", updated)
	}

	// Unrelated fields survive.
	if updated.FileSize != 100 {
		t.Errorf("expected file size preserved, got %d", updated.FileSize)
	}
}

func TestMemoryStore_Update_NotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Update(ctx, "nonexistent", Patch{})
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryStore_Get_ReturnsClone(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 100)
	_ = store.Create(ctx, rec)

	found, _ := store.Get(ctx, rec.ID)
	found.Language = "mutated"
	found.Stages[StageDownscale] = Failed("mutated")

	original, _ := store.Get(ctx, rec.ID)
	if original.Language != "" {
		t.Error("modifying returned record should not affect store")
	}
	if len(original.Stages) != 0 {
		t.Error("modifying returned stage map should not affect store")
	}
}

func TestMemoryStore_List(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected 0 records, got %d", len(records))
	}

	_ = store.Create(ctx, New("a.mp4", "a.mp4", "/data/a.mp4", 1))
	_ = store.Create(ctx, New("b.mp4", "b.mp4", "/data/b.mp4", 2))

	records, err = store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	rec := New("a.mp4", "a.mp4", "/data/a.mp4", 100)
	_ = store.Create(ctx, rec)

	if err := store.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, rec.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}

	// Second delete reports not found, not a crash.
	if err := store.Delete(ctx, rec.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryStore_Stats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a := New("a.mp4", "a.mp4", "/data/a.mp4", 100)
	b := New("b.mp4", "b.mp4", "/data/b.mp4", 200)
	_ = store.Create(ctx, a)
	_ = store.Create(ctx, b)

	done := StatusCompleted
	_, _ = store.Update(ctx, a.ID, Patch{Status: &done})

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Total != 2 {
		t.Errorf("expected total 2, got %d", st.Total)
	}
	if st.Completed != 1 {
		t.Errorf("expected 1 completed, got %d", st.Completed)
	}
	if st.TotalBytes != 300 {
		t.Errorf("expected 300 bytes, got %d", st.TotalBytes)
	}
}

func TestMemoryStore_ConcurrentUpdates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ids := []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"}
	for _, id := range ids {
		_ = store.Create(ctx, New(id, id, "/data/"+id, 1))
	}

	done := make(chan struct{})
	for _, id := range ids {
		go func(id string) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				lang := "English"
				if _, err := store.Update(ctx, id, Patch{Language: &lang}); err != nil {
					t.Errorf("update %s: %v", id, err)
					return
				}
			}
		}(id)
	}
	for range ids {
		<-done
	}

	records, _ := store.List(ctx)
	if len(records) != 4 {
		t.Errorf("expected 4 intact records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Language != "English" {
			t.Errorf("record %s corrupted: %+v", rec.ID, rec)
		}
	}
}

func TestMemoryStore_TerminalStatusIsSticky(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := New("sticky.mp4", "sticky.mp4", "/tmp/sticky.mp4", 1)
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	done := StatusCompleted
	if _, err := store.Update(ctx, rec.ID, Patch{Status: &done}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	back := StatusProcessing
	got, err := store.Update(ctx, rec.ID, Patch{Status: &back})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("terminal status was overwritten: got %s", got.Status)
	}
}
