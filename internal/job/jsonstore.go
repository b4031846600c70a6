package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Compile-time check that JSONStore implements Store.
var _ Store = (*JSONStore)(nil)

// JSONStore persists each record as one JSON document under a directory,
// keyed by job ID. Writes go to a temp file and are renamed into place, so a
// crash mid-write leaves the previously committed document intact.
type JSONStore struct {
	dir string
	// mu serializes read-modify-write cycles. Per-job locking would also do,
	// but a single store-level mutex is enough at this scale.
	mu sync.Mutex
}

// NewJSONStore creates a JSONStore rooted at dir, creating it if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Create persists a new record document.
func (s *JSONStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.pathFor(rec.ID)
	if _, err := os.Stat(path); err == nil {
		return ErrDuplicateJob
	}
	return writeDocAtomic(path, rec)
}

// Update reads the stored document, merges the patch and writes the result
// atomically.
func (s *JSONStore) Update(_ context.Context, id string, patch Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.read(id)
	if err != nil {
		return nil, err
	}
	patch.apply(rec)
	if err := writeDocAtomic(s.pathFor(id), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get retrieves a record by ID.
func (s *JSONStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// List returns all records in the directory. Unreadable or malformed
// documents are skipped rather than failing the whole listing.
func (s *JSONStore) List(_ context.Context) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}
	out := make([]*Record, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.dir, e.Name())) // #nosec G304 - path is inside the store dir
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err == nil && rec.ID != "" {
			out = append(out, &rec)
		}
	}
	return out, nil
}

// Delete removes a record document.
func (s *JSONStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.pathFor(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrJobNotFound
	}
	return err
}

// Stats aggregates counters over all stored records.
func (s *JSONStore) Stats(ctx context.Context) (Stats, error) {
	records, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, rec := range records {
		st.Total++
		if rec.Status == StatusCompleted {
			st.Completed++
		}
		st.TotalBytes += rec.FileSize
	}
	return st, nil
}

func (s *JSONStore) read(id string) (*Record, error) {
	b, err := os.ReadFile(s.pathFor(id)) // #nosec G304 - path is inside the store dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// writeDocAtomic writes JSON to a temp file, syncs it, then renames it into
// place. The sync before rename keeps the last completed update readable even
// after a power loss, not just a process kill.
func writeDocAtomic(dest string, rec *Record) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304 - path is inside the store dir
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write record: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync record: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}
