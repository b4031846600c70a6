package job

import (
	"context"
	"sync"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of Store.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for persistent storage in production.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore creates a new in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// Create persists a new record, cloning it to avoid external mutations.
func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return ErrDuplicateJob
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

// Update merges the patch into the stored record under the write lock,
// making the whole merge atomic for callers.
func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	patch.apply(rec)
	return rec.Clone(), nil
}

// Get retrieves a record by ID, returning a clone.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return rec.Clone(), nil
}

// List returns clones of all records.
func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

// Delete removes a record.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrJobNotFound
	}
	delete(s.records, id)
	return nil
}

// Stats aggregates counters over all records.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, rec := range s.records {
		st.Total++
		if rec.Status == StatusCompleted {
			st.Completed++
		}
		st.TotalBytes += rec.FileSize
	}
	return st, nil
}
