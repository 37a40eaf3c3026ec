package ratelimit

import (
	"context"
	"sync"
	"time"
)

// UpdateFunc receives the stored record (zero value when absent) and returns the
// record to store and whether it should be written.
type UpdateFunc func(rec Counter, found bool) (Counter, bool)

// CounterStore holds fixed-window counter records. Implementations must apply
// Update atomically per key and be safe for concurrent use.
type CounterStore interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Sweep deletes records whose window started before cutoff and returns how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryStore is a process-local CounterStore. Counters reset on restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Counter
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Counter)}
}

// Update implements CounterStore.
func (s *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.records[key]
	if next, write := fn(rec, found); write {
		s.records[key] = next
	}
	return nil
}

// Sweep implements CounterStore.
func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, rec := range s.records {
		if rec.WindowStart.Before(cutoff) {
			delete(s.records, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Get returns the record for key, if any.
func (s *MemoryStore) Get(key string) (Counter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}
