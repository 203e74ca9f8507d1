package store

import (
	"context"
	"sync"
)

// InMemory keeps counters in a mutex-guarded map. Sequences start at 0 and
// the first Next for a key returns 1, matching the Postgres upsert.
type InMemory struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func NewInMemory() *InMemory {
	return &InMemory{seqs: make(map[string]int64)}
}

func (s *InMemory) Next(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[key]++
	return s.seqs[key], nil
}

// Current returns the last issued sequence for key without advancing it.
// Test helper; the Postgres store intentionally has no equivalent.
func (s *InMemory) Current(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqs[key]
}
