package idempotency

import (
	"context"
	"sync"
	"time"

	"slotbook/utils"
)

type memoryEntry struct {
	result    Result
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	clock   utils.Clock
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore(clock utils.Clock) *MemoryStore {
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Check(ctx context.Context, key string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.clock.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	result := entry.result
	return &result, nil
}

func (s *MemoryStore) Save(ctx context.Context, key string, result Result, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{
		result:    result,
		expiresAt: s.clock.Now().Add(ttl),
	}
	return nil
}
