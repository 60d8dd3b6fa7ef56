package resultcache

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/bio-generator/internal/domain/generator"
)

type entry struct {
	text      string
	expiresAt time.Time
}

// MemoryStore is an in-process result cache for single-instance deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get implements generator.ResultCache.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return e.text, true, nil
}

// Set stores text under key; a non-positive ttl keeps it until the process exits.
func (s *MemoryStore) Set(_ context.Context, key, text string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.entries[key] = entry{text: text, expiresAt: exp}
	return nil
}

var _ generator.ResultCache = (*MemoryStore)(nil)
