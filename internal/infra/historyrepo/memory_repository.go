package historyrepo

import (
	"context"
	"sync"

	"github.com/yanqian/bio-generator/internal/domain/generator"
)

// MemoryRepository keeps the most recent generations in a bounded ring.
type MemoryRepository struct {
	mu       sync.RWMutex
	records  []generator.HistoryRecord
	capacity int
}

// NewMemoryRepository constructs a repo that retains at most capacity records.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryRepository{capacity: capacity}
}

// Append implements generator.HistoryRepository.
func (r *MemoryRepository) Append(_ context.Context, record generator.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	if overflow := len(r.records) - r.capacity; overflow > 0 {
		r.records = append(r.records[:0:0], r.records[overflow:]...)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *MemoryRepository) Recent(_ context.Context, limit int) ([]generator.HistoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.records) {
		limit = len(r.records)
	}
	out := make([]generator.HistoryRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

var _ generator.HistoryRepository = (*MemoryRepository)(nil)
