package persistence

import (
	"context"
	"sync"

	"github.com/personal/ad-lifecycle/internal/domain/event"
)

// MemoryEventRepository keeps the most recent events in a fixed-size ring
// and a count per event name
type MemoryEventRepository struct {
	mu       sync.RWMutex
	records  []event.Record
	next     int
	full     bool
	counts   map[string]int64
	capacity int
}

// NewMemoryEventRepository creates a repository holding up to capacity records
func NewMemoryEventRepository(capacity int) *MemoryEventRepository {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryEventRepository{
		records:  make([]event.Record, capacity),
		counts:   make(map[string]int64),
		capacity: capacity,
	}
}

// Write stores a batch, overwriting the oldest records when full
func (r *MemoryEventRepository) Write(ctx context.Context, records []event.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range records {
		r.records[r.next] = rec
		r.next = (r.next + 1) % r.capacity
		if r.next == 0 {
			r.full = true
		}
		r.counts[rec.Name]++
	}
	return nil
}

// FindRecent returns up to limit records, newest first
func (r *MemoryEventRepository) FindRecent(ctx context.Context, limit int) ([]event.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = r.capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	result := make([]event.Record, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + r.capacity) % r.capacity
		result = append(result, r.records[idx])
	}
	return result, nil
}

// CountByName returns how many records with the name were written,
// including ones no longer retained
func (r *MemoryEventRepository) CountByName(ctx context.Context, name string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[name], nil
}
