package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is an emitted event as stored by event repositories
type Record struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// NewRecord stamps an event with a fresh id
func NewRecord(name string, attributes map[string]interface{}, occurredAt time.Time) Record {
	return Record{
		ID:         uuid.New().String(),
		Name:       name,
		Attributes: attributes,
		OccurredAt: occurredAt,
	}
}

// Writer persists batches of records
type Writer interface {
	// Write stores a batch of records
	Write(ctx context.Context, records []Record) error
}

// Repository defines the interface for event persistence
type Repository interface {
	Writer

	// FindRecent returns the most recent records, newest first
	FindRecent(ctx context.Context, limit int) ([]Record, error)

	// CountByName returns how many records carry the given name
	CountByName(ctx context.Context, name string) (int64, error)
}
