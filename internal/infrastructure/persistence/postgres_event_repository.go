package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/personal/ad-lifecycle/internal/domain/event"
)

// PostgresEventRepository stores events in the ad_events table
type PostgresEventRepository struct {
	db *sql.DB
}

// NewPostgresEventRepository creates a new PostgresEventRepository
func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// Write copies a batch of records in one transaction
func (r *PostgresEventRepository) Write(ctx context.Context, records []event.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("ad_events", "id", "name", "attributes", "occurred_at"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy statement: %w", err)
	}

	for _, rec := range records {
		attrs, err := json.Marshal(rec.Attributes)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to encode attributes of %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Name, string(attrs), rec.OccurredAt); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy event %s: %w", rec.ID, err)
		}
	}

	// Flush the COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy statement: %w", err)
	}

	return tx.Commit()
}

// FindRecent returns up to limit records, newest first
func (r *PostgresEventRepository) FindRecent(ctx context.Context, limit int) ([]event.Record, error) {
	query := `
		SELECT id, name, attributes, occurred_at
		FROM ad_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []event.Record
	for rows.Next() {
		var rec event.Record
		var attrs []byte
		if err := rows.Scan(&rec.ID, &rec.Name, &attrs, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
				return nil, fmt.Errorf("failed to decode attributes of %s: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return records, nil
}

// CountByName returns how many stored events carry the name
func (r *PostgresEventRepository) CountByName(ctx context.Context, name string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ad_events WHERE name = $1", name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}
