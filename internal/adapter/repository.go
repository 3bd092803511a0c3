package adapter

import "context"

// LogRepository persists raw upstream response logs.
type LogRepository interface {
	// Insert writes one response log row.
	Insert(ctx context.Context, row ResponseLog) error

	// ListBySource returns the most recent rows for a source, newest first.
	ListBySource(ctx context.Context, source string, limit int) ([]ResponseLog, error)
}

// HealthRepository persists adapter health snapshots.
type HealthRepository interface {
	// Upsert writes the health record for a source.
	Upsert(ctx context.Context, h Health) error

	// Get returns the stored record for a source.
	Get(ctx context.Context, source string) (*Health, error)

	// List returns all stored health records.
	List(ctx context.Context) ([]Health, error)
}
