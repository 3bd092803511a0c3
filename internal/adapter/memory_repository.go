package adapter

import (
	"context"
	"sync"
)

// MemoryLogRepository is an in-memory LogRepository for tests and local
// development.
type MemoryLogRepository struct {
	mu   sync.Mutex
	rows []ResponseLog
}

// NewMemoryLogRepository creates an empty in-memory log repository.
func NewMemoryLogRepository() *MemoryLogRepository {
	return &MemoryLogRepository{}
}

// Insert appends one response log row.
func (r *MemoryLogRepository) Insert(_ context.Context, row ResponseLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return nil
}

// ListBySource returns the most recent rows for a source, newest first.
func (r *MemoryLogRepository) ListBySource(_ context.Context, source string, limit int) ([]ResponseLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ResponseLog
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].Source == source {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}

// Count returns the total number of stored rows.
func (r *MemoryLogRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// MemoryHealthRepository is an in-memory HealthRepository for tests.
type MemoryHealthRepository struct {
	mu      sync.Mutex
	records map[string]Health
}

// NewMemoryHealthRepository creates an empty in-memory health repository.
func NewMemoryHealthRepository() *MemoryHealthRepository {
	return &MemoryHealthRepository{records: make(map[string]Health)}
}

// Upsert stores the health record for a source.
func (r *MemoryHealthRepository) Upsert(_ context.Context, h Health) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[h.Source] = h
	return nil
}

// Get returns the stored record for a source.
func (r *MemoryHealthRepository) Get(_ context.Context, source string) (*Health, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.records[source]
	if !ok {
		return nil, ErrHealthNotFound
	}
	return &h, nil
}

// List returns all stored health records.
func (r *MemoryHealthRepository) List(_ context.Context) ([]Health, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]Health, 0, len(r.records))
	for _, h := range r.records {
		records = append(records, h)
	}
	return records, nil
}
