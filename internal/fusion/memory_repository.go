package fusion

import (
	"context"
	"sync"
	"time"
)

// MemoryWeightRepository is an in-memory WeightRepository seeded with the
// default trust factors.
type MemoryWeightRepository struct {
	mu      sync.Mutex
	weights map[[2]string]SourceWeight
}

// NewMemoryWeightRepository creates a weight repository holding the seeded
// defaults.
func NewMemoryWeightRepository() *MemoryWeightRepository {
	weights := make(map[[2]string]SourceWeight)
	for _, w := range DefaultSourceWeights() {
		weights[[2]string{w.Source, w.RegionCode}] = w
	}
	return &MemoryWeightRepository{weights: weights}
}

// Get returns the weight for (source, region).
func (r *MemoryWeightRepository) Get(_ context.Context, source, regionCode string) (*SourceWeight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.weights[[2]string{source, regionCode}]
	if !ok {
		return nil, ErrWeightNotFound
	}
	return &w, nil
}

// List returns every stored weight.
func (r *MemoryWeightRepository) List(_ context.Context) ([]SourceWeight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	weights := make([]SourceWeight, 0, len(r.weights))
	for _, w := range r.weights {
		weights = append(weights, w)
	}
	return weights, nil
}

// Upsert stores a weight.
func (r *MemoryWeightRepository) Upsert(_ context.Context, w SourceWeight) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weights[[2]string{w.Source, w.RegionCode}] = w
	return nil
}

type cachedResult struct {
	result    BlendedResult
	expiresAt time.Time
}

// MemoryCacheRepository is an in-memory CacheRepository for tests and local
// development.
type MemoryCacheRepository struct {
	mu      sync.Mutex
	entries map[[2]float64]*cachedResult
	now     func() time.Time
}

// NewMemoryCacheRepository creates an empty in-memory blended result cache.
func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{
		entries: make(map[[2]float64]*cachedResult),
		now:     time.Now,
	}
}

// SetClock overrides the cache's time source for tests.
func (r *MemoryCacheRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Get returns the cached result and increments its hit count, or
// ErrCacheMiss when absent or expired.
func (r *MemoryCacheRepository) Get(_ context.Context, lat, lon float64) (*BlendedResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := [2]float64{lat, lon}
	entry, ok := r.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if r.now().After(entry.expiresAt) {
		delete(r.entries, key)
		return nil, ErrCacheMiss
	}
	entry.result.HitCount++
	result := entry.result
	return &result, nil
}

// Put stores the result until now+ttl.
func (r *MemoryCacheRepository) Put(_ context.Context, result BlendedResult, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[[2]float64{result.Lat, result.Lon}] = &cachedResult{
		result:    result,
		expiresAt: r.now().Add(ttl),
	}
	return nil
}

// Invalidate removes every cached result.
func (r *MemoryCacheRepository) Invalidate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[[2]float64]*cachedResult)
	return nil
}

// MemoryLogRepository is an in-memory LogRepository for tests.
type MemoryLogRepository struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewMemoryLogRepository creates an empty in-memory fusion log.
func NewMemoryLogRepository() *MemoryLogRepository {
	return &MemoryLogRepository{}
}

// Insert appends one audit entry.
func (r *MemoryLogRepository) Insert(_ context.Context, entry LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a copy of the stored entries.
func (r *MemoryLogRepository) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
