package location

import (
	"context"
	"sync"
	"time"
)

type cachedPlace struct {
	place     Place
	expiresAt time.Time
}

// MemoryCacheRepository is an in-memory CacheRepository for tests and local
// development.
type MemoryCacheRepository struct {
	mu      sync.Mutex
	entries map[[2]float64]cachedPlace
	now     func() time.Time
}

// NewMemoryCacheRepository creates an empty in-memory location cache.
func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{
		entries: make(map[[2]float64]cachedPlace),
		now:     time.Now,
	}
}

// SetClock overrides the cache's time source for tests.
func (r *MemoryCacheRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Get returns the cached place, or ErrCacheMiss when absent or expired.
func (r *MemoryCacheRepository) Get(_ context.Context, lat, lon float64) (*Place, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[[2]float64{lat, lon}]
	if !ok || r.now().After(entry.expiresAt) {
		return nil, ErrCacheMiss
	}
	place := entry.place
	return &place, nil
}

// Put stores the place until now+ttl.
func (r *MemoryCacheRepository) Put(_ context.Context, place Place, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[[2]float64{place.Lat, place.Lon}] = cachedPlace{
		place:     place,
		expiresAt: r.now().Add(ttl),
	}
	return nil
}

// MemoryRegionRepository is an in-memory RegionRepository seeded with the
// default configurations.
type MemoryRegionRepository struct {
	mu      sync.Mutex
	configs map[string]RegionConfig
}

// NewMemoryRegionRepository creates a region repository holding the seeded
// defaults.
func NewMemoryRegionRepository() *MemoryRegionRepository {
	configs := make(map[string]RegionConfig)
	for _, cfg := range DefaultRegionConfigs() {
		configs[cfg.CountryCode] = cfg
	}
	return &MemoryRegionRepository{configs: configs}
}

// Get returns the configuration for a country code.
func (r *MemoryRegionRepository) Get(_ context.Context, countryCode string) (*RegionConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.configs[countryCode]
	if !ok {
		return nil, ErrRegionNotFound
	}
	return &cfg, nil
}

// List returns every stored configuration.
func (r *MemoryRegionRepository) List(_ context.Context) ([]RegionConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	configs := make([]RegionConfig, 0, len(r.configs))
	for _, cfg := range r.configs {
		configs = append(configs, cfg)
	}
	return configs, nil
}

// Upsert stores a configuration.
func (r *MemoryRegionRepository) Upsert(_ context.Context, cfg RegionConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.CountryCode] = cfg
	return nil
}
