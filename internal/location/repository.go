package location

import (
	"context"
	"errors"
	"time"
)

// Repository errors.
var (
	// ErrCacheMiss is returned when no unexpired cache entry exists.
	ErrCacheMiss = errors.New("location cache miss")

	// ErrRegionNotFound is returned when no configuration row exists for a
	// country.
	ErrRegionNotFound = errors.New("region config not found")
)

// CacheRepository persists resolved places keyed on rounded coordinates.
type CacheRepository interface {
	// Get returns the cached place for the rounded key, or ErrCacheMiss
	// when absent or expired.
	Get(ctx context.Context, lat, lon float64) (*Place, error)

	// Put stores the place under the rounded key until now+ttl.
	Put(ctx context.Context, place Place, ttl time.Duration) error
}

// RegionRepository persists per-country blending configuration.
type RegionRepository interface {
	// Get returns the configuration for a country code, or
	// ErrRegionNotFound.
	Get(ctx context.Context, countryCode string) (*RegionConfig, error)

	// List returns every stored configuration.
	List(ctx context.Context) ([]RegionConfig, error)

	// Upsert stores a configuration.
	Upsert(ctx context.Context, cfg RegionConfig) error
}
