package fusion

import (
	"context"
	"errors"
	"time"
)

// Repository errors.
var (
	// ErrCacheMiss is returned when no unexpired blended result exists.
	ErrCacheMiss = errors.New("blended result cache miss")

	// ErrWeightNotFound is returned when no weight row exists for a
	// (source, region) pair.
	ErrWeightNotFound = errors.New("source weight not found")
)

// WeightRepository persists per-source trust weights.
type WeightRepository interface {
	// Get returns the weight for (source, region), or ErrWeightNotFound.
	Get(ctx context.Context, source, regionCode string) (*SourceWeight, error)

	// List returns every stored weight.
	List(ctx context.Context) ([]SourceWeight, error)

	// Upsert stores a weight.
	Upsert(ctx context.Context, w SourceWeight) error
}

// CacheRepository persists blended results keyed on rounded coordinates.
type CacheRepository interface {
	// Get returns the cached result for the rounded key and increments its
	// hit count, or ErrCacheMiss when absent or expired.
	Get(ctx context.Context, lat, lon float64) (*BlendedResult, error)

	// Put stores the result under the rounded key until now+ttl.
	Put(ctx context.Context, result BlendedResult, ttl time.Duration) error

	// Invalidate removes every cached result.
	Invalidate(ctx context.Context) error
}

// LogEntry records one blend for audit.
type LogEntry struct {
	ID          string
	Lat         float64
	Lon         float64
	RegionCode  string
	InputCount  int
	SourceCodes []string
	AQI         *int
	CreatedAt   time.Time
}

// LogRepository persists blend audit entries. Writes are best-effort.
type LogRepository interface {
	Insert(ctx context.Context, entry LogEntry) error
}
