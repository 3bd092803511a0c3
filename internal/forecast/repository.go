package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCacheMiss is returned when no unexpired forecast entry exists.
var ErrCacheMiss = errors.New("forecast cache miss")

type cachedHours struct {
	hours     []Hour
	expiresAt time.Time
}

// MemoryCacheRepository is an in-memory CacheRepository for tests and local
// development.
type MemoryCacheRepository struct {
	mu      sync.Mutex
	entries map[[2]float64]cachedHours
	now     func() time.Time
}

// NewMemoryCacheRepository creates an empty in-memory forecast cache.
func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{
		entries: make(map[[2]float64]cachedHours),
		now:     time.Now,
	}
}

// SetClock overrides the cache's time source for tests.
func (r *MemoryCacheRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Get returns the cached hours, or ErrCacheMiss when absent or expired.
func (r *MemoryCacheRepository) Get(_ context.Context, lat, lon float64) ([]Hour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[[2]float64{lat, lon}]
	if !ok || r.now().After(entry.expiresAt) {
		return nil, ErrCacheMiss
	}
	hours := make([]Hour, len(entry.hours))
	copy(hours, entry.hours)
	return hours, nil
}

// Put stores the hours until now+ttl.
func (r *MemoryCacheRepository) Put(_ context.Context, lat, lon float64, hours []Hour, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := make([]Hour, len(hours))
	copy(stored, hours)
	r.entries[[2]float64{lat, lon}] = cachedHours{
		hours:     stored,
		expiresAt: r.now().Add(ttl),
	}
	return nil
}

// PostgresCacheRepository is a PostgreSQL implementation of CacheRepository.
type PostgresCacheRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCacheRepository creates a new PostgreSQL forecast cache.
func NewPostgresCacheRepository(pool *pgxpool.Pool) *PostgresCacheRepository {
	return &PostgresCacheRepository{pool: pool}
}

// Get returns the cached hours, or ErrCacheMiss when absent or expired.
func (r *PostgresCacheRepository) Get(ctx context.Context, lat, lon float64) ([]Hour, error) {
	query := `
		SELECT hours
		FROM forecast_cache
		WHERE lat = $1 AND lon = $2 AND cached_until > now()
	`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, lat, lon).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var hours []Hour
	if err := json.Unmarshal(payload, &hours); err != nil {
		return nil, err
	}
	return hours, nil
}

// Put stores the hours until now+ttl, replacing any entry under the same
// key.
func (r *PostgresCacheRepository) Put(ctx context.Context, lat, lon float64, hours []Hour, ttl time.Duration) error {
	payload, err := json.Marshal(hours)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO forecast_cache (lat, lon, hours, cached_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lat, lon) DO UPDATE SET
			hours = EXCLUDED.hours,
			cached_until = EXCLUDED.cached_until
	`

	cachedUntil := time.Now().UTC().Add(ttl)
	_, err = r.pool.Exec(ctx, query, lat, lon, payload, cachedUntil)
	return err
}
