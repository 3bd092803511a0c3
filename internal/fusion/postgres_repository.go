package fusion

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresWeightRepository is a PostgreSQL implementation of
// WeightRepository.
type PostgresWeightRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWeightRepository creates a new PostgreSQL source weight
// repository.
func NewPostgresWeightRepository(pool *pgxpool.Pool) *PostgresWeightRepository {
	return &PostgresWeightRepository{pool: pool}
}

// Get returns the weight for (source, region).
func (r *PostgresWeightRepository) Get(ctx context.Context, source, regionCode string) (*SourceWeight, error) {
	query := `
		SELECT source, region_code, trust_factor, time_decay_factor, distance_weight_factor
		FROM source_weight
		WHERE source = $1 AND region_code = $2
	`

	var w SourceWeight
	err := r.pool.QueryRow(ctx, query, source, regionCode).Scan(
		&w.Source, &w.RegionCode, &w.TrustFactor, &w.TimeDecayFactor, &w.DistanceWeightFactor,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWeightNotFound
		}
		return nil, err
	}

	return &w, nil
}

// List returns every stored weight.
func (r *PostgresWeightRepository) List(ctx context.Context) ([]SourceWeight, error) {
	query := `
		SELECT source, region_code, trust_factor, time_decay_factor, distance_weight_factor
		FROM source_weight
		ORDER BY source, region_code
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var weights []SourceWeight
	for rows.Next() {
		var w SourceWeight
		if err := rows.Scan(
			&w.Source, &w.RegionCode, &w.TrustFactor, &w.TimeDecayFactor, &w.DistanceWeightFactor,
		); err != nil {
			return nil, err
		}
		weights = append(weights, w)
	}

	return weights, rows.Err()
}

// Upsert stores a weight.
func (r *PostgresWeightRepository) Upsert(ctx context.Context, w SourceWeight) error {
	query := `
		INSERT INTO source_weight
			(source, region_code, trust_factor, time_decay_factor, distance_weight_factor)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source, region_code) DO UPDATE SET
			trust_factor = EXCLUDED.trust_factor,
			time_decay_factor = EXCLUDED.time_decay_factor,
			distance_weight_factor = EXCLUDED.distance_weight_factor
	`

	_, err := r.pool.Exec(ctx, query,
		w.Source, w.RegionCode, w.TrustFactor, w.TimeDecayFactor, w.DistanceWeightFactor,
	)
	return err
}

// PostgresCacheRepository is a PostgreSQL implementation of CacheRepository.
type PostgresCacheRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCacheRepository creates a new PostgreSQL blended result cache.
func NewPostgresCacheRepository(pool *pgxpool.Pool) *PostgresCacheRepository {
	return &PostgresCacheRepository{pool: pool}
}

// Get returns the cached result and increments its hit count, or
// ErrCacheMiss when absent or expired.
func (r *PostgresCacheRepository) Get(ctx context.Context, lat, lon float64) (*BlendedResult, error) {
	query := `
		UPDATE blended_cache
		SET hit_count = hit_count + 1
		WHERE lat = $1 AND lon = $2 AND cached_until > now()
		RETURNING lat, lon, region_code, aqi, category, pollutants,
		          sources, source_details, last_updated, cached_until, hit_count
	`

	var result BlendedResult
	var pollutants, sources, details []byte
	err := r.pool.QueryRow(ctx, query, lat, lon).Scan(
		&result.Lat, &result.Lon, &result.RegionCode, &result.AQI, &result.Category,
		&pollutants, &sources, &details, &result.LastUpdated, &result.CachedUntil,
		&result.HitCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Drop the expired row, if any, so stale entries do not linger
			// until the next upsert. Best-effort.
			_, _ = r.pool.Exec(ctx,
				`DELETE FROM blended_cache WHERE lat = $1 AND lon = $2 AND cached_until <= now()`,
				lat, lon)
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	if err := json.Unmarshal(pollutants, &result.Pollutants); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sources, &result.Sources); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(details, &result.SourceDetails); err != nil {
		return nil, err
	}

	return &result, nil
}

// Put stores the result until now+ttl, replacing any entry under the same
// key. Last writer wins under concurrent updaters.
func (r *PostgresCacheRepository) Put(ctx context.Context, result BlendedResult, ttl time.Duration) error {
	pollutants, err := json.Marshal(result.Pollutants)
	if err != nil {
		return err
	}
	sources, err := json.Marshal(result.Sources)
	if err != nil {
		return err
	}
	details, err := json.Marshal(result.SourceDetails)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO blended_cache
			(lat, lon, region_code, aqi, category, pollutants, sources,
			 source_details, last_updated, cached_until, hit_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)
		ON CONFLICT (lat, lon) DO UPDATE SET
			region_code = EXCLUDED.region_code,
			aqi = EXCLUDED.aqi,
			category = EXCLUDED.category,
			pollutants = EXCLUDED.pollutants,
			sources = EXCLUDED.sources,
			source_details = EXCLUDED.source_details,
			last_updated = EXCLUDED.last_updated,
			cached_until = EXCLUDED.cached_until,
			hit_count = 0
	`

	cachedUntil := time.Now().UTC().Add(ttl)
	_, err = r.pool.Exec(ctx, query,
		result.Lat, result.Lon, result.RegionCode, result.AQI, result.Category,
		pollutants, sources, details, result.LastUpdated, cachedUntil,
	)
	return err
}

// Invalidate removes every cached result.
func (r *PostgresCacheRepository) Invalidate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM blended_cache`)
	return err
}

// PostgresLogRepository is a PostgreSQL implementation of LogRepository.
type PostgresLogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresLogRepository creates a new PostgreSQL fusion log repository.
func NewPostgresLogRepository(pool *pgxpool.Pool) *PostgresLogRepository {
	return &PostgresLogRepository{pool: pool}
}

// Insert writes one audit entry.
func (r *PostgresLogRepository) Insert(ctx context.Context, entry LogEntry) error {
	query := `
		INSERT INTO fusion_log
			(id, lat, lon, region_code, input_count, source_codes, aqi, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.Lat, entry.Lon, entry.RegionCode, entry.InputCount,
		entry.SourceCodes, entry.AQI, entry.CreatedAt,
	)
	return err
}
