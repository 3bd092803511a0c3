package location

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yevgetman/air-quality-api/internal/aqi"
)

// PostgresCacheRepository is a PostgreSQL implementation of CacheRepository.
type PostgresCacheRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCacheRepository creates a new PostgreSQL location cache.
func NewPostgresCacheRepository(pool *pgxpool.Pool) *PostgresCacheRepository {
	return &PostgresCacheRepository{pool: pool}
}

// Get returns the cached place, or ErrCacheMiss when absent or expired.
func (r *PostgresCacheRepository) Get(ctx context.Context, lat, lon float64) (*Place, error) {
	query := `
		SELECT lat, lon, city, region, country, postal_code, formatted, resolved_at
		FROM location_cache
		WHERE lat = $1 AND lon = $2 AND expires_at > now()
	`

	var p Place
	err := r.pool.QueryRow(ctx, query, lat, lon).Scan(
		&p.Lat, &p.Lon, &p.City, &p.Region, &p.Country,
		&p.PostalCode, &p.Formatted, &p.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	return &p, nil
}

// Put stores the place until now+ttl, replacing any entry under the same
// key.
func (r *PostgresCacheRepository) Put(ctx context.Context, place Place, ttl time.Duration) error {
	query := `
		INSERT INTO location_cache
			(lat, lon, city, region, country, postal_code, formatted,
			 resolved_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (lat, lon) DO UPDATE SET
			city = EXCLUDED.city,
			region = EXCLUDED.region,
			country = EXCLUDED.country,
			postal_code = EXCLUDED.postal_code,
			formatted = EXCLUDED.formatted,
			resolved_at = EXCLUDED.resolved_at,
			expires_at = EXCLUDED.expires_at
	`

	expiresAt := time.Now().UTC().Add(ttl)
	_, err := r.pool.Exec(ctx, query,
		place.Lat, place.Lon, place.City, place.Region, place.Country,
		place.PostalCode, place.Formatted, place.ResolvedAt, expiresAt,
	)
	return err
}

// PostgresRegionRepository is a PostgreSQL implementation of
// RegionRepository.
type PostgresRegionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRegionRepository creates a new PostgreSQL region config
// repository.
func NewPostgresRegionRepository(pool *pgxpool.Pool) *PostgresRegionRepository {
	return &PostgresRegionRepository{pool: pool}
}

// Get returns the configuration for a country code.
func (r *PostgresRegionRepository) Get(ctx context.Context, countryCode string) (*RegionConfig, error) {
	query := `
		SELECT country_code, source_priority, aqi_scale, has_official_data
		FROM region_config
		WHERE country_code = $1
	`

	var cfg RegionConfig
	var scale string
	err := r.pool.QueryRow(ctx, query, countryCode).Scan(
		&cfg.CountryCode, &cfg.SourcePriority, &scale, &cfg.HasOfficialData,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegionNotFound
		}
		return nil, err
	}
	cfg.AQIScale = aqi.Scale(scale)

	return &cfg, nil
}

// List returns every stored configuration.
func (r *PostgresRegionRepository) List(ctx context.Context) ([]RegionConfig, error) {
	query := `
		SELECT country_code, source_priority, aqi_scale, has_official_data
		FROM region_config
		ORDER BY country_code
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []RegionConfig
	for rows.Next() {
		var cfg RegionConfig
		var scale string
		if err := rows.Scan(
			&cfg.CountryCode, &cfg.SourcePriority, &scale, &cfg.HasOfficialData,
		); err != nil {
			return nil, err
		}
		cfg.AQIScale = aqi.Scale(scale)
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

// Upsert stores a configuration.
func (r *PostgresRegionRepository) Upsert(ctx context.Context, cfg RegionConfig) error {
	query := `
		INSERT INTO region_config
			(country_code, source_priority, aqi_scale, has_official_data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (country_code) DO UPDATE SET
			source_priority = EXCLUDED.source_priority,
			aqi_scale = EXCLUDED.aqi_scale,
			has_official_data = EXCLUDED.has_official_data
	`

	_, err := r.pool.Exec(ctx, query,
		cfg.CountryCode, cfg.SourcePriority, string(cfg.AQIScale), cfg.HasOfficialData,
	)
	return err
}
